// Package console provides the swappable output sink that snippet code writes
// to, and the Interceptor that captures it for the duration of one execution.
package console

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"nerdbook/internal/logging"
)

// Level is the severity of a console call.
type Level int

const (
	LevelLog Level = iota
	LevelInfo
	LevelWarn
	LevelError

	numLevels
)

// Levels lists every level in declaration order.
var Levels = []Level{LevelLog, LevelInfo, LevelWarn, LevelError}

func (l Level) String() string {
	switch l {
	case LevelLog:
		return "log"
	case LevelInfo:
		return "info"
	case LevelWarn:
		return "warn"
	case LevelError:
		return "error"
	default:
		return fmt.Sprintf("level(%d)", int(l))
	}
}

// Handler receives the already formatted arguments of one console call.
type Handler func(parts ...string)

// Console routes console calls to one handler per level.
type Console struct {
	mu       sync.Mutex
	handlers [numLevels]Handler
	active   *Interceptor
}

// New creates a console whose handlers forward to the console logging
// category. When echo is non-nil every line is also written there.
func New(echo io.Writer) *Console {
	c := &Console{}
	var echoMu sync.Mutex
	for _, lvl := range Levels {
		lvl := lvl
		c.handlers[lvl] = func(parts ...string) {
			line := strings.Join(parts, " ")
			logLine(lvl, line)
			if echo != nil {
				echoMu.Lock()
				fmt.Fprintln(echo, line)
				echoMu.Unlock()
			}
		}
	}
	return c
}

func logLine(lvl Level, line string) {
	l := logging.Get(logging.CategoryConsole)
	switch lvl {
	case LevelWarn:
		l.Warn("%s", line)
	case LevelError:
		l.Error("%s", line)
	default:
		l.Info("[%s] %s", lvl, line)
	}
}

// Handler returns the handler currently installed for lvl.
func (c *Console) Handler(lvl Level) Handler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handlers[lvl]
}

// SetHandler replaces the handler for lvl. A nil handler discards output.
func (c *Console) SetHandler(lvl Level, h Handler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers[lvl] = h
}

// Emit delivers one console call. The handler runs outside the console lock.
func (c *Console) Emit(lvl Level, parts ...string) {
	if lvl < 0 || lvl >= numLevels {
		lvl = LevelLog
	}
	h := c.Handler(lvl)
	if h != nil {
		h(parts...)
	}
}

// Writer returns an io.Writer that emits one console call per complete line
// at lvl. Call Flush on the returned writer to emit a trailing partial line.
func (c *Console) Writer(lvl Level) *LineWriter {
	return &LineWriter{console: c, level: lvl}
}

// LineWriter adapts byte streams (interpreter stdout/stderr) to the console.
type LineWriter struct {
	mu      sync.Mutex
	console *Console
	level   Level
	buf     bytes.Buffer
}

func (w *LineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	w.buf.Write(p)
	var lines []string
	for {
		i := bytes.IndexByte(w.buf.Bytes(), '\n')
		if i < 0 {
			break
		}
		line := string(w.buf.Next(i + 1))
		lines = append(lines, strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"))
	}
	w.mu.Unlock()

	for _, line := range lines {
		w.console.Emit(w.level, line)
	}
	return len(p), nil
}

// Flush emits any buffered partial line.
func (w *LineWriter) Flush() {
	w.mu.Lock()
	rest := w.buf.String()
	w.buf.Reset()
	w.mu.Unlock()
	if rest != "" {
		w.console.Emit(w.level, rest)
	}
}
