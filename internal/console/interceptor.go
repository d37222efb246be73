package console

import (
	"errors"
	"strings"
	"sync"
)

// ErrAlreadyIntercepting is returned by Begin when another interceptor holds the console.
var ErrAlreadyIntercepting = errors.New("console is already being intercepted")

// Interceptor captures console output for one execution. Use it as
//
//	ic := console.NewInterceptor(c)
//	if err := ic.Begin(); err != nil { ... }
//	defer ic.End()
//
// The original handlers keep receiving every call while the interceptor is active.
type Interceptor struct {
	console *Console

	mu    sync.Mutex
	lines []string
	saved [numLevels]Handler
	began bool
	ended bool
}

// NewInterceptor creates an inactive interceptor for c.
func NewInterceptor(c *Console) *Interceptor {
	return &Interceptor{console: c}
}

// Begin snapshots the console handlers and installs capturing replacements.
func (ic *Interceptor) Begin() error {
	c := ic.console
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active != nil {
		return ErrAlreadyIntercepting
	}

	ic.mu.Lock()
	if ic.began {
		ic.mu.Unlock()
		return ErrAlreadyIntercepting
	}
	ic.began = true
	ic.lines = nil
	ic.mu.Unlock()

	ic.saved = c.handlers
	for _, lvl := range Levels {
		orig := ic.saved[lvl]
		c.handlers[lvl] = func(parts ...string) {
			if orig != nil {
				orig(parts...)
			}
			ic.record(strings.Join(parts, " "))
		}
	}
	c.active = ic
	return nil
}

func (ic *Interceptor) record(line string) {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	if ic.ended {
		return
	}
	ic.lines = append(ic.lines, line)
}

// Logs returns the captured lines joined by newlines, or "" if none.
func (ic *Interceptor) Logs() string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return strings.Join(ic.lines, "\n")
}

// Lines returns a copy of the captured lines.
func (ic *Interceptor) Lines() []string {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	out := make([]string, len(ic.lines))
	copy(out, ic.lines)
	return out
}

// End restores the handlers captured by Begin. It is safe to call more than
// once and on an interceptor that never began.
func (ic *Interceptor) End() {
	c := ic.console
	c.mu.Lock()
	defer c.mu.Unlock()

	ic.mu.Lock()
	defer ic.mu.Unlock()
	if !ic.began || ic.ended {
		return
	}
	ic.ended = true
	if c.active == ic {
		c.handlers = ic.saved
		c.active = nil
	}
}
