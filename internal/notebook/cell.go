package notebook

import (
	"context"
	"sync"
	"time"

	"nerdbook/internal/codegen"
	"nerdbook/internal/kernel"
)

// Status is the state of a cell's last action.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusOK        Status = "ok"
	StatusError     Status = "error"
	StatusGenerated Status = "generated"
)

// Cell is one editable snippet. All cells of a notebook share its kernel.
type Cell struct {
	id int
	nb *Notebook

	mu        sync.RWMutex
	code      string
	output    string
	hasOutput bool
	status    Status
	duration  time.Duration
}

// Snapshot is a copy of a cell's state, safe to marshal.
type Snapshot struct {
	ID         int    `json:"id"`
	Code       string `json:"code"`
	Output     string `json:"output,omitempty"`
	HasOutput  bool   `json:"hasOutput"`
	Status     Status `json:"status"`
	DurationMS int64  `json:"durationMs"`
}

// ID returns the cell identifier. IDs are never reused within a notebook.
func (c *Cell) ID() int { return c.id }

// Code returns the current code.
func (c *Cell) Code() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.code
}

// SetCode replaces the code. The previous output is kept until the next run.
func (c *Cell) SetCode(code string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.code = code
}

// Output returns the most recent display string, if any.
func (c *Cell) Output() (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.output, c.hasOutput
}

// Status returns the state of the last action.
func (c *Cell) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.status
}

// Duration returns how long the last execution took.
func (c *Cell) Duration() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.duration
}

// Snapshot copies the cell state.
func (c *Cell) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Snapshot{
		ID:         c.id,
		Code:       c.code,
		Output:     c.output,
		HasOutput:  c.hasOutput,
		Status:     c.status,
		DurationMS: c.duration.Milliseconds(),
	}
}

func (c *Cell) setOutput(output string, status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.output = output
	c.hasOutput = true
	c.status = status
}

func (c *Cell) setStatus(status Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.status = status
}

// Execute runs the cell's code against the shared kernel and returns the
// display string. On failure the display string is "Error: <message>" and the
// error is the *kernel.ExecutionError. The namespace is never rolled back.
func (c *Cell) Execute(ctx context.Context) (string, error) {
	nb := c.nb
	nb.execMu.Lock()
	defer nb.execMu.Unlock()

	code := c.Code()
	c.setStatus(StatusRunning)

	start := time.Now()
	output, err := nb.run(ctx, code)
	elapsed := time.Since(start)

	status := StatusOK
	if err != nil {
		status = StatusError
	}
	c.mu.Lock()
	c.output = output
	c.hasOutput = true
	c.status = status
	c.duration = elapsed
	c.mu.Unlock()

	nb.record(ctx, Execution{
		SessionID: nb.sessionID,
		CellID:    c.id,
		Code:      code,
		Output:    output,
		Status:    status,
		Duration:  elapsed,
		At:        start,
	})
	return output, err
}

// Generate asks gen for code matching prompt and replaces the cell's code
// with it. The cell output reports the description or the failure; the code
// is unchanged on failure.
func (c *Cell) Generate(ctx context.Context, gen codegen.Generator, prompt string) (string, error) {
	snippet, err := gen.Generate(ctx, prompt)
	if err != nil {
		out := "Error generating code: " + err.Error()
		c.setOutput(out, StatusError)
		return out, err
	}
	c.SetCode(snippet.Code)
	out := "Code generated successfully:\n" + snippet.Description
	c.setOutput(out, StatusGenerated)
	return out, nil
}

// Render builds the display string of a successful execution: captured log
// lines, a blank separator, then the return value unless it is undefined.
// An execution that produced nothing renders as "No output".
func Render(logs string, res kernel.Result) string {
	out := logs
	if !res.Undefined {
		if out != "" {
			out += "\n\n"
		}
		out += "Return value: " + res.Text
	}
	if out == "" {
		return "No output"
	}
	return out
}
