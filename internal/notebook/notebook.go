// Package notebook sequences cells against one shared kernel: it owns the
// cell collection, assigns identifiers, and turns evaluations into display
// strings with the console output captured during the run.
package notebook

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"nerdbook/internal/codegen"
	"nerdbook/internal/console"
	"nerdbook/internal/kernel"
	"nerdbook/internal/logging"
)

// ErrCellNotFound is returned when an operation names a cell that does not exist.
var ErrCellNotFound = errors.New("cell not found")

// ExampleCell is the code of the cell new notebooks start with.
const ExampleCell = `// Example: Calculate and print Fibonacci sequence
function fibonacci(n) {
  if (n <= 1) return n;
  return fibonacci(n - 1) + fibonacci(n - 2);
}

// Calculate and print first 10 Fibonacci numbers
var fibNumbers = Array.from({ length: 10 }, (_, i) => fibonacci(i));
`

// ExampleGoCell is the Go kernel's counterpart of ExampleCell.
const ExampleGoCell = `// Example: Calculate and print Fibonacci sequence
func fibonacci(n int) int {
	if n <= 1 {
		return n
	}
	return fibonacci(n-1) + fibonacci(n-2)
}

var fibNumbers = []int{fibonacci(0), fibonacci(1), fibonacci(2), fibonacci(3), fibonacci(4), fibonacci(5), fibonacci(6), fibonacci(7), fibonacci(8), fibonacci(9)}
`

// Execution describes one finished cell run.
type Execution struct {
	SessionID string
	CellID    int
	Code      string
	Output    string
	Status    Status
	Duration  time.Duration
	At        time.Time
}

// Recorder receives every finished execution, for example the journal.
// A recorder error is logged and never fails the execution.
type Recorder interface {
	Record(ctx context.Context, e Execution) error
}

// RecorderFunc adapts a function to Recorder.
type RecorderFunc func(ctx context.Context, e Execution) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, e Execution) error { return f(ctx, e) }

// Outcome is the result of one cell in ExecuteAll.
type Outcome struct {
	ID     int
	Output string
	Err    error
}

// Notebook is an ordered collection of cells sharing one kernel.
type Notebook struct {
	kernel    kernel.Kernel
	sessionID string
	recorder  Recorder
	timeout   time.Duration

	// execMu serializes the intercept, evaluate, restore sequence.
	execMu sync.Mutex

	mu     sync.RWMutex
	cells  map[int]*Cell
	nextID int

	noExample bool
}

// Option configures a Notebook.
type Option func(*Notebook)

// WithoutExampleCell starts the notebook empty.
func WithoutExampleCell() Option {
	return func(n *Notebook) { n.noExample = true }
}

// WithRecorder registers a recorder for finished executions.
func WithRecorder(r Recorder) Option {
	return func(n *Notebook) { n.recorder = r }
}

// WithSessionID overrides the generated session identifier.
func WithSessionID(id string) Option {
	return func(n *Notebook) { n.sessionID = id }
}

// WithTimeout bounds every execution. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(n *Notebook) { n.timeout = d }
}

// New creates a notebook around k.
func New(k kernel.Kernel, opts ...Option) *Notebook {
	n := &Notebook{
		kernel:    k,
		sessionID: uuid.New().String(),
		cells:     make(map[int]*Cell),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(n)
	}
	if !n.noExample {
		if k.Language() == "go" {
			n.AddCell(ExampleGoCell)
		} else {
			n.AddCell(ExampleCell)
		}
	}
	logging.Notebook("notebook %s created (kernel=%s)", n.sessionID, k.Language())
	return n
}

// SessionID identifies this notebook instance in the journal.
func (n *Notebook) SessionID() string { return n.sessionID }

// Kernel returns the shared kernel.
func (n *Notebook) Kernel() kernel.Kernel { return n.kernel }

// AddCell appends a cell with the next identifier. Empty code is allowed.
func (n *Notebook) AddCell(code string) *Cell {
	n.mu.Lock()
	defer n.mu.Unlock()

	c := &Cell{id: n.nextID, nb: n, code: code, status: StatusIdle}
	n.cells[c.id] = c
	n.nextID++
	logging.NotebookDebug("added cell %d", c.id)
	return c
}

// DeleteCell removes the cell if present and reports whether it existed.
// Bindings the cell introduced stay in the namespace.
func (n *Notebook) DeleteCell(id int) bool {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.cells[id]; !ok {
		return false
	}
	delete(n.cells, id)
	logging.NotebookDebug("deleted cell %d", id)
	return true
}

// Cell returns the cell with the given id.
func (n *Notebook) Cell(id int) (*Cell, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	c, ok := n.cells[id]
	return c, ok
}

// Cells returns the cells in insertion order.
func (n *Notebook) Cells() []*Cell {
	n.mu.RLock()
	defer n.mu.RUnlock()

	out := make([]*Cell, 0, len(n.cells))
	for _, c := range n.cells {
		out = append(out, c)
	}
	// IDs are assigned monotonically, so ID order is insertion order.
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

// Len returns the number of cells.
func (n *Notebook) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.cells)
}

// UpdateCode replaces the code of a cell.
func (n *Notebook) UpdateCode(id int, code string) error {
	c, ok := n.Cell(id)
	if !ok {
		return fmt.Errorf("update cell %d: %w", id, ErrCellNotFound)
	}
	c.SetCode(code)
	return nil
}

// Execute runs one cell.
func (n *Notebook) Execute(ctx context.Context, id int) (string, error) {
	c, ok := n.Cell(id)
	if !ok {
		return "", fmt.Errorf("execute cell %d: %w", id, ErrCellNotFound)
	}
	return c.Execute(ctx)
}

// ExecuteAll runs every cell in order. A failing cell does not stop the rest.
func (n *Notebook) ExecuteAll(ctx context.Context) []Outcome {
	cells := n.Cells()
	outcomes := make([]Outcome, 0, len(cells))
	failed := 0
	for _, c := range cells {
		out, err := c.Execute(ctx)
		if err != nil {
			failed++
		}
		outcomes = append(outcomes, Outcome{ID: c.id, Output: out, Err: err})
	}
	logging.Notebook("executed %d cells (%d failed)", len(cells), failed)
	return outcomes
}

// Generate fills a cell with generated code. See Cell.Generate.
func (n *Notebook) Generate(ctx context.Context, id int, gen codegen.Generator, prompt string) (string, error) {
	c, ok := n.Cell(id)
	if !ok {
		return "", fmt.Errorf("generate for cell %d: %w", id, ErrCellNotFound)
	}
	return c.Generate(ctx, gen, prompt)
}

// Namespace lists the kernel's bindings.
func (n *Notebook) Namespace() []kernel.Binding {
	return n.kernel.Bindings()
}

// Reset clears the namespace. Cells and their code are kept.
func (n *Notebook) Reset() {
	n.execMu.Lock()
	defer n.execMu.Unlock()
	n.kernel.Reset()
	logging.Notebook("notebook %s namespace reset", n.sessionID)
}

// run evaluates code with console interception. The interceptor is released
// on every path.
func (n *Notebook) run(ctx context.Context, code string) (string, error) {
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	ic := console.NewInterceptor(n.kernel.Console())
	if err := ic.Begin(); err != nil {
		return "Error: " + err.Error(), err
	}
	defer ic.End()

	res, err := n.kernel.Evaluate(ctx, code)
	if err != nil {
		logging.NotebookDebug("execution failed: %v", err)
		return "Error: " + err.Error(), err
	}
	return Render(ic.Logs(), res), nil
}

func (n *Notebook) record(ctx context.Context, e Execution) {
	if n.recorder == nil {
		return
	}
	if err := n.recorder.Record(context.WithoutCancel(ctx), e); err != nil {
		logging.NotebookWarn("failed to record execution of cell %d: %v", e.CellID, err)
	}
}
