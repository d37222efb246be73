// Package kernel defines the shared execution context that every cell of a
// notebook evaluates against, and the error taxonomy it reports.
package kernel

import (
	"context"

	"nerdbook/internal/console"
)

// Result is the outcome of one successful evaluation.
type Result struct {
	// Value is the completion value exported to Go.
	Value any
	// Text is the display form: undefined and null literally, functions by
	// their source, everything else as indented JSON or its string cast.
	Text string
	// Undefined is set when the snippet produced no value.
	Undefined bool
}

// Binding describes one namespace entry for inspection.
type Binding struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Preview string `json:"preview"`
}

// Kernel runs snippets against a namespace that persists across calls.
// Implementations serialize Evaluate, Bindings and Reset internally.
type Kernel interface {
	// Language names the snippet language ("javascript", "go").
	Language() string

	// Evaluate runs code once against the current namespace, merges the names
	// it declares, and returns its completion value. Failures are
	// *ExecutionError; nothing is merged when the snippet fails.
	Evaluate(ctx context.Context, code string) (Result, error)

	// Bindings lists the namespace in declaration order.
	Bindings() []Binding

	// Lookup returns the display form of one binding.
	Lookup(name string) (string, bool)

	// Console is the sink snippet output is written to.
	Console() *console.Console

	// Reset clears the namespace and the interpreter's global state.
	Reset()
}

// WarningHandler observes extraction warnings.
type WarningHandler func(*ExtractionWarning)
