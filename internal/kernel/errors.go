package kernel

import (
	"fmt"
	"strings"
)

// ExecutionError reports that a snippet failed to parse, threw, or was
// interrupted. Nothing from the failed snippet reaches the namespace.
type ExecutionError struct {
	Code  string // the snippet that failed
	Cause error
	msg   string
}

// NewExecutionError wraps cause. An empty msg falls back to cause's text.
func NewExecutionError(code, msg string, cause error) *ExecutionError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &ExecutionError{Code: code, Cause: cause, msg: msg}
}

func (e *ExecutionError) Error() string {
	return "Execution error: " + e.msg
}

// Message returns the failure message without the "Execution error" prefix.
func (e *ExecutionError) Message() string {
	return e.msg
}

func (e *ExecutionError) Unwrap() error {
	return e.Cause
}

// ExtractionWarning reports that the declared names of a snippet could not be
// captured after it ran successfully. The namespace is left untouched for that
// call; the result is still returned. It is never returned as an error.
type ExtractionWarning struct {
	Names []string
	Cause error
}

func (w *ExtractionWarning) Error() string {
	return fmt.Sprintf("variable extraction warning [%s]: %v", strings.Join(w.Names, ", "), w.Cause)
}

func (w *ExtractionWarning) Unwrap() error {
	return w.Cause
}
