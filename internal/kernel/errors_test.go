package kernel

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExecutionError(t *testing.T) {
	cause := errors.New("x is not defined")
	err := NewExecutionError("x", "", cause)

	assert.Equal(t, "Execution error: x is not defined", err.Error())
	assert.Equal(t, "x is not defined", err.Message())
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "x", err.Code)

	wrapped := fmt.Errorf("cell 3: %w", err)
	var execErr *ExecutionError
	assert.True(t, errors.As(wrapped, &execErr))
	assert.Equal(t, "x is not defined", execErr.Message())
}

func TestExecutionErrorExplicitMessage(t *testing.T) {
	err := NewExecutionError("while(true){}", "execution interrupted", context.DeadlineExceeded)
	assert.Equal(t, "Execution error: execution interrupted", err.Error())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestExtractionWarning(t *testing.T) {
	cause := errors.New("ReferenceError: inner is not defined")
	w := &ExtractionWarning{Names: []string{"a", "inner"}, Cause: cause}
	assert.Equal(t, "variable extraction warning [a, inner]: ReferenceError: inner is not defined", w.Error())
	assert.ErrorIs(t, w, cause)
}
