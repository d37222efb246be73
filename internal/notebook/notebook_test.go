package notebook

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nerdbook/internal/codegen"
	"nerdbook/internal/config"
	"nerdbook/internal/kernel"
	"nerdbook/internal/kernel/jsk"
)

func TestMain(m *testing.M) {
	// genai pulls in opencensus, which starts its stats worker at init.
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("go.opencensus.io/stats/view.(*worker).start"))
}

func newNotebook(t *testing.T, opts ...Option) *Notebook {
	t.Helper()
	return New(jsk.New(), append([]Option{WithoutExampleCell()}, opts...)...)
}

func TestNewAddsExampleCell(t *testing.T) {
	nb := New(jsk.New())
	require.Equal(t, 1, nb.Len())

	c := nb.Cells()[0]
	assert.Equal(t, 1, c.ID())
	assert.Equal(t, ExampleCell, c.Code())
	assert.Equal(t, StatusIdle, c.Status())
	_, has := c.Output()
	assert.False(t, has)
	assert.NotEmpty(t, nb.SessionID())
}

func TestExampleCellRuns(t *testing.T) {
	nb := New(jsk.New())
	out, err := nb.Execute(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Return value: [\n  0,\n  1,"), out)

	names := make([]string, 0)
	for _, b := range nb.Namespace() {
		names = append(names, b.Name)
	}
	assert.Equal(t, []string{"fibonacci", "fibNumbers"}, names)
}

func TestIDsAreNeverReused(t *testing.T) {
	nb := newNotebook(t)
	a := nb.AddCell("1")
	b := nb.AddCell("2")
	assert.Equal(t, 1, a.ID())
	assert.Equal(t, 2, b.ID())

	assert.True(t, nb.DeleteCell(b.ID()))
	assert.False(t, nb.DeleteCell(b.ID()), "second delete is a no-op")
	assert.False(t, nb.DeleteCell(99))

	c := nb.AddCell("")
	assert.Equal(t, 3, c.ID())

	var ids []int
	for _, cell := range nb.Cells() {
		ids = append(ids, cell.ID())
	}
	assert.Equal(t, []int{1, 3}, ids)
}

func TestRender(t *testing.T) {
	tests := []struct {
		name string
		logs string
		res  kernel.Result
		want string
	}{
		{"nothing", "", kernel.Result{Undefined: true}, "No output"},
		{"logs only", "a\nb", kernel.Result{Undefined: true}, "a\nb"},
		{"value only", "", kernel.Result{Text: "3"}, "Return value: 3"},
		{"both", "hi", kernel.Result{Text: "null"}, "hi\n\nReturn value: null"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Render(tt.logs, tt.res))
		})
	}
}

func TestExecuteDisplayStrings(t *testing.T) {
	nb := newNotebook(t)
	ctx := context.Background()

	tests := []struct {
		code    string
		want    string
		wantErr bool
	}{
		{"console.log('hello'); 1 + 1", "hello\n\nReturn value: 2", false},
		{"console.log('only')", "only", false},
		{"", "No output", false},
		{"return 6 * 7", "Return value: 42", false},
		{"throw new Error('boom')", "Error: Execution error: boom", true},
	}
	for _, tt := range tests {
		c := nb.AddCell(tt.code)
		out, err := c.Execute(ctx)
		assert.Equal(t, tt.want, out, "code %q", tt.code)
		got, has := c.Output()
		assert.True(t, has)
		assert.Equal(t, out, got)
		if tt.wantErr {
			var execErr *kernel.ExecutionError
			assert.ErrorAs(t, err, &execErr)
			assert.Equal(t, StatusError, c.Status())
		} else {
			assert.NoError(t, err)
			assert.Equal(t, StatusOK, c.Status())
		}
	}
}

func TestSharedNamespaceAcrossCells(t *testing.T) {
	nb := newNotebook(t)
	ctx := context.Background()

	first := nb.AddCell("const nums = [1, 2, 3]")
	second := nb.AddCell("nums.map(n => n * 2)")

	_, err := first.Execute(ctx)
	require.NoError(t, err)
	out, err := second.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Return value: [\n  2,\n  4,\n  6\n]", out)

	// Deleting the declaring cell keeps its bindings.
	nb.DeleteCell(first.ID())
	out, err = second.Execute(ctx)
	require.NoError(t, err)
	assert.Contains(t, out, "6")
}

func TestExecuteAllContinuesAfterFailure(t *testing.T) {
	nb := newNotebook(t)
	nb.AddCell("var a = 1")
	nb.AddCell("missing.call()")
	nb.AddCell("a + 1")

	outcomes := nb.ExecuteAll(context.Background())
	require.Len(t, outcomes, 3)
	assert.NoError(t, outcomes[0].Err)
	assert.Error(t, outcomes[1].Err)
	assert.True(t, strings.HasPrefix(outcomes[1].Output, "Error: Execution error: "))
	assert.NoError(t, outcomes[2].Err)
	assert.Equal(t, "Return value: 2", outcomes[2].Output)
}

func TestUnknownCell(t *testing.T) {
	nb := newNotebook(t)
	ctx := context.Background()

	_, err := nb.Execute(ctx, 7)
	assert.ErrorIs(t, err, ErrCellNotFound)
	assert.ErrorIs(t, nb.UpdateCode(7, "x"), ErrCellNotFound)
	_, err = nb.Generate(ctx, 7, fakeGenerator{}, "x")
	assert.ErrorIs(t, err, ErrCellNotFound)
}

func TestUpdateCodeKeepsOutput(t *testing.T) {
	nb := newNotebook(t)
	c := nb.AddCell("1")
	_, err := c.Execute(context.Background())
	require.NoError(t, err)

	require.NoError(t, nb.UpdateCode(c.ID(), "2"))
	assert.Equal(t, "2", c.Code())
	out, _ := c.Output()
	assert.Equal(t, "Return value: 1", out)
}

func TestRecorder(t *testing.T) {
	var mu sync.Mutex
	var got []Execution
	rec := RecorderFunc(func(_ context.Context, e Execution) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e)
		return errors.New("journal unavailable")
	})

	nb := newNotebook(t, WithRecorder(rec), WithSessionID("s-1"))
	c := nb.AddCell("40 + 2")
	out, err := c.Execute(context.Background())
	require.NoError(t, err, "recorder errors never fail the execution")

	require.Len(t, got, 1)
	e := got[0]
	assert.Equal(t, "s-1", e.SessionID)
	assert.Equal(t, c.ID(), e.CellID)
	assert.Equal(t, "40 + 2", e.Code)
	assert.Equal(t, out, e.Output)
	assert.Equal(t, StatusOK, e.Status)
	assert.False(t, e.At.IsZero())
}

func TestTimeout(t *testing.T) {
	nb := newNotebook(t, WithTimeout(50*time.Millisecond))
	c := nb.AddCell("while (true) {}")

	out, err := c.Execute(context.Background())
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, out, "execution interrupted")

	next := nb.AddCell("'still alive'")
	out, err = next.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, `Return value: "still alive"`, out)
}

func TestReset(t *testing.T) {
	nb := newNotebook(t)
	c := nb.AddCell("var x = 1")
	_, err := c.Execute(context.Background())
	require.NoError(t, err)
	require.Len(t, nb.Namespace(), 1)

	nb.Reset()
	assert.Empty(t, nb.Namespace())
	assert.Equal(t, 1, nb.Len(), "cells survive a reset")
}

type fakeGenerator struct {
	snippet codegen.Snippet
	err     error
}

func (f fakeGenerator) Generate(context.Context, string) (codegen.Snippet, error) {
	return f.snippet, f.err
}

func TestGenerate(t *testing.T) {
	nb := newNotebook(t)
	c := nb.AddCell("old()")
	ctx := context.Background()

	out, err := nb.Generate(ctx, c.ID(), fakeGenerator{err: errors.New("quota exceeded")}, "anything")
	assert.Error(t, err)
	assert.Equal(t, "Error generating code: quota exceeded", out)
	assert.Equal(t, "old()", c.Code(), "code is kept on failure")
	assert.Equal(t, StatusError, c.Status())

	gen := fakeGenerator{snippet: codegen.Snippet{Code: "console.log('hi')", Description: "Logs hi."}}
	out, err = nb.Generate(ctx, c.ID(), gen, "say hi")
	require.NoError(t, err)
	assert.Equal(t, "Code generated successfully:\nLogs hi.", out)
	assert.Equal(t, "console.log('hi')", c.Code())
	assert.Equal(t, StatusGenerated, c.Status())

	out, err = c.Execute(ctx)
	require.NoError(t, err)
	assert.Equal(t, "hi", out)
}

func TestSnapshot(t *testing.T) {
	nb := newNotebook(t)
	c := nb.AddCell("1")
	_, err := c.Execute(context.Background())
	require.NoError(t, err)

	got := c.Snapshot()
	got.DurationMS = 0
	want := Snapshot{ID: 1, Code: "1", Output: "Return value: 1", HasOutput: true, Status: StatusOK}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestNewKernel(t *testing.T) {
	k, err := NewKernel(config.KernelConfig{Language: config.LanguageJavaScript, Declarations: config.DeclarationsSyntax}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "javascript", k.Language())

	k, err = NewKernel(config.KernelConfig{Language: config.LanguageGo}, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "go", k.Language())
	assert.Equal(t, ExampleGoCell, New(k).Cells()[0].Code())

	_, err = NewKernel(config.KernelConfig{Language: "cobol"}, nil, nil)
	assert.Error(t, err)
}
