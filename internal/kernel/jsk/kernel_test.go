package jsk

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"nerdbook/internal/console"
	"nerdbook/internal/kernel"
	"nerdbook/internal/namespace"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func names(k *Kernel) []string {
	var out []string
	for _, b := range k.Bindings() {
		out = append(out, b.Name)
	}
	return out
}

func eval(t *testing.T, k *Kernel, code string) kernel.Result {
	t.Helper()
	res, err := k.Evaluate(context.Background(), code)
	require.NoError(t, err, "evaluating %q", code)
	return res
}

// =============================================================================
// NAMESPACE PROPAGATION
// =============================================================================

func TestNoDeclarationsLeavesNamespaceUnchanged(t *testing.T) {
	k := New()
	eval(t, k, "let a = 1")

	res := eval(t, k, "1 + 2")
	assert.Equal(t, "3", res.Text)
	assert.Equal(t, int64(3), res.Value)
	assert.Equal(t, []string{"a"}, names(k))
}

func TestDeclarationsPropagate(t *testing.T) {
	k := New()
	eval(t, k, `let a = 1; const b = "two"; function f() { return a * 10 }`)

	assert.Equal(t, []string{"a", "b", "f"}, names(k))
	assert.Equal(t, "1", eval(t, k, "a").Text)
	assert.Equal(t, `"two"`, eval(t, k, "b").Text)
	assert.Equal(t, "10", eval(t, k, "f()").Text)
}

func TestRedeclarationOverwrites(t *testing.T) {
	k := New()
	eval(t, k, "let x = 1")
	eval(t, k, "let x = 2")
	assert.Equal(t, "2", eval(t, k, "x").Text)

	eval(t, k, "var x = 3")
	assert.Equal(t, "3", eval(t, k, "x").Text)
	assert.Equal(t, []string{"x"}, names(k))
}

func TestUndeclaredNameFails(t *testing.T) {
	k := New()
	_, err := k.Evaluate(context.Background(), "missing + 1")

	var execErr *kernel.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Contains(t, execErr.Message(), "missing")
	assert.Contains(t, err.Error(), "Execution error: ")
	assert.Equal(t, "missing + 1", execErr.Code)
	assert.Empty(t, names(k))
}

func TestPlainReassignmentIsNotPropagated(t *testing.T) {
	k := New()
	eval(t, k, "let x = 1")

	res := eval(t, k, "x = 3")
	assert.Equal(t, "3", res.Text, "the assignment is still the completion value")
	assert.Equal(t, "1", eval(t, k, "x").Text)
}

func TestFibonacciScenario(t *testing.T) {
	k := New()
	res := eval(t, k, "function fib(n){return n<=1?n:fib(n-1)+fib(n-2)}")
	assert.True(t, res.Undefined)

	res = eval(t, k, "var nums=[0,1,2,3,4].map(fib)")
	assert.False(t, res.Undefined)
	assert.Equal(t, []interface{}{int64(0), int64(1), int64(1), int64(2), int64(3)}, res.Value)
	assert.Equal(t, "[\n  0,\n  1,\n  1,\n  2,\n  3\n]", res.Text)
	assert.Equal(t, []string{"fib", "nums"}, names(k))
}

func TestNoPartialBindingsOnError(t *testing.T) {
	k := New()
	eval(t, k, "let keep = 1")

	_, err := k.Evaluate(context.Background(), `let p = 1; let q = 2; throw new Error("boom")`)
	var execErr *kernel.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "boom", execErr.Message())
	assert.Equal(t, "Execution error: boom", err.Error())
	assert.Equal(t, []string{"keep"}, names(k))
}

func TestThrownNonError(t *testing.T) {
	k := New()
	_, err := k.Evaluate(context.Background(), `throw "plain string"`)
	var execErr *kernel.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "plain string", execErr.Message())
}

func TestSyntaxErrorRunsNothing(t *testing.T) {
	k := New()
	c := k.Console()
	var lines []string
	c.SetHandler(console.LevelLog, func(parts ...string) { lines = append(lines, parts...) })

	_, err := k.Evaluate(context.Background(), `console.log("ran"); let = ;`)
	var execErr *kernel.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Empty(t, lines)
	assert.Empty(t, names(k))
}

// =============================================================================
// SINGLE PASS AND OUTPUT INTERCEPTION
// =============================================================================

func TestSideEffectsRunOnce(t *testing.T) {
	k := New()
	ic := console.NewInterceptor(k.Console())
	require.NoError(t, ic.Begin())
	eval(t, k, `console.log("once"); var counter = 1; function bump() { counter++ }`)
	ic.End()

	assert.Equal(t, []string{"once"}, ic.Lines())
	assert.Equal(t, "1", eval(t, k, "counter").Text)
}

func TestInterceptionSurvivesThrow(t *testing.T) {
	k := New()
	var outside []string
	k.Console().SetHandler(console.LevelLog, func(parts ...string) { outside = append(outside, parts...) })

	ic := console.NewInterceptor(k.Console())
	var err error
	func() {
		require.NoError(t, ic.Begin())
		defer ic.End()
		_, err = k.Evaluate(context.Background(), `console.log("hello"); console.log("hello"); throw new Error("fail")`)
	}()

	var execErr *kernel.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, []string{"hello", "hello"}, ic.Lines())

	eval(t, k, `console.log("unrelated")`)
	assert.Equal(t, []string{"hello", "hello"}, ic.Lines(), "sink restored after End")
	assert.Equal(t, []string{"hello", "hello", "unrelated"}, outside)
}

func TestConsoleArgumentFormatting(t *testing.T) {
	k := New()
	ic := console.NewInterceptor(k.Console())
	require.NoError(t, ic.Begin())
	defer ic.End()

	eval(t, k, `console.log("n", 1, {a: 1}, [1], null, undefined, true)`)
	eval(t, k, `console.warn("w"); console.error("e"); console.info("i")`)

	want := []string{
		"n 1 {\n  \"a\": 1\n} [\n  1\n] null undefined true",
		"w",
		"e",
		"i",
	}
	if diff := cmp.Diff(want, ic.Lines()); diff != "" {
		t.Errorf("captured lines mismatch (-want +got):\n%s", diff)
	}
}

// =============================================================================
// EXTRACTION
// =============================================================================

func TestExtractionWarningKeepsResult(t *testing.T) {
	var warnings []*kernel.ExtractionWarning
	k := New(WithWarningHandler(func(w *kernel.ExtractionWarning) { warnings = append(warnings, w) }))

	res := eval(t, k, "var outer = 1; if (true) { let inner = 2 }; 5")
	assert.Equal(t, "5", res.Text)

	require.Len(t, warnings, 1)
	assert.Equal(t, []string{"outer", "inner"}, warnings[0].Names)
	assert.Error(t, warnings[0].Cause)
	assert.Empty(t, names(k), "a failed capture merges nothing")
}

func TestSyntaxScannerHandlesDestructuring(t *testing.T) {
	k := New(WithScanner(namespace.SyntaxScanner{}))
	eval(t, k, "const {a, b: [c]} = {a: 1, b: [2]}; if (true) { let inner = 3 }")

	assert.Equal(t, []string{"a", "c"}, names(k))
	assert.Equal(t, "2", eval(t, k, "c").Text)
}

func TestClassDeclarationWithSyntaxScanner(t *testing.T) {
	k := New(WithScanner(namespace.SyntaxScanner{}))
	eval(t, k, "class Point { constructor(x) { this.x = x } }")
	assert.Equal(t, "7", eval(t, k, "new Point(7).x").Text)
}

func TestInjectable(t *testing.T) {
	assert.True(t, injectable("x"))
	assert.True(t, injectable("$el"))
	assert.False(t, injectable("eval"))
	assert.False(t, injectable("arguments"))
	assert.False(t, injectable("$nb$src"))
	assert.False(t, injectable("function"))
}

func TestReservedWordFromStringLiteralIsIgnored(t *testing.T) {
	k := New()
	res := eval(t, k, `var msg = "let function"`)
	assert.Equal(t, `"let function"`, res.Text)
	assert.Equal(t, []string{"msg"}, names(k))
}

// =============================================================================
// COMPLETION VALUES AND FORMATTING
// =============================================================================

func TestCompletionValues(t *testing.T) {
	tests := []struct {
		name      string
		code      string
		text      string
		undefined bool
	}{
		{"expression", "2 * 21", "42", false},
		{"string", `"hi"`, `"hi"`, false},
		{"let declaration", `let s = "hi"`, `"hi"`, false},
		{"multiple declarators", "var a = 1, b = 2", "2", false},
		{"function declaration", "function g() {}", "undefined", true},
		{"trailing statement", "if (true) {}", "undefined", true},
		{"empty", "", "undefined", true},
		{"null", "null", "null", false},
		{"object", "({a: [1, 2]})", "{\n  \"a\": [\n    1,\n    2\n  ]\n}", false},
		{"function value", "(function add(a, b) { return a + b })", "function add(a, b) { return a + b }", false},
		{"cyclic falls back to string", "var o = {}; o.self = o; o", "[object Object]", false},
		{"trailing comment", "let c = 1 // done", "1", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := eval(t, New(), tt.code)
			assert.Equal(t, tt.text, res.Text)
			assert.Equal(t, tt.undefined, res.Undefined)
		})
	}
}

func TestTopLevelReturn(t *testing.T) {
	k := New()

	res := eval(t, k, "return 6 * 7")
	assert.Equal(t, "42", res.Text)
	assert.False(t, res.Undefined)
	assert.Empty(t, names(k))

	res = eval(t, k, "let total = 6 * 7\nfunction half(n) { return n / 2 }\nreturn half(total)")
	assert.Equal(t, "21", res.Text)
	assert.Equal(t, []string{"total", "half"}, names(k))
	assert.Equal(t, "43", eval(t, k, "total + 1").Text)

	res = eval(t, k, "if (total > 40) return 'big'\nreturn 'small'")
	assert.Equal(t, `"big"`, res.Text)

	res = eval(t, k, "return")
	assert.True(t, res.Undefined)
}

func TestTopLevelReturnWithSyntaxScanner(t *testing.T) {
	k := New(WithScanner(namespace.SyntaxScanner{}))
	res := eval(t, k, "const [a, b] = [1, 2]\nreturn a + b")
	assert.Equal(t, "3", res.Text)
	assert.Equal(t, []string{"a", "b"}, names(k))
}

func TestTopLevelReturnErrors(t *testing.T) {
	k := New()
	eval(t, k, "var kept = 1")

	_, err := k.Evaluate(context.Background(), "var lost = 2\nif (kept) throw new Error('nope')\nreturn lost")
	var execErr *kernel.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "nope", execErr.Message())
	assert.Equal(t, []string{"kept"}, names(k))

	_, err = k.Evaluate(context.Background(), "return let = ;")
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, []string{"kept"}, names(k))
}

func TestBindingsAndLookup(t *testing.T) {
	k := New()
	eval(t, k, `var n = 1; var s = "x"; var arr = [1]; var obj = {k: true}; function fn() {} var nil = null`)

	want := []kernel.Binding{
		{Name: "n", Type: "number", Preview: "1"},
		{Name: "s", Type: "string", Preview: `"x"`},
		{Name: "arr", Type: "array", Preview: "[ 1 ]"},
		{Name: "obj", Type: "object", Preview: `{ "k": true }`},
		{Name: "fn", Type: "function", Preview: "function fn() {}"},
		{Name: "nil", Type: "null", Preview: "null"},
	}
	if diff := cmp.Diff(want, k.Bindings()); diff != "" {
		t.Errorf("Bindings mismatch (-want +got):\n%s", diff)
	}

	text, ok := k.Lookup("arr")
	assert.True(t, ok)
	assert.Equal(t, "[\n  1\n]", text)

	_, ok = k.Lookup("absent")
	assert.False(t, ok)
}

func TestPreviewTruncates(t *testing.T) {
	long := make([]byte, 200)
	for i := range long {
		long[i] = 'a'
	}
	p := preview(string(long))
	assert.Len(t, []rune(p), previewLimit)
	assert.Equal(t, "...", p[len(p)-3:])
}

// =============================================================================
// LIFECYCLE
// =============================================================================

func TestReset(t *testing.T) {
	k := New()
	eval(t, k, "var a = 1; globalThis.leaked = 2")
	k.Reset()

	assert.Empty(t, names(k))
	_, err := k.Evaluate(context.Background(), "a")
	assert.Error(t, err)
	_, err = k.Evaluate(context.Background(), "leaked")
	assert.Error(t, err, "global state is replaced")

	assert.Equal(t, "3", eval(t, k, "1 + 2").Text)
}

func TestTimeoutInterruptsSnippet(t *testing.T) {
	k := New()
	eval(t, k, "var before = 1")

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := k.Evaluate(ctx, "var spun = 0; while (true) { spun++ }")

	var execErr *kernel.ExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Contains(t, execErr.Message(), "execution interrupted")
	assert.Equal(t, []string{"before"}, names(k))

	// The interrupt is cleared for the next evaluation.
	assert.Equal(t, "1", eval(t, k, "before").Text)
}

func TestCanceledContext(t *testing.T) {
	k := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := k.Evaluate(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLanguage(t *testing.T) {
	assert.Equal(t, "javascript", New().Language())
}
