// Package gok is the Go kernel: snippets run in one persistent yaegi
// interpreter loaded with the standard library symbols.
package gok

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/traefik/yaegi/interp"
	"github.com/traefik/yaegi/stdlib"

	"nerdbook/internal/console"
	"nerdbook/internal/kernel"
	"nerdbook/internal/logging"
	"nerdbook/internal/namespace"
)

// Language is the value reported by Kernel.Language.
const Language = "go"

const previewLimit = 80

// Kernel evaluates Go snippets. Declarations live in the interpreter itself;
// the namespace mirrors the names each successful snippet declared so they
// can be listed and inspected.
type Kernel struct {
	mu      sync.Mutex
	interp  *interp.Interpreter
	ns      *namespace.Namespace[reflect.Value]
	scanner namespace.Scanner
	console *console.Console
	stdout  *console.LineWriter
	stderr  *console.LineWriter
	warn    kernel.WarningHandler
}

var _ kernel.Kernel = (*Kernel)(nil)

// Option configures a Kernel.
type Option func(*Kernel)

// WithScanner selects how declared names are discovered. The default is the
// Go lexical scanner.
func WithScanner(s namespace.Scanner) Option {
	return func(k *Kernel) { k.scanner = s }
}

// WithConsole sets the sink interpreter stdout and stderr are routed to.
func WithConsole(c *console.Console) Option {
	return func(k *Kernel) { k.console = c }
}

// WithWarningHandler registers an observer for extraction warnings.
func WithWarningHandler(h kernel.WarningHandler) Option {
	return func(k *Kernel) { k.warn = h }
}

// New creates a Go kernel.
func New(opts ...Option) (*Kernel, error) {
	k := &Kernel{
		ns:      namespace.New[reflect.Value](),
		scanner: namespace.NewGoLexicalScanner(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.console == nil {
		k.console = console.New(nil)
	}
	k.stdout = k.console.Writer(console.LevelLog)
	k.stderr = k.console.Writer(console.LevelError)

	i, err := k.newInterpreter()
	if err != nil {
		return nil, err
	}
	k.interp = i
	return k, nil
}

func (k *Kernel) newInterpreter() (*interp.Interpreter, error) {
	i := interp.New(interp.Options{
		Stdout: k.stdout,
		Stderr: k.stderr,
	})
	if err := i.Use(stdlib.Symbols); err != nil {
		return nil, fmt.Errorf("failed to load stdlib: %w", err)
	}
	return i, nil
}

// Language returns "go".
func (k *Kernel) Language() string { return Language }

// Console returns the console interpreter output is written to.
func (k *Kernel) Console() *console.Console { return k.console }

// Evaluate runs code in the interpreter and mirrors its declarations.
// Unlike the JavaScript kernel, top-level declarations made before a failure
// stay defined in the interpreter; they are not mirrored into the namespace.
func (k *Kernel) Evaluate(ctx context.Context, code string) (res kernel.Result, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryKernel, "evaluate-go")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return kernel.Result{}, kernel.NewExecutionError(code, "execution interrupted: "+err.Error(), err)
	}

	defer func() {
		k.stdout.Flush()
		k.stderr.Flush()
		if r := recover(); r != nil {
			logging.KernelError("panic during go evaluation: %v", r)
			err = kernel.NewExecutionError(code, fmt.Sprint(r), fmt.Errorf("panic: %v", r))
			res = kernel.Result{}
		}
	}()

	declared, serr := k.scanner.Declarations(code)
	if serr != nil {
		return kernel.Result{}, kernel.NewExecutionError(code, serr.Error(), serr)
	}

	var v reflect.Value
	if ctx.Done() != nil {
		v, err = k.interp.EvalWithContext(ctx, code)
	} else {
		v, err = k.interp.Eval(code)
	}
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return kernel.Result{}, kernel.NewExecutionError(code, "execution interrupted: "+cerr.Error(), cerr)
		}
		return kernel.Result{}, kernel.NewExecutionError(code, err.Error(), err)
	}

	if len(declared) > 0 {
		bindings, cerr := k.capture(declared)
		if cerr != nil {
			w := &kernel.ExtractionWarning{Names: declared, Cause: cerr}
			logging.KernelWarn("%v", w)
			if k.warn != nil {
				k.warn(w)
			}
		} else {
			k.ns.Merge(bindings)
		}
	}

	if !v.IsValid() || !endsInExpression(code) {
		return kernel.Result{Text: "undefined", Undefined: true}, nil
	}
	return kernel.Result{
		Value: exportValue(v),
		Text:  formatValue(v),
	}, nil
}

// capture reads the current value of every declared name. Any failure
// discards the whole set.
func (k *Kernel) capture(declared []string) ([]namespace.Binding[reflect.Value], error) {
	bindings := make([]namespace.Binding[reflect.Value], 0, len(declared))
	for _, name := range declared {
		v, err := k.interp.Eval(name)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		bindings = append(bindings, namespace.Binding[reflect.Value]{Name: name, Value: v})
	}
	return bindings, nil
}

// Bindings lists the mirrored namespace in declaration order.
func (k *Kernel) Bindings() []kernel.Binding {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]kernel.Binding, 0, k.ns.Len())
	for _, b := range k.ns.Bindings() {
		typ := "invalid"
		if b.Value.IsValid() {
			typ = b.Value.Type().String()
		}
		out = append(out, kernel.Binding{Name: b.Name, Type: typ, Preview: preview(formatValue(b.Value))})
	}
	return out
}

// Lookup returns the display form of one binding.
func (k *Kernel) Lookup(name string) (string, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()

	v, ok := k.ns.Get(name)
	if !ok {
		return "", false
	}
	return formatValue(v), true
}

// Reset discards the interpreter and the namespace.
func (k *Kernel) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	i, err := k.newInterpreter()
	if err != nil {
		logging.KernelError("go kernel reset failed: %v", err)
		return
	}
	k.interp = i
	k.ns.Clear()
	logging.Kernel("go kernel reset")
}

func exportValue(v reflect.Value) (out any) {
	defer func() {
		if recover() != nil {
			out = nil
		}
	}()
	if !v.CanInterface() {
		return nil
	}
	return v.Interface()
}

// formatValue renders functions by their type, nil values literally, and
// everything else as indented JSON with fmt's %v as fallback.
func formatValue(v reflect.Value) string {
	if !v.IsValid() {
		return "undefined"
	}
	switch v.Kind() {
	case reflect.Func:
		return v.Type().String()
	case reflect.Chan, reflect.UnsafePointer:
		return fmt.Sprintf("%v", v.Type())
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice:
		if v.IsNil() {
			return "null"
		}
	}
	x := exportValue(v)
	if data, err := json.MarshalIndent(x, "", "  "); err == nil {
		return string(data)
	}
	return fmt.Sprintf("%v", x)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > previewLimit {
		return string(r[:previewLimit-3]) + "..."
	}
	return s
}
