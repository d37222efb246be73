// Package jsk is the JavaScript kernel. Snippets run in one embedded goja
// runtime; top-level declarations are captured in the same pass that
// produces the completion value and merged into the shared namespace.
package jsk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"github.com/dop251/goja/ast"

	"nerdbook/internal/console"
	"nerdbook/internal/kernel"
	"nerdbook/internal/logging"
	"nerdbook/internal/namespace"
)

// Language is the value reported by Kernel.Language.
const Language = "javascript"

// Identifiers with this prefix are reserved for the evaluation wrapper.
const reservedPrefix = "$nb$"

// Kernel evaluates JavaScript snippets against a persistent namespace.
type Kernel struct {
	mu      sync.Mutex
	vm      *goja.Runtime
	ns      *namespace.Namespace[goja.Value]
	scanner namespace.Scanner
	console *console.Console
	warn    kernel.WarningHandler
}

var _ kernel.Kernel = (*Kernel)(nil)

// Option configures a Kernel.
type Option func(*Kernel)

// WithScanner selects how declared names are discovered. The default is the
// lexical scanner.
func WithScanner(s namespace.Scanner) Option {
	return func(k *Kernel) { k.scanner = s }
}

// WithConsole sets the sink console.* calls are routed to.
func WithConsole(c *console.Console) Option {
	return func(k *Kernel) { k.console = c }
}

// WithWarningHandler registers an observer for extraction warnings.
func WithWarningHandler(h kernel.WarningHandler) Option {
	return func(k *Kernel) { k.warn = h }
}

// New creates a JavaScript kernel with an empty namespace.
func New(opts ...Option) *Kernel {
	k := &Kernel{
		ns:      namespace.New[goja.Value](),
		scanner: namespace.NewLexicalScanner(),
	}
	for _, opt := range opts {
		opt(k)
	}
	if k.console == nil {
		k.console = console.New(nil)
	}
	k.vm = k.newRuntime()
	return k
}

func (k *Kernel) newRuntime() *goja.Runtime {
	vm := goja.New()
	installConsole(vm, k.console)
	return vm
}

// Language returns "javascript".
func (k *Kernel) Language() string { return Language }

// Console returns the console snippets write to.
func (k *Kernel) Console() *console.Console { return k.console }

// =============================================================================
// EVALUATION
// =============================================================================

// evalWrapper receives the namespace positionally, runs the snippet through a
// direct eval so its completion value is observable, and hands back the
// capture closure the snippet prefix installed.
const evalWrapper = `(function(%s) {
	var $nb$capture;
	var $nb$value = eval($nb$src);
	return [$nb$value, $nb$capture];
})`

// Evaluate runs code once against the namespace. See kernel.Kernel.
func (k *Kernel) Evaluate(ctx context.Context, code string) (res kernel.Result, err error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	timer := logging.StartTimer(logging.CategoryKernel, "evaluate")
	defer timer.Stop()

	if err := ctx.Err(); err != nil {
		return kernel.Result{}, kernel.NewExecutionError(code, "execution interrupted: "+err.Error(), err)
	}

	defer func() {
		if r := recover(); r != nil {
			logging.KernelError("panic during evaluation: %v", r)
			err = kernel.NewExecutionError(code, fmt.Sprint(r), fmt.Errorf("panic: %v", r))
			res = kernel.Result{}
		}
	}()

	prog, body, perr := namespace.ParseSnippet(code)
	if perr != nil {
		logging.KernelDebug("parse failed: %v", perr)
		return kernel.Result{}, kernel.NewExecutionError(code, perr.Error(), perr)
	}

	declared, serr := k.scanner.Declarations(code)
	if serr != nil {
		return kernel.Result{}, kernel.NewExecutionError(code, serr.Error(), serr)
	}
	declared = filterNames(declared)

	params, args := k.injected()
	var src string
	if body {
		src = buildBodySource(code, declared)
	} else {
		src = buildSource(code, declared, completionName(prog))
	}
	logging.KernelDebug("evaluate: %d bindings injected, declared=%v", len(params), declared)

	stop := k.watch(ctx)
	defer stop()

	wrapper, werr := k.vm.RunString(fmt.Sprintf(evalWrapper, strings.Join(append(params, reservedPrefix+"src"), ", ")))
	if werr != nil {
		return kernel.Result{}, k.executionError(ctx, code, werr)
	}
	call, ok := goja.AssertFunction(wrapper)
	if !ok {
		return kernel.Result{}, kernel.NewExecutionError(code, "evaluation wrapper is not callable", nil)
	}

	out, cerr := call(goja.Undefined(), append(args, k.vm.ToValue(src))...)
	if cerr != nil {
		return kernel.Result{}, k.executionError(ctx, code, cerr)
	}

	pair := out.ToObject(k.vm)
	value := pair.Get("0")
	if value == nil {
		value = goja.Undefined()
	}

	if len(declared) > 0 {
		if bindings, cerr := k.capture(pair.Get("1"), declared); cerr != nil {
			w := &kernel.ExtractionWarning{Names: declared, Cause: cerr}
			logging.KernelWarn("%v", w)
			if k.warn != nil {
				k.warn(w)
			}
		} else {
			k.ns.Merge(bindings)
			logging.KernelDebug("merged %d bindings (namespace size %d)", len(bindings), k.ns.Len())
		}
	}

	// Formatting runs JavaScript too; it must not see a late interrupt.
	stop()

	return kernel.Result{
		Value:     value.Export(),
		Text:      formatResult(k.vm, value),
		Undefined: goja.IsUndefined(value),
	}, nil
}

// injected returns the namespace names that can be passed as parameters and
// their values in the same order.
func (k *Kernel) injected() ([]string, []goja.Value) {
	var params []string
	var args []goja.Value
	for _, b := range k.ns.Bindings() {
		if !injectable(b.Name) {
			continue
		}
		params = append(params, b.Name)
		args = append(args, b.Value)
	}
	return params, args
}

// buildSource prefixes code with the capture closure and, when the last
// statement is a declaration, suffixes the declared name so it becomes the
// completion value. The prefix stays on the first line so line numbers in
// error positions match the snippet.
func buildSource(code string, declared []string, completion string) string {
	var b strings.Builder
	writeCapture(&b, declared)
	b.WriteString(code)
	if completion != "" {
		b.WriteString("\n;" + completion)
	}
	return b.String()
}

// buildBodySource runs a snippet that returns at top level as the body of a
// function called in place; its return value is the completion value. The
// capture closure is installed inside that function so it sees the body's
// declarations.
func buildBodySource(code string, declared []string) string {
	var b strings.Builder
	b.WriteString("(function() { ")
	writeCapture(&b, declared)
	b.WriteString(code)
	b.WriteString("\n}).call(this)")
	return b.String()
}

func writeCapture(b *strings.Builder, declared []string) {
	b.WriteString("void (" + reservedPrefix + "capture = function() { return {")
	for i, name := range declared {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(name + ": " + name)
	}
	b.WriteString("}; }); ")
}

// completionName returns the last name declared by the final top-level
// statement when it is a variable declaration.
func completionName(prog *ast.Program) string {
	if len(prog.Body) == 0 {
		return ""
	}
	name, ok := namespace.LastDeclared(prog.Body[len(prog.Body)-1])
	if !ok || !injectable(name) {
		return ""
	}
	return name
}

func (k *Kernel) capture(fn goja.Value, declared []string) ([]namespace.Binding[goja.Value], error) {
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, errors.New("capture closure was not installed")
	}
	obj, err := call(goja.Undefined())
	if err != nil {
		return nil, err
	}
	o := obj.ToObject(k.vm)
	bindings := make([]namespace.Binding[goja.Value], 0, len(declared))
	for _, name := range declared {
		v := o.Get(name)
		if v == nil {
			v = goja.Undefined()
		}
		bindings = append(bindings, namespace.Binding[goja.Value]{Name: name, Value: v})
	}
	return bindings, nil
}

// watch interrupts the runtime when ctx is done. The returned func stops the
// watcher and clears any pending interrupt; calling it again is a no-op.
func (k *Kernel) watch(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	stop := make(chan struct{})
	exited := make(chan struct{})
	var once sync.Once
	go func() {
		defer close(exited)
		select {
		case <-ctx.Done():
			logging.KernelWarn("interrupting snippet: %v", ctx.Err())
			k.vm.Interrupt(ctx.Err())
		case <-stop:
		}
	}()
	return func() {
		once.Do(func() {
			close(stop)
			<-exited
			k.vm.ClearInterrupt()
		})
	}
}

func (k *Kernel) executionError(ctx context.Context, code string, err error) *kernel.ExecutionError {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		cause := ctx.Err()
		if cause == nil {
			cause = err
		}
		return kernel.NewExecutionError(code, "execution interrupted: "+cause.Error(), cause)
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return kernel.NewExecutionError(code, exceptionMessage(ex), err)
	}
	return kernel.NewExecutionError(code, err.Error(), err)
}

// exceptionMessage returns the thrown error's message property, or the thrown
// value itself when it is not an error object.
func exceptionMessage(ex *goja.Exception) string {
	v := ex.Value()
	if v == nil {
		return ex.Error()
	}
	if obj, ok := v.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			return m.String()
		}
	}
	return v.String()
}

// =============================================================================
// INSPECTION
// =============================================================================

// Bindings lists the namespace in declaration order.
func (k *Kernel) Bindings() []kernel.Binding {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]kernel.Binding, 0, k.ns.Len())
	for _, b := range k.ns.Bindings() {
		out = append(out, kernel.Binding{
			Name:    b.Name,
			Type:    typeOf(b.Value),
			Preview: preview(formatResult(k.vm, b.Value)),
		})
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
	return formatResult(k.vm, v), true
}

// Reset clears the namespace and replaces the runtime.
func (k *Kernel) Reset() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.ns.Clear()
	k.vm = k.newRuntime()
	logging.Kernel("javascript kernel reset")
}

// =============================================================================
// NAMES
// =============================================================================

var reservedWords = map[string]bool{
	"break": true, "case": true, "catch": true, "class": true, "const": true,
	"continue": true, "debugger": true, "default": true, "delete": true, "do": true,
	"else": true, "enum": true, "export": true, "extends": true, "false": true,
	"finally": true, "for": true, "function": true, "if": true, "import": true,
	"in": true, "instanceof": true, "new": true, "null": true, "return": true,
	"super": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "var": true, "void": true, "while": true,
	"with": true, "yield": true, "let": true, "static": true, "await": true,
	"implements": true, "interface": true, "package": true, "private": true,
	"protected": true, "public": true,
}

// injectable reports whether name can be a wrapper parameter and a key of the
// capture object.
func injectable(name string) bool {
	switch {
	case name == "eval", name == "arguments":
		return false
	case strings.HasPrefix(name, reservedPrefix):
		return false
	case reservedWords[name]:
		return false
	}
	return true
}

func filterNames(names []string) []string {
	out := names[:0:0]
	for _, n := range names {
		if injectable(n) {
			out = append(out, n)
		} else {
			logging.KernelDebug("skipping declared name %q", n)
		}
	}
	return out
}
