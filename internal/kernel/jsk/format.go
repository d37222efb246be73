package jsk

import (
	"math/big"
	"strings"

	"github.com/dop251/goja"

	"nerdbook/internal/console"
)

// previewLimit bounds the single-line previews shown by Bindings.
const previewLimit = 80

// installConsole binds console.log/info/warn/error to c.
func installConsole(vm *goja.Runtime, c *console.Console) {
	obj := vm.NewObject()
	methods := map[string]console.Level{
		"log":   console.LevelLog,
		"info":  console.LevelInfo,
		"warn":  console.LevelWarn,
		"error": console.LevelError,
		"debug": console.LevelLog,
	}
	for name, lvl := range methods {
		lvl := lvl
		_ = obj.Set(name, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = formatArg(vm, arg)
			}
			c.Emit(lvl, parts...)
			return goja.Undefined()
		})
	}
	_ = vm.Set("console", obj)
}

// formatArg renders one console argument: objects and arrays as indented
// JSON, everything else stringified.
func formatArg(vm *goja.Runtime, v goja.Value) string {
	if obj, ok := v.(*goja.Object); ok {
		if _, isFn := goja.AssertFunction(obj); !isFn {
			if s, ok := stringify(vm, obj); ok {
				return s
			}
		}
	}
	return toString(v)
}

// formatResult renders a completion value: undefined and null literally,
// functions by their source text, other values as indented JSON with a plain
// string cast as fallback.
func formatResult(vm *goja.Runtime, v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if _, isFn := goja.AssertFunction(v); isFn {
		return toString(v)
	}
	if s, ok := stringify(vm, v); ok {
		return s
	}
	return toString(v)
}

// stringify calls JSON.stringify(v, undefined, 2). It reports false when
// serialization throws or yields undefined.
func stringify(vm *goja.Runtime, v goja.Value) (s string, ok bool) {
	defer func() {
		if recover() != nil {
			s, ok = "", false
		}
	}()
	json := vm.Get("JSON")
	if json == nil {
		return "", false
	}
	fn, isFn := goja.AssertFunction(json.ToObject(vm).Get("stringify"))
	if !isFn {
		return "", false
	}
	out, err := fn(json, v, goja.Undefined(), vm.ToValue(2))
	if err != nil || out == nil || goja.IsUndefined(out) {
		return "", false
	}
	return out.String(), true
}

// toString is String(v) that never panics; objects whose toString throws
// fall back to their class name.
func toString(v goja.Value) (s string) {
	defer func() {
		if recover() != nil {
			if obj, ok := v.(*goja.Object); ok {
				s = "[object " + obj.ClassName() + "]"
			} else {
				s = "[unprintable]"
			}
		}
	}()
	return v.String()
}

// typeOf mirrors the typeof operator, with "array" and "null" split out.
func typeOf(v goja.Value) string {
	switch {
	case v == nil || goja.IsUndefined(v):
		return "undefined"
	case goja.IsNull(v):
		return "null"
	}
	if obj, ok := v.(*goja.Object); ok {
		if _, isFn := goja.AssertFunction(obj); isFn {
			return "function"
		}
		if obj.ClassName() == "Array" {
			return "array"
		}
		return "object"
	}
	switch v.Export().(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case int64, float64:
		return "number"
	case *big.Int:
		return "bigint"
	default:
		return "symbol"
	}
}

// preview collapses a display string onto one bounded line.
func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if r := []rune(s); len(r) > previewLimit {
		return string(r[:previewLimit-3]) + "..."
	}
	return s
}
