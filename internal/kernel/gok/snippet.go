package gok

import (
	"go/ast"
	"go/parser"
	"go/token"
	"strings"
)

// endsInExpression reports whether the last top-level node of a snippet is an
// expression statement, the only case where the interpreter's value is the
// snippet's result. Snippets are read the way the interpreter reads them: as
// file-level declarations first, then as the body of a function. A snippet
// neither form accepts is left to the interpreter.
func endsInExpression(code string) bool {
	fset := token.NewFileSet()
	src := code
	if !strings.HasPrefix(strings.TrimSpace(code), "package ") {
		src = "package main\n" + code
	}
	if _, err := parser.ParseFile(fset, "", src, parser.SkipObjectResolution); err == nil {
		return false
	}

	f, err := parser.ParseFile(fset, "", "package main\nfunc main() {\n"+code+"\n}", parser.SkipObjectResolution)
	if err != nil || len(f.Decls) == 0 {
		return true
	}
	fn, ok := f.Decls[len(f.Decls)-1].(*ast.FuncDecl)
	if !ok || fn.Body == nil || len(fn.Body.List) == 0 {
		return false
	}
	_, ok = fn.Body.List[len(fn.Body.List)-1].(*ast.ExprStmt)
	return ok
}
