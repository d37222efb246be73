package namespace

import (
	"strings"

	"github.com/dop251/goja/ast"
	"github.com/dop251/goja/parser"
)

// SyntaxScanner parses the snippet and reports the names declared by its
// top-level statements, including destructuring targets and classes.
// Declarations nested in blocks or functions are not reported.
type SyntaxScanner struct{}

// Declarations parses code and returns its top-level declared names.
func (SyntaxScanner) Declarations(code string) ([]string, error) {
	prog, _, err := ParseSnippet(code)
	if err != nil {
		return nil, err
	}
	return ProgramDeclarations(prog), nil
}

// ParseSnippet parses code as a script. A snippet that returns at top level
// is parsed as a function body instead and body is true; the returned
// program then holds the statements of that body.
func ParseSnippet(code string) (prog *ast.Program, body bool, err error) {
	prog, err = parser.ParseFile(nil, "", code, 0)
	if err == nil {
		return prog, false, nil
	}
	if !strings.Contains(err.Error(), "Illegal return statement") {
		return nil, false, err
	}

	// The opening line is shared with the snippet so line numbers match.
	wrapped, werr := parser.ParseFile(nil, "", "function snippet() { "+code+"\n}", 0)
	if werr != nil {
		return nil, false, werr
	}
	if len(wrapped.Body) != 1 {
		return nil, false, err
	}
	decl, ok := wrapped.Body[0].(*ast.FunctionDeclaration)
	if !ok || decl.Function == nil || decl.Function.Body == nil {
		return nil, false, err
	}
	return &ast.Program{Body: decl.Function.Body.List}, true, nil
}

// ProgramDeclarations returns the names declared at the top level of prog in
// source order, without duplicates.
func ProgramDeclarations(prog *ast.Program) []string {
	c := &collector{seen: make(map[string]bool)}
	for _, stmt := range prog.Body {
		switch s := stmt.(type) {
		case *ast.VariableStatement:
			c.bindings(s.List)
		case *ast.LexicalDeclaration:
			c.bindings(s.List)
		case *ast.FunctionDeclaration:
			if s.Function != nil && s.Function.Name != nil {
				c.add(string(s.Function.Name.Name))
			}
		case *ast.ClassDeclaration:
			if s.Class != nil && s.Class.Name != nil {
				c.add(string(s.Class.Name.Name))
			}
		}
	}
	return c.names
}

// LastDeclared returns the final name declared by stmt when it is a variable
// or lexical declaration.
func LastDeclared(stmt ast.Statement) (string, bool) {
	var list []*ast.Binding
	switch s := stmt.(type) {
	case *ast.VariableStatement:
		list = s.List
	case *ast.LexicalDeclaration:
		list = s.List
	default:
		return "", false
	}
	c := &collector{seen: make(map[string]bool)}
	c.bindings(list)
	if len(c.names) == 0 {
		return "", false
	}
	return c.names[len(c.names)-1], true
}

type collector struct {
	names []string
	seen  map[string]bool
}

func (c *collector) add(name string) {
	if name == "" || c.seen[name] {
		return
	}
	c.seen[name] = true
	c.names = append(c.names, name)
}

func (c *collector) bindings(list []*ast.Binding) {
	for _, b := range list {
		if b != nil {
			c.target(b.Target)
		}
	}
}

func (c *collector) target(expr ast.Expression) {
	switch t := expr.(type) {
	case *ast.Identifier:
		c.add(string(t.Name))
	case *ast.ArrayPattern:
		for _, el := range t.Elements {
			c.target(el)
		}
		c.target(t.Rest)
	case *ast.ObjectPattern:
		for _, prop := range t.Properties {
			switch p := prop.(type) {
			case *ast.PropertyShort:
				c.add(string(p.Name.Name))
			case *ast.PropertyKeyed:
				c.target(p.Value)
			}
		}
		c.target(t.Rest)
	case *ast.AssignExpression:
		// element with a default value
		c.target(t.Left)
	}
}
