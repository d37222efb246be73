package namespace

import (
	"regexp"
	"sort"
)

// Scanner discovers the names a snippet declares. Only declarations are
// reported; plain assignments never are.
type Scanner interface {
	Declarations(code string) ([]string, error)
}

// Identifier is the identifier charset accepted by the lexical scanners.
const Identifier = `[a-zA-Z_$][a-zA-Z0-9_$]*`

var (
	jsVariablePattern = regexp.MustCompile(`\b(?:let|const|var)\s+(` + Identifier + `)`)
	jsFunctionPattern = regexp.MustCompile(`\bfunction\s+(` + Identifier + `)`)

	goVariablePattern = regexp.MustCompile(`\b(?:var|const)\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	goFunctionPattern = regexp.MustCompile(`\bfunc\s+([a-zA-Z_][a-zA-Z0-9_]*)`)
	goShortDeclare    = regexp.MustCompile(`(?m)^\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*:=`)
)

// LexicalScanner matches declaration sites with regular expressions over the
// whole text. It misses destructuring and does not understand scope, so a
// `let` inside a block is reported as if it were top level.
type LexicalScanner struct {
	patterns []*regexp.Regexp
}

// NewLexicalScanner returns the JavaScript scanner recognizing
// `let|const|var <ident>` and `function <ident>`.
func NewLexicalScanner() *LexicalScanner {
	return &LexicalScanner{patterns: []*regexp.Regexp{jsVariablePattern, jsFunctionPattern}}
}

// NewGoLexicalScanner returns the Go flavour recognizing `var|const <ident>`,
// `func <ident>` and `<ident> :=` at line start.
func NewGoLexicalScanner() *LexicalScanner {
	return &LexicalScanner{patterns: []*regexp.Regexp{goVariablePattern, goFunctionPattern, goShortDeclare}}
}

type match struct {
	pos  int
	name string
}

// Declarations returns every matched name in order of first appearance.
func (s *LexicalScanner) Declarations(code string) ([]string, error) {
	var matches []match
	for _, re := range s.patterns {
		for _, loc := range re.FindAllStringSubmatchIndex(code, -1) {
			matches = append(matches, match{pos: loc[2], name: code[loc[2]:loc[3]]})
		}
	}
	sort.SliceStable(matches, func(i, j int) bool { return matches[i].pos < matches[j].pos })

	seen := make(map[string]bool, len(matches))
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		if seen[m.name] {
			continue
		}
		seen[m.name] = true
		names = append(names, m.name)
	}
	return names, nil
}
