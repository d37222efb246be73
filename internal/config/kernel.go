package config

// Kernel languages.
const (
	LanguageJavaScript = "javascript"
	LanguageGo         = "go"
)

// Declaration discovery modes.
const (
	DeclarationsLexical = "lexical"
	DeclarationsSyntax  = "syntax"
)

var (
	ValidLanguages        = []string{LanguageJavaScript, LanguageGo}
	ValidDeclarationModes = []string{DeclarationsLexical, DeclarationsSyntax}
)

// KernelConfig configures the script kernel shared by every cell.
type KernelConfig struct {
	Language     string `yaml:"language"`     // javascript, go
	Declarations string `yaml:"declarations"` // lexical, syntax
	Timeout      string `yaml:"timeout"`      // per-snippet limit, "0s" disables
	EchoConsole  bool   `yaml:"echo_console"` // also print console output to stderr
}
