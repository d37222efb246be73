package notebook

import (
	"fmt"

	"nerdbook/internal/config"
	"nerdbook/internal/console"
	"nerdbook/internal/kernel"
	"nerdbook/internal/kernel/gok"
	"nerdbook/internal/kernel/jsk"
	"nerdbook/internal/namespace"
)

// NewKernel builds the kernel selected by cfg. Console output goes to c;
// warn may be nil.
func NewKernel(cfg config.KernelConfig, c *console.Console, warn kernel.WarningHandler) (kernel.Kernel, error) {
	switch cfg.Language {
	case config.LanguageJavaScript, "":
		var scanner namespace.Scanner = namespace.NewLexicalScanner()
		if cfg.Declarations == config.DeclarationsSyntax {
			scanner = namespace.SyntaxScanner{}
		}
		return jsk.New(
			jsk.WithConsole(c),
			jsk.WithScanner(scanner),
			jsk.WithWarningHandler(warn),
		), nil
	case config.LanguageGo:
		k, err := gok.New(gok.WithConsole(c), gok.WithWarningHandler(warn))
		if err != nil {
			return nil, err
		}
		return k, nil
	default:
		return nil, fmt.Errorf("unsupported kernel language: %s", cfg.Language)
	}
}
