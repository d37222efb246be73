package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nerdbook/internal/codegen"
)

// generateCmd asks the configured model for a snippet
var generateCmd = &cobra.Command{
	Use:   "generate [prompt]",
	Short: "Generate a snippet from a natural language prompt",
	Long: `Asks the configured provider (Gemini or Anthropic) for code and prints the
description followed by the code.

Requires GEMINI_API_KEY or ANTHROPIC_API_KEY, or codegen.api_key in the config.`,
	Args: cobra.MinimumNArgs(1),
	RunE: generateSnippet,
}

func generateSnippet(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()
	ctx, cancelTimeout := context.WithTimeout(ctx, cfg.GetCodegenTimeout())
	defer cancelTimeout()

	gen, err := codegen.NewGenerator(ctx, cfg)
	if err != nil {
		return err
	}
	prompt := strings.Join(args, " ")
	logger.Info("Generating code", zap.String("provider", cfg.Codegen.Provider), zap.String("model", cfg.Codegen.Model))

	snippet, err := gen.Generate(ctx, prompt)
	if err != nil {
		return fmt.Errorf("error generating code: %w", err)
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, snippet.Description)
	fmt.Fprintln(out)
	fmt.Fprintln(out, snippet.Code)
	return nil
}
