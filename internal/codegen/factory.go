package codegen

import (
	"context"
	"fmt"

	"nerdbook/internal/config"
)

// NewCompleter builds the provider selected by cfg.
func NewCompleter(ctx context.Context, cfg *config.Config) (Completer, error) {
	if err := cfg.ValidateCodegen(); err != nil {
		return nil, err
	}
	cg := cfg.Codegen
	switch cg.Provider {
	case config.ProviderAnthropic:
		return NewAnthropicClient(AnthropicConfig{
			APIKey:      cg.APIKey,
			BaseURL:     cg.BaseURL,
			Model:       cg.Model,
			MaxTokens:   cg.MaxTokens,
			Temperature: cg.Temperature,
			Timeout:     cfg.GetCodegenTimeout(),
		}), nil
	case config.ProviderGemini:
		gc, err := NewGeminiClient(ctx, GeminiConfig{
			APIKey:      cg.APIKey,
			BaseURL:     cg.BaseURL,
			Model:       cg.Model,
			MaxTokens:   cg.MaxTokens,
			Temperature: cg.Temperature,
			Timeout:     cfg.GetCodegenTimeout(),
		})
		if err != nil {
			return nil, err
		}
		return gc, nil
	default:
		return nil, fmt.Errorf("unsupported codegen provider: %s", cg.Provider)
	}
}

// NewGenerator builds a Bot for the configured provider and kernel language.
func NewGenerator(ctx context.Context, cfg *config.Config) (*Bot, error) {
	c, err := NewCompleter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewBot(c, cfg.Kernel.Language, cfg.Codegen.HistoryLimit), nil
}
