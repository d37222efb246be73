package config

// Code generation providers.
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// DefaultAnthropicModel is used when ANTHROPIC_API_KEY switches the provider.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

var ValidProviders = []string{ProviderGemini, ProviderAnthropic}

// CodegenConfig configures the LLM code generator.
type CodegenConfig struct {
	Provider     string  `yaml:"provider"`
	Model        string  `yaml:"model"`
	APIKey       string  `yaml:"api_key,omitempty"`
	BaseURL      string  `yaml:"base_url,omitempty"`
	Timeout      string  `yaml:"timeout"`
	MaxTokens    int     `yaml:"max_tokens"`
	Temperature  float64 `yaml:"temperature"`
	HistoryLimit int     `yaml:"history_limit"` // messages kept in the conversation
}
