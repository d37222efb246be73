package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// DirName is the per-workspace directory holding config, logs and the journal.
const DirName = ".nerdbook"

// Config holds all nerdbook configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Script kernel
	Kernel KernelConfig `yaml:"kernel"`

	// Code generation collaborator
	Codegen CodegenConfig `yaml:"codegen"`

	// Execution journal
	Journal JournalConfig `yaml:"journal"`

	// JSON-RPC server
	RPC RPCConfig `yaml:"rpc"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// JournalConfig configures the SQLite execution journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// JSON-RPC framing modes.
const (
	FramingVSCode = "vscode" // Content-Length headers
	FramingPlain  = "plain"  // bare JSON objects
)

// RPCConfig configures the JSON-RPC server.
type RPCConfig struct {
	Framing string `yaml:"framing"` // vscode, plain
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "nerdbook",
		Version: "0.3.0",

		Kernel: KernelConfig{
			Language:     LanguageJavaScript,
			Declarations: DeclarationsLexical,
			Timeout:      "0s",
		},

		Codegen: CodegenConfig{
			Provider:     ProviderGemini,
			Model:        "gemini-2.5-flash",
			Timeout:      "120s",
			MaxTokens:    1000,
			Temperature:  0.5,
			HistoryLimit: 5,
		},

		Journal: JournalConfig{
			Enabled: true,
			Path:    filepath.Join(DirName, "journal.db"),
		},

		RPC: RPCConfig{
			Framing: FramingVSCode,
		},

		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// DefaultPath returns the config path inside the given workspace.
func DefaultPath(workspace string) string {
	return filepath.Join(workspace, DirName, "config.yaml")
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Defaults if config file doesn't exist
	} else if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Override with environment variables
	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	// API keys select their provider; Anthropic wins when both are set.
	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Codegen.APIKey = key
		c.Codegen.Provider = ProviderGemini
	}
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		c.Codegen.APIKey = key
		if c.Codegen.Provider != ProviderAnthropic {
			c.Codegen.Provider = ProviderAnthropic
			c.Codegen.Model = DefaultAnthropicModel
		}
	}
	if model := os.Getenv("NERDBOOK_MODEL"); model != "" {
		c.Codegen.Model = model
	}

	if lang := os.Getenv("NERDBOOK_LANGUAGE"); lang != "" {
		c.Kernel.Language = lang
	}

	if path := os.Getenv("NERDBOOK_JOURNAL"); path != "" {
		c.Journal.Path = path
		c.Journal.Enabled = true
	}
}

// GetKernelTimeout returns the snippet timeout; zero means no timeout.
func (c *Config) GetKernelTimeout() time.Duration {
	d, err := time.ParseDuration(c.Kernel.Timeout)
	if err != nil || d < 0 {
		return 0
	}
	return d
}

// GetCodegenTimeout returns the code generation timeout as a duration.
func (c *Config) GetCodegenTimeout() time.Duration {
	d, err := time.ParseDuration(c.Codegen.Timeout)
	if err != nil || d <= 0 {
		return 120 * time.Second
	}
	return d
}

// JournalPath resolves the journal path against the workspace.
func (c *Config) JournalPath(workspace string) string {
	if c.Journal.Path == ":memory:" || filepath.IsAbs(c.Journal.Path) {
		return c.Journal.Path
	}
	return filepath.Join(workspace, c.Journal.Path)
}

// Validate validates the configuration. Code generation credentials are not
// checked here; see ValidateCodegen.
func (c *Config) Validate() error {
	if !contains(ValidLanguages, c.Kernel.Language) {
		return fmt.Errorf("invalid kernel language: %s (valid: %v)", c.Kernel.Language, ValidLanguages)
	}
	if !contains(ValidDeclarationModes, c.Kernel.Declarations) {
		return fmt.Errorf("invalid declaration mode: %s (valid: %v)", c.Kernel.Declarations, ValidDeclarationModes)
	}
	if _, err := time.ParseDuration(c.Kernel.Timeout); err != nil {
		return fmt.Errorf("invalid kernel timeout %q: %w", c.Kernel.Timeout, err)
	}
	if c.RPC.Framing != FramingVSCode && c.RPC.Framing != FramingPlain {
		return fmt.Errorf("invalid rpc framing: %s (valid: [vscode plain])", c.RPC.Framing)
	}
	return nil
}

// ValidateCodegen checks that a code generator can be built.
func (c *Config) ValidateCodegen() error {
	if !contains(ValidProviders, c.Codegen.Provider) {
		return fmt.Errorf("invalid codegen provider: %s (valid: %v)", c.Codegen.Provider, ValidProviders)
	}
	if c.Codegen.APIKey == "" {
		return fmt.Errorf("codegen API key not configured (set GEMINI_API_KEY or ANTHROPIC_API_KEY)")
	}
	return nil
}

// FindWorkspaceRoot attempts to find the project root by looking for .nerdbook or go.mod.
// If not found, returns the current working directory.
func FindWorkspaceRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	originalDir := dir
	for {
		if _, err := os.Stat(filepath.Join(dir, DirName)); err == nil {
			return dir, nil
		}
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return originalDir, nil
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
