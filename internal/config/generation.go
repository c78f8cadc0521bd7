package config

import (
	"fmt"
	"os"
	"time"
)

// GenerationConfig configures the optional AI draft provider operators can call
// while processing a request.
type GenerationConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Provider        string        `mapstructure:"provider"`    // "openai", "openai-compatible"
	Model           string        `mapstructure:"model"`       // Model name/ID
	APIKey          string        `mapstructure:"api_key"`     // API key (can be set directly or via env var)
	APIKeyEnv       string        `mapstructure:"api_key_env"` // Environment variable name for API key
	BaseURL         string        `mapstructure:"base_url"`    // Base URL for OpenAI-compatible APIs
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	CostPer1KTokens float64       `mapstructure:"cost_per_1k_tokens"`
}

// ResolveEnvVars loads the API key from APIKeyEnv when it was not set directly.
func (c *GenerationConfig) ResolveEnvVars() {
	if c.APIKeyEnv != "" && c.APIKey == "" {
		if val := os.Getenv(c.APIKeyEnv); val != "" {
			c.APIKey = val
		}
	}
}

// Validate checks that the provider configuration has all required fields.
// Returns an error describing the first validation failure, or nil if valid.
func (c *GenerationConfig) Validate() error {
	switch c.Provider {
	case "openai", "openai-compatible":
	default:
		return fmt.Errorf("generation: unknown provider %q", c.Provider)
	}
	if c.Model == "" {
		return fmt.Errorf("generation: model is required")
	}
	if c.BaseURL == "" {
		return fmt.Errorf("generation: base_url is required")
	}
	if c.APIKey == "" {
		return fmt.Errorf("generation: api_key is required (set directly or via %s)", c.APIKeyEnv)
	}
	if c.MaxTokens <= 0 {
		return fmt.Errorf("generation: max_tokens must be positive")
	}
	if c.CostPer1KTokens < 0 {
		return fmt.Errorf("generation: cost_per_1k_tokens must not be negative")
	}
	return nil
}
