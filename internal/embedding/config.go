package embedding

import (
	"fmt"
	"os"
	"time"
)

// Config holds embedding provider configuration.
type Config struct {
	// Provider selects the embedding backend.
	// Values: "none", "openai", "gemini", "mock"
	Provider string `yaml:"provider"`

	OpenAI OpenAIConfig `yaml:"openai"`
	Gemini GeminiConfig `yaml:"gemini"`
	Retry  RetryConfig  `yaml:"retry"`

	// Timeout bounds a single Embed call including retries. Default: 10s.
	Timeout time.Duration `yaml:"timeout"`
}

// OpenAIConfig holds OpenAI-specific configuration.
type OpenAIConfig struct {
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`    // Default: "text-embedding-3-small"
	BaseURL string `yaml:"base_url"` // Optional. Override for compatible APIs.
}

// GeminiConfig holds Gemini-specific configuration.
type GeminiConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: "text-embedding-004"
}

// RetryConfig configures retry behavior for transient failures.
type RetryConfig struct {
	MaxAttempts int           `yaml:"max_attempts"`
	InitialWait time.Duration `yaml:"initial_wait"`
	MaxWait     time.Duration `yaml:"max_wait"`
	Multiplier  float64       `yaml:"multiplier"`
}

// DefaultConfig returns a Config with embeddings disabled.
func DefaultConfig() Config {
	return Config{
		Provider: "none",
		OpenAI: OpenAIConfig{
			Model: "small",
		},
		Gemini: GeminiConfig{
			Model: "text-embedding-004",
		},
		Retry: RetryConfig{
			MaxAttempts: 3,
			InitialWait: 500 * time.Millisecond,
			MaxWait:     5 * time.Second,
			Multiplier:  2.0,
		},
		Timeout: 10 * time.Second,
	}
}

// ApplyEnv overrides cfg with standard API key env vars. A key found for
// a provider also selects it when no provider was chosen.
func (c *Config) ApplyEnv() {
	if p := os.Getenv("LEXISURVEY_EMBEDDING_PROVIDER"); p != "" {
		c.Provider = p
	}
	if k := os.Getenv("OPENAI_API_KEY"); k != "" {
		c.OpenAI.APIKey = k
		if c.Provider == "" || c.Provider == "none" {
			c.Provider = "openai"
		}
	}
	if k := os.Getenv("GEMINI_API_KEY"); k != "" {
		c.Gemini.APIKey = k
		if c.Provider == "" || c.Provider == "none" {
			c.Provider = "gemini"
		}
	}
}

// Validate checks that the selected provider has its required API key set.
func (c Config) Validate() error {
	switch c.Provider {
	case "", "none", "mock":
	case "openai":
		if c.OpenAI.APIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required for the openai embedding provider")
		}
	case "gemini":
		if c.Gemini.APIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY is required for the gemini embedding provider")
		}
	default:
		return fmt.Errorf("unknown embedding provider: %q", c.Provider)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("embedding retry max_attempts must be at least 1")
	}
	return nil
}
