// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Defaults, overridable through HOMECODE_* environment variables.
const (
	DefaultHost          = "https://openrouter.ai/api/v1"
	DefaultModel         = "google/gemini-2.0-flash-001"
	DefaultProvider      = "openrouter"
	DefaultMaxIterations = 20
	DefaultBashTimeout   = 30 * time.Second
	MaxBashTimeout       = 10 * time.Minute
	DefaultLogLevel      = "warn"
)

// Config is the resolved runtime configuration. It is built once at
// startup and not mutated afterwards.
type Config struct {
	Host          string
	Model         string
	Provider      string
	APIKey        string
	MaxIterations int
	BashTimeout   time.Duration
	WorkDir       string
	LogLevel      string
	HistoryBudget int
}

// Load reads configuration from the environment. Credentials are looked
// up per provider: OPENROUTER_API_KEY for openrouter, OPENAI_API_KEY for
// openai, ANTHROPIC_API_KEY for anthropic.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("HOMECODE")
	v.AutomaticEnv()

	v.SetDefault("host", DefaultHost)
	v.SetDefault("model", DefaultModel)
	v.SetDefault("provider", DefaultProvider)
	v.SetDefault("max_iter", DefaultMaxIterations)
	v.SetDefault("bash_timeout", int(DefaultBashTimeout.Seconds()))
	v.SetDefault("workdir", "")
	v.SetDefault("log_level", DefaultLogLevel)
	v.SetDefault("history_budget", 0)

	cfg := &Config{
		Host:          strings.TrimRight(v.GetString("host"), "/"),
		Model:         v.GetString("model"),
		Provider:      strings.ToLower(v.GetString("provider")),
		MaxIterations: v.GetInt("max_iter"),
		BashTimeout:   time.Duration(v.GetInt("bash_timeout")) * time.Second,
		WorkDir:       v.GetString("workdir"),
		LogLevel:      strings.ToLower(v.GetString("log_level")),
		HistoryBudget: v.GetInt("history_budget"),
	}

	cred := viper.New()
	cred.AutomaticEnv()
	switch cfg.Provider {
	case "openai":
		cfg.APIKey = cred.GetString("OPENAI_API_KEY")
	case "anthropic":
		cfg.APIKey = cred.GetString("ANTHROPIC_API_KEY")
	default:
		cfg.APIKey = cred.GetString("OPENROUTER_API_KEY")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for values the program cannot
// start without.
func (c *Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("missing API key for provider %q: set %s", c.Provider, c.credentialVar())
	}
	if c.Model == "" {
		return fmt.Errorf("model must not be empty")
	}
	if c.MaxIterations <= 0 {
		return fmt.Errorf("max_iter must be positive, got %d", c.MaxIterations)
	}
	if c.BashTimeout <= 0 {
		return fmt.Errorf("bash_timeout must be positive")
	}
	if c.BashTimeout > MaxBashTimeout {
		return fmt.Errorf("bash_timeout must not exceed %s", MaxBashTimeout)
	}
	return nil
}

func (c *Config) credentialVar() string {
	switch c.Provider {
	case "openai":
		return "OPENAI_API_KEY"
	case "anthropic":
		return "ANTHROPIC_API_KEY"
	default:
		return "OPENROUTER_API_KEY"
	}
}
