// Package config loads the daemon configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Provider selects the language-model backend.
type Provider string

const (
	// ProviderAnthropic uses the Anthropic Messages API.
	ProviderAnthropic Provider = "anthropic"
	// ProviderOpenAI uses the OpenAI Chat Completions API.
	ProviderOpenAI Provider = "openai"
	// ProviderMock uses the canned completer; useful for local development.
	ProviderMock Provider = "mock"
)

// Config is the full daemon configuration. Every field has a sensible
// default so a bare environment starts a working local instance.
type Config struct {
	// HTTP listen address.
	Addr string `env:"CHATMESH_ADDR" envDefault:":8080"`

	// Logging.
	LogLevel  string `env:"CHATMESH_LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"CHATMESH_LOG_FORMAT" envDefault:"json"`

	// Language model.
	Provider        Provider `env:"CHATMESH_PROVIDER" envDefault:"mock"`
	AnthropicAPIKey string   `env:"ANTHROPIC_API_KEY"`
	AnthropicModel  string   `env:"CHATMESH_ANTHROPIC_MODEL"`
	OpenAIAPIKey    string   `env:"OPENAI_API_KEY"`
	OpenAIModel     string   `env:"CHATMESH_OPENAI_MODEL"`

	// Dispatch loop.
	MaxConcurrentDispatches int64         `env:"CHATMESH_MAX_CONCURRENT" envDefault:"8"`
	ConversationBuffer      int           `env:"CHATMESH_CONVERSATION_BUFFER" envDefault:"16"`
	WorkerIdleTimeout       time.Duration `env:"CHATMESH_WORKER_IDLE_TIMEOUT" envDefault:"5m"`
	HistoryLimit            int           `env:"CHATMESH_HISTORY_LIMIT" envDefault:"20"`
	PurgeInterval           time.Duration `env:"CHATMESH_PURGE_INTERVAL" envDefault:"10m"`

	// Server lifecycle.
	ShutdownTimeout time.Duration `env:"CHATMESH_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// Load parses the configuration from the process environment.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// validate rejects configurations that would fail at first use.
func (c Config) validate() error {
	switch c.Provider {
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return fmt.Errorf("ANTHROPIC_API_KEY is required with provider %q", c.Provider)
		}
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY is required with provider %q", c.Provider)
		}
	case ProviderMock:
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.MaxConcurrentDispatches < 1 {
		return fmt.Errorf("CHATMESH_MAX_CONCURRENT must be at least 1")
	}
	if c.ConversationBuffer < 1 {
		return fmt.Errorf("CHATMESH_CONVERSATION_BUFFER must be at least 1")
	}
	return nil
}
