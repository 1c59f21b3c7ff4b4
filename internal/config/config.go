package config

import (
	"github.com/zero-day-ai/warden/internal/guardrail/backends"
	"github.com/zero-day-ai/warden/internal/observability"
)

// Config is the root configuration for the Warden gateway guardrails.
type Config struct {
	Logging    observability.LoggingConfig `mapstructure:"logging" yaml:"logging"`
	Tracing    TracingConfig               `mapstructure:"tracing" yaml:"tracing"`
	Guardrails []backends.BackendConfig    `mapstructure:"guardrails" yaml:"guardrails" validate:"dive"`
}

// TracingConfig contains distributed tracing configuration.
type TracingConfig struct {
	Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint"`
}

// DefaultConfig returns the configuration used when no file is present:
// text logging at info level and no guardrails registered.
func DefaultConfig() *Config {
	return &Config{
		Logging: observability.LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
