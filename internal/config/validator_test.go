package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zero-day-ai/warden/internal/guardrail/backends"
)

func TestValidateNilConfig(t *testing.T) {
	err := NewValidator().Validate(nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration is nil")
}

func TestValidateDefaultConfig(t *testing.T) {
	assert.NoError(t, NewValidator().Validate(DefaultConfig()))
}

func TestValidateGuardrailType(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Guardrails = []backends.BackendConfig{
		{Type: "moderation"},
		{Type: "   "},
	}

	err := NewValidator().Validate(cfg)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "guardrails[1].type is required")
}

func TestValidateLoggingLevel(t *testing.T) {
	tests := []struct {
		level string
		ok    bool
	}{
		{"", true},
		{"debug", true},
		{"info", true},
		{"warn", true},
		{"warning", true},
		{"error", true},
		{"ERROR", true},
		{"verbose", false},
		{"trace", false},
	}

	for _, tt := range tests {
		t.Run("level "+tt.level, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Logging.Level = tt.level

			err := NewValidator().Validate(cfg)
			if tt.ok {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "logging.level")
			}
		})
	}
}
