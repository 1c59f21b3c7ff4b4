package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ConfigValidator validates configuration values.
type ConfigValidator interface {
	Validate(cfg *Config) error
}

// validatorImpl implements ConfigValidator using go-playground/validator.
type validatorImpl struct {
	validate *validator.Validate
}

// NewValidator creates a new ConfigValidator instance.
func NewValidator() ConfigValidator {
	return &validatorImpl{
		validate: validator.New(),
	}
}

// Validate validates the configuration and returns detailed error messages.
func (v *validatorImpl) Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is nil")
	}

	if err := v.validate.Struct(cfg); err != nil {
		validationErrs, ok := err.(validator.ValidationErrors)
		if !ok {
			return fmt.Errorf("validation error: %w", err)
		}

		var errorMessages []string
		for _, e := range validationErrs {
			errorMessages = append(errorMessages, formatValidationError(e))
		}

		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errorMessages, "\n  - "))
	}

	// Guardrail entries need a type; the backend factory handles everything
	// beyond that and degrades per-instance.
	for i, g := range cfg.Guardrails {
		if strings.TrimSpace(g.Type) == "" {
			return fmt.Errorf("configuration validation failed:\n  - guardrails[%d].type is required", i)
		}
	}

	if level := cfg.Logging.Level; level != "" {
		switch strings.ToLower(level) {
		case "debug", "info", "warn", "warning", "error":
		default:
			return fmt.Errorf("configuration validation failed:\n  - logging.level must be one of debug, info, warn, error (got: %q)", level)
		}
	}

	return nil
}

// formatValidationError converts a validator.FieldError into a readable message.
func formatValidationError(e validator.FieldError) string {
	return fmt.Sprintf("%s failed validation: %s", e.Namespace(), e.Tag())
}
