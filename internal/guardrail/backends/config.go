package backends

import (
	"fmt"
	"log/slog"

	"github.com/mitchellh/mapstructure"
	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/zero-day-ai/warden/internal/guardrail"
	"github.com/zero-day-ai/warden/internal/types"
)

// BackendConfig represents one guardrail instance from configuration.
type BackendConfig struct {
	Type   string         `yaml:"type" json:"type" mapstructure:"type"`
	Name   string         `yaml:"name,omitempty" json:"name,omitempty" mapstructure:"name"`
	Config map[string]any `yaml:"config" json:"config" mapstructure:"config"`
}

// ParseBackendConfigs builds the handlers for a list of guardrail instances.
// A broken instance (missing credential, bad endpoint, unknown type) logs one
// warning and is skipped so it behaves as disabled, it does not fail the rest
// of the configuration.
func ParseBackendConfigs(configs []BackendConfig, logger *slog.Logger) []*guardrail.EvaluatorHandler {
	if logger == nil {
		logger = slog.Default()
	}

	handlers := make([]*guardrail.EvaluatorHandler, 0, len(configs))
	for i, config := range configs {
		handler, err := ParseBackendConfig(config)
		if err != nil {
			logger.Warn("skipping guardrail with invalid configuration",
				"index", i,
				"type", config.Type,
				"name", config.Name,
				"error", err,
			)
			continue
		}
		handlers = append(handlers, handler.WithLogger(logger))
	}
	return handlers
}

// ParseBackendConfig builds a single wrapped handler from configuration.
func ParseBackendConfig(config BackendConfig) (*guardrail.EvaluatorHandler, error) {
	if config.Type == "" {
		return nil, types.NewError(types.GUARDRAIL_CONFIG_INVALID, "guardrail type is required")
	}

	instance, err := decodeInstanceConfig(config)
	if err != nil {
		return nil, err
	}

	var evaluator guardrail.Evaluator
	switch config.Type {
	case "moderation":
		evaluator, err = parseModerationConfig(instance.Name, instance)
	case "judge":
		evaluator, err = parseJudgeConfig(instance.Name, instance)
	case "policy":
		evaluator, err = parsePolicyConfig(instance.Name, instance)
	default:
		return nil, types.NewError(types.GUARDRAIL_CONFIG_INVALID,
			fmt.Sprintf("unknown guardrail type: %s (supported types: %v)", config.Type, SupportedBackendTypes()))
	}
	if err != nil {
		return nil, err
	}

	return guardrail.NewEvaluatorHandler(evaluator, instance), nil
}

// SupportedBackendTypes returns the list of supported backend types.
func SupportedBackendTypes() []string {
	return []string{"moderation", "judge", "policy"}
}

// decodeInstanceConfig decodes the shared guardrail fields, leaving
// backend-specific keys in Extra for the adapter to interpret.
func decodeInstanceConfig(config BackendConfig) (*guardrail.GuardrailConfig, error) {
	var instance guardrail.GuardrailConfig

	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     &instance,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return nil, types.WrapError(types.GUARDRAIL_CONFIG_INVALID, "failed to create decoder", err)
	}
	if err := decoder.Decode(config.Config); err != nil {
		return nil, types.WrapError(types.GUARDRAIL_CONFIG_INVALID, "failed to decode guardrail config", err)
	}

	for stage := range instance.Stages {
		if !stage.Valid() {
			return nil, types.NewError(types.GUARDRAIL_CONFIG_INVALID,
				fmt.Sprintf("unknown stage in guardrail config: %q", stage))
		}
	}

	if instance.Name == "" {
		instance.Name = config.Name
	}
	return &instance, nil
}

// decodeBackendConfig decodes the backend-specific remainder of an instance
// config into the adapter's own struct.
func decodeBackendConfig(instance *guardrail.GuardrailConfig, result any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:     result,
		TagName:    "mapstructure",
		DecodeHook: mapstructure.StringToTimeDurationHookFunc(),
	})
	if err != nil {
		return types.WrapError(types.GUARDRAIL_CONFIG_INVALID, "failed to create decoder", err)
	}
	if err := decoder.Decode(instance.Extra); err != nil {
		return types.WrapError(types.GUARDRAIL_CONFIG_INVALID, "failed to decode backend config", err)
	}
	return nil
}

func parseModerationConfig(name string, instance *guardrail.GuardrailConfig) (guardrail.Evaluator, error) {
	var config ModerationConfig
	if err := decodeBackendConfig(instance, &config); err != nil {
		return nil, err
	}
	return NewModerationEvaluator(name, config, instance)
}

func parseJudgeConfig(name string, instance *guardrail.GuardrailConfig) (guardrail.Evaluator, error) {
	// The judge rides on a local model server reached through langchaingo.
	type judgeBackendConfig struct {
		JudgeConfig `mapstructure:",squash"`
		ServerURL   string `mapstructure:"server_url"`
	}

	var config judgeBackendConfig
	if err := decodeBackendConfig(instance, &config); err != nil {
		return nil, err
	}

	opts := []ollama.Option{}
	if config.ServerURL != "" {
		opts = append(opts, ollama.WithServerURL(config.ServerURL))
	}
	if config.Model != "" {
		opts = append(opts, ollama.WithModel(config.Model))
	}

	model, err := ollama.New(opts...)
	if err != nil {
		return nil, types.WrapError(types.GUARDRAIL_CONFIG_INVALID, "failed to create judge model client", err)
	}

	return NewJudgeEvaluator(name, model, config.JudgeConfig, instance)
}

func parsePolicyConfig(name string, instance *guardrail.GuardrailConfig) (guardrail.Evaluator, error) {
	var config PolicyConfig
	if err := decodeBackendConfig(instance, &config); err != nil {
		return nil, err
	}
	return NewPolicyGatewayEvaluator(name, config)
}
