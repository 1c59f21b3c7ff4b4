package guardrail

import (
	"math"
	"time"
)

// Mode controls what happens when an evaluator reports a violation.
type Mode string

const (
	// ModeBlock halts the stage and substitutes the violation message.
	ModeBlock Mode = "block"
	// ModeMonitor logs the violation and lets the payload pass unchanged.
	ModeMonitor Mode = "monitor"
)

// BlockMode controls how a block directive rewrites content.
type BlockMode string

const (
	// BlockModeReplace discards the unsafe content entirely.
	BlockModeReplace BlockMode = "replace"
	// BlockModeAppend keeps the content and appends a warning alongside it.
	BlockModeAppend BlockMode = "append"
)

// DefaultPriority is the dispatch priority assigned to handlers that do not
// set one explicitly.
const DefaultPriority = 50

// DefaultTimeout bounds a single evaluator call when the instance config does
// not set a timeout.
const DefaultTimeout = 30 * time.Second

// StageConfig holds per-stage settings for one guardrail instance. Backend
// adapters may carry additional fields in Extra that only they interpret.
//
// The zero value enables the stage with all defaults; a nil *StageConfig
// means the stage entry is absent and the stage is disabled by omission.
type StageConfig struct {
	Enabled        *bool          `json:"enabled,omitempty" mapstructure:"enabled" yaml:"enabled,omitempty"`
	Mode           Mode           `json:"mode,omitempty" mapstructure:"mode" yaml:"mode,omitempty"`
	BlockMode      BlockMode      `json:"block_mode,omitempty" mapstructure:"block_mode" yaml:"block_mode,omitempty"`
	IncludeHistory *bool          `json:"include_history,omitempty" mapstructure:"include_history" yaml:"include_history,omitempty"`
	Extra          map[string]any `json:"-" mapstructure:",remain" yaml:"-"`
}

// ModeOrDefault returns the stage mode, defaulting to block.
func (c *StageConfig) ModeOrDefault() Mode {
	if c == nil || c.Mode == "" {
		return ModeBlock
	}
	return c.Mode
}

// HistoryIncluded reports whether conversation history should be passed to
// the evaluator. Defaults to true.
func (c *StageConfig) HistoryIncluded() bool {
	if c == nil || c.IncludeHistory == nil {
		return true
	}
	return *c.IncludeHistory
}

// GuardrailConfig is the per-instance configuration shared by every backend.
// Backend-specific fields (credentials, endpoint, model, thresholds) land in
// Extra and are decoded by the adapter that owns them.
type GuardrailConfig struct {
	Name     string                 `json:"name,omitempty" mapstructure:"name" yaml:"name,omitempty"`
	Enabled  *bool                  `json:"enabled,omitempty" mapstructure:"enabled" yaml:"enabled,omitempty"`
	FailOpen *bool                  `json:"fail_open,omitempty" mapstructure:"fail_open" yaml:"fail_open,omitempty"`
	Priority *int                   `json:"priority,omitempty" mapstructure:"priority" yaml:"priority,omitempty"`
	Timeout  time.Duration          `json:"timeout,omitempty" mapstructure:"timeout" yaml:"timeout,omitempty"`
	Stages   map[Stage]*StageConfig `json:"stages,omitempty" mapstructure:"stages" yaml:"stages,omitempty"`
	Extra    map[string]any         `json:"-" mapstructure:",remain" yaml:"-"`
}

// IsEnabled reports whether the guardrail instance is enabled. Defaults to true.
func (c *GuardrailConfig) IsEnabled() bool {
	if c == nil || c.Enabled == nil {
		return true
	}
	return *c.Enabled
}

// IsFailOpen reports the failure policy: true (the default) passes content
// unevaluated when the backend fails, false blocks it.
func (c *GuardrailConfig) IsFailOpen() bool {
	if c == nil || c.FailOpen == nil {
		return true
	}
	return *c.FailOpen
}

// PriorityOrDefault returns the dispatch priority, defaulting to DefaultPriority.
func (c *GuardrailConfig) PriorityOrDefault() int {
	if c == nil || c.Priority == nil {
		return DefaultPriority
	}
	return *c.Priority
}

// TimeoutOrDefault returns the evaluator call timeout, defaulting to DefaultTimeout.
func (c *GuardrailConfig) TimeoutOrDefault() time.Duration {
	if c == nil || c.Timeout <= 0 {
		return DefaultTimeout
	}
	return c.Timeout
}

// ResolveStageConfig returns the effective config for one stage, or nil when
// the stage map is absent or has no entry for the stage. The nil/empty
// distinction is load-bearing: an absent entry disables the stage by
// omission, while an explicit empty entry enables it with all defaults.
func ResolveStageConfig(stages map[Stage]*StageConfig, stage Stage) *StageConfig {
	if stages == nil {
		return nil
	}
	cfg, ok := stages[stage]
	if !ok {
		return nil
	}
	if cfg == nil {
		// Explicit entry with no body behaves like an empty object.
		return &StageConfig{}
	}
	return cfg
}

// IsStageEnabled reports whether a resolved stage config enables the stage:
// false for an absent entry, true unless enabled is explicitly false.
func IsStageEnabled(cfg *StageConfig) bool {
	if cfg == nil {
		return false
	}
	if cfg.Enabled != nil && !*cfg.Enabled {
		return false
	}
	return true
}

// ResolveBlockMode returns the effective block mode for a stage. An explicit
// setting always wins; otherwise after_tool_call defaults to append (tool
// results are often large and structured, silently replacing them removes
// caller context) and every other stage defaults to replace.
func ResolveBlockMode(stage Stage, cfg *StageConfig) BlockMode {
	if cfg != nil && cfg.BlockMode != "" {
		return cfg.BlockMode
	}
	if stage == StageAfterToolCall {
		return BlockModeAppend
	}
	return BlockModeReplace
}

// ResolveOption applies the three-level configuration precedence shared by
// every backend: stage-level value when set, else instance-level value, else
// the hardcoded default.
func ResolveOption[T any](stageVal, instanceVal *T, def T) T {
	if stageVal != nil {
		return *stageVal
	}
	if instanceVal != nil {
		return *instanceVal
	}
	return def
}

// ResolveFloatOption resolves a numeric option by key through the stage
// Extra map, then the instance Extra map, then the default. Non-numeric and
// non-finite values are skipped.
func ResolveFloatOption(stage *StageConfig, instance *GuardrailConfig, key string, def float64) float64 {
	if stage != nil {
		if v, ok := floatFromExtra(stage.Extra, key); ok {
			return v
		}
	}
	if instance != nil {
		if v, ok := floatFromExtra(instance.Extra, key); ok {
			return v
		}
	}
	return def
}

// ResolveBoolOption resolves a boolean option by key through the stage Extra
// map, then the instance Extra map, then the default.
func ResolveBoolOption(stage *StageConfig, instance *GuardrailConfig, key string, def bool) bool {
	if stage != nil {
		if v, ok := stage.Extra[key].(bool); ok {
			return v
		}
	}
	if instance != nil {
		if v, ok := instance.Extra[key].(bool); ok {
			return v
		}
	}
	return def
}

// ResolveStringOption resolves a string option by key through the stage Extra
// map, then the instance Extra map, then the default. Empty strings count as
// unset.
func ResolveStringOption(stage *StageConfig, instance *GuardrailConfig, key string, def string) string {
	if stage != nil {
		if v, ok := stage.Extra[key].(string); ok && v != "" {
			return v
		}
	}
	if instance != nil {
		if v, ok := instance.Extra[key].(string); ok && v != "" {
			return v
		}
	}
	return def
}

func floatFromExtra(extra map[string]any, key string) (float64, bool) {
	raw, ok := extra[key]
	if !ok {
		return 0, false
	}

	var v float64
	switch n := raw.(type) {
	case float64:
		v = n
	case float32:
		v = float64(n)
	case int:
		v = float64(n)
	case int64:
		v = float64(n)
	default:
		return 0, false
	}

	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
