package backends

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"

	"github.com/zero-day-ai/warden/internal/guardrail"
	"github.com/zero-day-ai/warden/internal/types"
)

// defaultJudgeSystemPrompt instructs the classifier model to emit a JSON
// verdict the verdict parser understands.
const defaultJudgeSystemPrompt = `You are a content safety classifier for an AI agent gateway.
Classify the content you are given and respond with a single JSON object:
{"safe": true|false, "reason": "<short explanation when unsafe>", "categories": ["<category>", ...]}
Respond with JSON only, no prose.`

// JudgeConfig configures the local-inference classifier backend.
type JudgeConfig struct {
	Model        string  `mapstructure:"model"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	Temperature  float64 `mapstructure:"temperature"`
}

// JudgeEvaluator classifies content by prompting a model through the
// langchaingo model abstraction. The model's textual verdict goes through
// ParseVerdict, so malformed output degrades per the documented policy
// instead of erroring.
type JudgeEvaluator struct {
	name     string
	model    llms.Model
	config   JudgeConfig
	instance *guardrail.GuardrailConfig
}

// NewJudgeEvaluator creates a judge evaluator over an existing model client.
func NewJudgeEvaluator(name string, model llms.Model, config JudgeConfig, instance *guardrail.GuardrailConfig) (*JudgeEvaluator, error) {
	if model == nil {
		return nil, types.NewError(types.GUARDRAIL_CONFIG_INVALID, "judge backend requires a model")
	}
	if name == "" {
		name = "judge"
	}
	return &JudgeEvaluator{
		name:     name,
		model:    model,
		config:   config,
		instance: instance,
	}, nil
}

// Name returns the evaluator name.
func (j *JudgeEvaluator) Name() string {
	return j.name
}

// Evaluate implements guardrail.Evaluator.
func (j *JudgeEvaluator) Evaluate(ctx context.Context, stage guardrail.Stage, content, history string, cfg *guardrail.StageConfig) (*guardrail.Evaluation, error) {
	if content == "" {
		return nil, nil
	}

	systemPrompt := j.config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultJudgeSystemPrompt
	}

	messages := []llms.MessageContent{
		llms.TextParts(schema.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(schema.ChatMessageTypeHuman, judgePrompt(stage, content, history)),
	}

	opts := []llms.CallOption{
		llms.WithTemperature(j.config.Temperature),
	}
	if j.config.Model != "" {
		opts = append(opts, llms.WithModel(j.config.Model))
	}

	resp, err := j.model.GenerateContent(ctx, messages, opts...)
	if err != nil {
		return nil, types.WrapRetryableError(types.BACKEND_REQUEST_FAILED, "judge model call failed", err)
	}
	if len(resp.Choices) == 0 {
		return nil, types.NewError(types.BACKEND_RESPONSE_INVALID, "judge model returned no choices")
	}

	return ParseVerdict(resp.Choices[0].Content), nil
}

// judgePrompt renders the classification request for one stage.
func judgePrompt(stage guardrail.Stage, content, history string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Classify the following %s.\n", stage.Location())
	if history != "" {
		b.WriteString("\nConversation so far:\n")
		b.WriteString(history)
		b.WriteString("\n")
	}
	b.WriteString("\nContent to classify:\n")
	b.WriteString(content)
	return b.String()
}
