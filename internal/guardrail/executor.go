package guardrail

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// FailureMessage is the generic block message substituted when an evaluator
// fails and the instance is configured fail-closed.
const FailureMessage = "Content blocked due to guardrail failure"

// EvaluatorHandler is the dispatcher-facing wrapper shared by every backend.
// It resolves the stage configuration, extracts the stage's focal content,
// invokes the evaluator under the configured timeout, and translates the
// verdict into the stage's required result shape. The monitor/block and
// fail-open/fail-closed decisions live here and only here so no backend can
// drift from the documented policy.
type EvaluatorHandler struct {
	evaluator Evaluator
	config    *GuardrailConfig
	logger    *slog.Logger
}

// NewEvaluatorHandler wraps an evaluator with the shared stage policy.
func NewEvaluatorHandler(evaluator Evaluator, config *GuardrailConfig) *EvaluatorHandler {
	if config == nil {
		config = &GuardrailConfig{}
	}
	return &EvaluatorHandler{
		evaluator: evaluator,
		config:    config,
		logger:    slog.Default(),
	}
}

// WithLogger sets the logger for the handler.
func (h *EvaluatorHandler) WithLogger(logger *slog.Logger) *EvaluatorHandler {
	h.logger = logger
	return h
}

// Name returns the wrapped evaluator's name.
func (h *EvaluatorHandler) Name() string {
	return h.evaluator.Name()
}

// Priority returns the configured dispatch priority for this instance.
func (h *EvaluatorHandler) Priority() int {
	return h.config.PriorityOrDefault()
}

// Register registers this handler on every stage its configuration enables.
func (h *EvaluatorHandler) Register(d *Dispatcher) error {
	if !h.config.IsEnabled() {
		return nil
	}
	for _, stage := range AllStages() {
		if !IsStageEnabled(ResolveStageConfig(h.config.Stages, stage)) {
			continue
		}
		if err := d.Register(stage, h.Priority(), h); err != nil {
			return err
		}
	}
	return nil
}

// Handle implements Handler.
func (h *EvaluatorHandler) Handle(ctx context.Context, payload StagePayload) (*HandlerResult, error) {
	stage := payload.Stage()

	if !h.config.IsEnabled() {
		return nil, nil
	}
	cfg := ResolveStageConfig(h.config.Stages, stage)
	if !IsStageEnabled(cfg) {
		return nil, nil
	}

	content := stageContent(payload)
	if strings.TrimSpace(content) == "" {
		return nil, nil
	}

	var history string
	if cfg.HistoryIncluded() {
		history = ExtractHistoryContext(payload.History())
	}

	evalCtx, cancel := context.WithTimeout(ctx, h.config.TimeoutOrDefault())
	defer cancel()

	eval, err := h.evaluator.Evaluate(evalCtx, stage, content, history, cfg)
	if err != nil {
		return h.handleFailure(ctx, payload, err)
	}

	// nil verdict: the backend had nothing to say, distinct from safe.
	if eval == nil || eval.Safe {
		return nil, nil
	}

	message := ViolationMessage(h.evaluator.Name(), stage, eval)

	if cfg.ModeOrDefault() == ModeMonitor {
		h.logger.WarnContext(ctx, "guardrail flagged content in monitor mode",
			logFields(h.evaluator.Name(), payload, eval)...)
		return nil, nil
	}

	h.logger.InfoContext(ctx, "guardrail blocking content",
		logFields(h.evaluator.Name(), payload, eval)...)
	return blockDirective(payload, cfg, message), nil
}

// handleFailure applies the uniform fail-open/fail-closed policy. A backend
// outage never marks content safe: fail-open passes it unevaluated, while
// fail-closed blocks with a generic message.
func (h *EvaluatorHandler) handleFailure(ctx context.Context, payload StagePayload, err error) (*HandlerResult, error) {
	stage := payload.Stage()

	if h.config.IsFailOpen() {
		h.logger.WarnContext(ctx, "guardrail evaluation failed, failing open",
			"guardrail", h.evaluator.Name(),
			"stage", stage,
			"error", err,
		)
		return nil, nil
	}

	h.logger.ErrorContext(ctx, "guardrail evaluation failed, failing closed",
		"guardrail", h.evaluator.Name(),
		"stage", stage,
		"error", err,
	)
	cfg := ResolveStageConfig(h.config.Stages, stage)
	return blockDirective(payload, cfg, FailureMessage), nil
}

// blockDirective builds the stage-appropriate block result, materializing
// the replacement content for the stages whose block mode requires it.
func blockDirective(payload StagePayload, cfg *StageConfig, message string) *HandlerResult {
	switch p := payload.(type) {
	case *BeforeRequestPayload:
		return BlockWithResponse(message)
	case *BeforeToolCallPayload:
		return BlockWithReason(message)
	case *AfterToolCallPayload:
		mode := ResolveBlockMode(StageAfterToolCall, cfg)
		return BlockWithResult(BlockToolResult(p.Result, message, mode))
	case *AfterResponsePayload:
		mode := ResolveBlockMode(StageAfterResponse, cfg)
		return BlockAssistantTexts(p.AssistantTexts, message, mode)
	default:
		return BlockWithResponse(message)
	}
}

// stageContent extracts the focal content each stage evaluates.
func stageContent(payload StagePayload) string {
	switch p := payload.(type) {
	case *BeforeRequestPayload:
		return p.Prompt
	case *BeforeToolCallPayload:
		return toolCallContent(p.ToolName, p.Params)
	case *AfterToolCallPayload:
		return ExtractToolResultText(p.Result)
	case *AfterResponsePayload:
		return strings.Join(p.AssistantTexts, "\n")
	default:
		return ""
	}
}

// toolCallContent renders a tool call for evaluation as the tool name plus
// its serialized arguments. Serialization failures degrade to the name alone.
func toolCallContent(toolName string, params map[string]any) string {
	if len(params) == 0 {
		return toolName
	}
	data, err := json.Marshal(params)
	if err != nil {
		return toolName
	}
	return fmt.Sprintf("%s(%s)", toolName, data)
}

// logFields builds the observability context logged for every flag or block.
func logFields(name string, payload StagePayload, eval *Evaluation) []any {
	fields := []any{
		"guardrail", name,
		"stage", payload.Stage(),
		"reason", eval.Reason,
	}
	switch p := payload.(type) {
	case *BeforeToolCallPayload:
		fields = append(fields, "tool", p.ToolName)
	case *AfterToolCallPayload:
		fields = append(fields, "tool", p.ToolName)
	}
	if categories := FlaggedCategories(eval.Details); len(categories) > 0 {
		fields = append(fields, "categories", strings.Join(categories, ","))
	}
	return fields
}
