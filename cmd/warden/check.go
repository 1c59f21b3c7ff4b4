package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"

	"github.com/zero-day-ai/warden/internal/config"
	"github.com/zero-day-ai/warden/internal/guardrail"
	"github.com/zero-day-ai/warden/internal/guardrail/backends"
	"github.com/zero-day-ai/warden/internal/observability"
	"github.com/zero-day-ai/warden/internal/types"
)

var (
	checkStage    string
	checkToolName string
)

var checkCmd = &cobra.Command{
	Use:   "check [content]",
	Short: "Evaluate content at one stage against the configured guardrails",
	Long: `Check dispatches a single stage payload through every configured
guardrail and prints the outcome. Content is taken from the argument, or
from stdin when no argument is given.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().StringVarP(&checkStage, "stage", "s", string(guardrail.StageBeforeRequest), "Stage to evaluate (before_request, before_tool_call, after_tool_call, after_response)")
	checkCmd.Flags().StringVarP(&checkToolName, "tool", "t", "", "Tool name for the tool-call stages")
}

func runCheck(cmd *cobra.Command, args []string) error {
	stage, err := guardrail.ParseStage(checkStage)
	if err != nil {
		return err
	}

	content, err := readContent(args)
	if err != nil {
		return err
	}

	loader := config.NewConfigLoader(config.NewValidator())
	cfg, err := loader.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}

	logger := observability.NewLogger(cfg.Logging, cmd.ErrOrStderr())

	dispatcher := guardrail.NewDispatcher().WithLogger(logger)
	if cfg.Tracing.Enabled {
		dispatcher = dispatcher.WithTracer(otel.Tracer("warden/guardrail"))
	}
	for _, handler := range backends.ParseBackendConfigs(cfg.Guardrails, logger) {
		if err := handler.Register(dispatcher); err != nil {
			return err
		}
	}

	payload, err := payloadFor(stage, content)
	if err != nil {
		return err
	}

	ctx := guardrail.WithSessionID(cmd.Context(), types.NewID())
	outcome, err := dispatcher.Dispatch(ctx, payload)
	if err != nil {
		return err
	}

	return printOutcome(cmd.OutOrStdout(), outcome)
}

// readContent takes the payload content from the argument or stdin.
func readContent(args []string) (string, error) {
	if len(args) == 1 {
		return args[0], nil
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", fmt.Errorf("failed to read content from stdin: %w", err)
	}
	content := strings.TrimSpace(string(data))
	if content == "" {
		return "", fmt.Errorf("no content provided")
	}
	return content, nil
}

// payloadFor builds a minimal payload for the requested stage.
func payloadFor(stage guardrail.Stage, content string) (guardrail.StagePayload, error) {
	messages := []guardrail.Message{{Role: guardrail.RoleUser, Content: content}}

	switch stage {
	case guardrail.StageBeforeRequest:
		return &guardrail.BeforeRequestPayload{Prompt: content, Messages: messages}, nil
	case guardrail.StageBeforeToolCall:
		return &guardrail.BeforeToolCallPayload{
			ToolName:   checkToolName,
			ToolCallID: types.NewID().String(),
			Params:     map[string]any{"input": content},
			Messages:   messages,
		}, nil
	case guardrail.StageAfterToolCall:
		return &guardrail.AfterToolCallPayload{
			ToolName:   checkToolName,
			ToolCallID: types.NewID().String(),
			Result:     guardrail.ToolResult{Content: []guardrail.ContentBlock{guardrail.TextBlock(content)}},
			Messages:   messages,
		}, nil
	case guardrail.StageAfterResponse:
		return &guardrail.AfterResponsePayload{
			AssistantTexts: []string{content},
			Messages:       messages,
		}, nil
	default:
		return nil, fmt.Errorf("unknown stage: %q", stage)
	}
}

// printOutcome renders the dispatch outcome as JSON.
func printOutcome(w io.Writer, outcome guardrail.Outcome) error {
	view := map[string]any{
		"state": outcome.State,
	}
	if outcome.State == guardrail.StateBlocked {
		view["blocked_by"] = outcome.BlockedBy
		view["block"] = outcome.Block
	} else {
		view["payload"] = outcome.Payload
	}

	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(view)
}
