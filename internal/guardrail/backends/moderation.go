package backends

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"

	"github.com/zero-day-ai/warden/internal/guardrail"
	"github.com/zero-day-ai/warden/internal/types"
)

// DefaultThreshold is the category score above which moderation results are
// treated as violations when no threshold is configured.
const DefaultThreshold = 0.5

// ModerationConfig configures the remote moderation API backend.
type ModerationConfig struct {
	Endpoint  string   `mapstructure:"endpoint"`
	APIKey    string   `mapstructure:"api_key"`
	Model     string   `mapstructure:"model"`
	Threshold *float64 `mapstructure:"threshold"`
}

// ModerationEvaluator classifies content through a remote HTTP moderation
// service. The service scores content per category; anything flagged outright
// or scoring above the resolved threshold is a violation.
type ModerationEvaluator struct {
	name     string
	config   ModerationConfig
	instance *guardrail.GuardrailConfig
	client   *http.Client
}

// NewModerationEvaluator creates a moderation API evaluator. The endpoint is
// required.
func NewModerationEvaluator(name string, config ModerationConfig, instance *guardrail.GuardrailConfig) (*ModerationEvaluator, error) {
	if config.Endpoint == "" {
		return nil, types.NewError(types.GUARDRAIL_CONFIG_INVALID, "moderation backend requires an endpoint")
	}
	if name == "" {
		name = "moderation"
	}
	return &ModerationEvaluator{
		name:     name,
		config:   config,
		instance: instance,
		client:   &http.Client{},
	}, nil
}

// Name returns the evaluator name.
func (m *ModerationEvaluator) Name() string {
	return m.name
}

// moderationRequest is the wire request sent to the moderation endpoint.
type moderationRequest struct {
	Model   string `json:"model,omitempty"`
	Content string `json:"content"`
	Context string `json:"context,omitempty"`
	Stage   string `json:"stage,omitempty"`
}

// moderationResponse is the wire response from the moderation endpoint.
type moderationResponse struct {
	Flagged    bool               `json:"flagged"`
	Categories map[string]bool    `json:"categories,omitempty"`
	Scores     map[string]float64 `json:"category_scores,omitempty"`
	Reason     string             `json:"reason,omitempty"`
}

// Evaluate implements guardrail.Evaluator.
func (m *ModerationEvaluator) Evaluate(ctx context.Context, stage guardrail.Stage, content, history string, cfg *guardrail.StageConfig) (*guardrail.Evaluation, error) {
	if content == "" {
		return nil, nil
	}

	body, err := json.Marshal(moderationRequest{
		Model:   m.config.Model,
		Content: content,
		Context: history,
		Stage:   string(stage),
	})
	if err != nil {
		return nil, types.WrapError(types.BACKEND_REQUEST_FAILED, "failed to encode moderation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.WrapError(types.BACKEND_REQUEST_FAILED, "failed to build moderation request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if m.config.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+m.config.APIKey)
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, types.WrapRetryableError(types.BACKEND_REQUEST_FAILED, "moderation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, types.NewRetryableError(types.BACKEND_REQUEST_FAILED,
			fmt.Sprintf("moderation endpoint returned status %d", resp.StatusCode))
	}

	var result moderationResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, types.WrapError(types.BACKEND_RESPONSE_INVALID, "failed to decode moderation response", err)
	}

	return m.evaluation(result, cfg), nil
}

// evaluation translates the wire response into a verdict. The threshold is
// resolved stage value first, then instance value, then DefaultThreshold.
func (m *ModerationEvaluator) evaluation(result moderationResponse, cfg *guardrail.StageConfig) *guardrail.Evaluation {
	def := DefaultThreshold
	if m.config.Threshold != nil {
		def = *m.config.Threshold
	}
	threshold := guardrail.ResolveFloatOption(cfg, m.instance, "threshold", def)

	flagged := make([]string, 0)
	for name, on := range result.Categories {
		if on {
			flagged = append(flagged, name)
		}
	}
	for name, score := range result.Scores {
		if score >= threshold && !contains(flagged, name) {
			flagged = append(flagged, name)
		}
	}
	sort.Strings(flagged)

	if !result.Flagged && len(flagged) == 0 {
		return &guardrail.Evaluation{Safe: true}
	}

	eval := &guardrail.Evaluation{
		Safe:   false,
		Reason: result.Reason,
	}
	if len(flagged) > 0 {
		eval.Details = map[string]any{"categories": flagged}
	}
	return eval
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}
