package guardrail

import (
	"context"
	"fmt"
	"sort"
	"strings"
)

// Evaluation is the universal verdict returned by a moderation backend.
// An unsafe verdict must allow the caller to produce a non-empty violation
// message from Reason and/or Details.
type Evaluation struct {
	Safe    bool           `json:"safe"`
	Reason  string         `json:"reason,omitempty"`
	Details map[string]any `json:"details,omitempty"`
}

// Evaluator is the contract every moderation backend implements. Evaluate
// inspects content (with optional rendered history context) for one stage and
// returns a verdict, nil for "no verdict available" (distinct from safe), or
// an error on transport/timeout/parse failure. Implementations must honor
// context cancellation and deadlines.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, stage Stage, content, history string, cfg *StageConfig) (*Evaluation, error)
}

// EvaluatorFunc adapts a plain function to the Evaluator interface.
type EvaluatorFunc struct {
	EvaluatorName string
	Func          func(ctx context.Context, stage Stage, content, history string, cfg *StageConfig) (*Evaluation, error)
}

func (f EvaluatorFunc) Name() string { return f.EvaluatorName }

func (f EvaluatorFunc) Evaluate(ctx context.Context, stage Stage, content, history string, cfg *StageConfig) (*Evaluation, error) {
	return f.Func(ctx, stage, content, history, cfg)
}

// ViolationMessage formats the user-visible message for an unsafe verdict,
// crediting the guardrail by name and locating the content by stage. The
// result is always non-empty.
func ViolationMessage(guardrailName string, stage Stage, eval *Evaluation) string {
	reason := violationReason(eval)
	return fmt.Sprintf("Content blocked by %s guardrail on %s: %s", guardrailName, stage.Location(), reason)
}

// violationReason extracts a human-readable reason from a verdict, falling
// back to flagged categories from Details, then to a generic phrase.
func violationReason(eval *Evaluation) string {
	if eval == nil {
		return "policy violation"
	}
	if strings.TrimSpace(eval.Reason) != "" {
		return eval.Reason
	}
	if categories := FlaggedCategories(eval.Details); len(categories) > 0 {
		return "flagged categories: " + strings.Join(categories, ", ")
	}
	return "policy violation"
}

// FlaggedCategories pulls category names out of an evaluation's details map.
// It understands both a "categories" list and a map of category to flag.
func FlaggedCategories(details map[string]any) []string {
	if details == nil {
		return nil
	}

	var categories []string
	switch raw := details["categories"].(type) {
	case []string:
		categories = append(categories, raw...)
	case []any:
		for _, item := range raw {
			if s, ok := item.(string); ok {
				categories = append(categories, s)
			}
		}
	case map[string]any:
		for name, flagged := range raw {
			if on, ok := flagged.(bool); ok && on {
				categories = append(categories, name)
			}
		}
		sort.Strings(categories)
	}
	return categories
}
