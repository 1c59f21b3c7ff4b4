package guardrail

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name    string
		content any
		want    string
	}{
		{
			name:    "plain string",
			content: "hello",
			want:    "hello",
		},
		{
			name:    "two text blocks join with newline",
			content: []ContentBlock{TextBlock("a"), TextBlock("b")},
			want:    "a\nb",
		},
		{
			name:    "non-text blocks are skipped",
			content: []ContentBlock{TextBlock("keep"), {Type: "image", Text: "ignored"}},
			want:    "keep",
		},
		{
			name:    "untyped block counts as text",
			content: []ContentBlock{{Text: "untyped"}},
			want:    "untyped",
		},
		{
			name:    "loose block maps",
			content: []any{map[string]any{"type": "text", "text": "a"}, map[string]any{"type": "image"}},
			want:    "a",
		},
		{
			name:    "nil yields empty",
			content: nil,
			want:    "",
		},
		{
			name:    "unsupported type yields empty",
			content: 42,
			want:    "",
		},
		{
			name:    "empty block list",
			content: []ContentBlock{},
			want:    "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractText(tt.content))
		})
	}
}

func TestExtractToolResultText(t *testing.T) {
	t.Run("prefers content text", func(t *testing.T) {
		result := ToolResult{
			Content: []ContentBlock{TextBlock("output")},
			Details: map[string]any{"status": 200},
		}
		assert.Equal(t, "output", ExtractToolResultText(result))
	})

	t.Run("falls back to details JSON", func(t *testing.T) {
		result := ToolResult{
			Content: []ContentBlock{{Type: "image"}},
			Details: map[string]any{"status": float64(200)},
		}
		assert.JSONEq(t, `{"status":200}`, ExtractToolResultText(result))
	})

	t.Run("falls back to whole result JSON", func(t *testing.T) {
		result := ToolResult{Content: []ContentBlock{{Type: "image"}}}
		assert.JSONEq(t, `{"content":[{"type":"image"}]}`, ExtractToolResultText(result))
	})

	t.Run("unserializable details degrade to whole result", func(t *testing.T) {
		result := ToolResult{Details: map[string]any{"bad": func() {}}}
		// The whole-result serialization fails for the same reason, so the
		// extraction degrades to empty rather than erroring.
		assert.Equal(t, "", ExtractToolResultText(result))
	})
}

func TestExtractHistoryContext(t *testing.T) {
	tests := []struct {
		name     string
		messages []Message
		want     string
	}{
		{
			name: "user and assistant prefixed in order",
			messages: []Message{
				{Role: RoleUser, Content: "hi"},
				{Role: RoleAssistant, Content: "hello"},
			},
			want: "User: hi\nAgent: hello",
		},
		{
			name: "tool and system roles are dropped",
			messages: []Message{
				{Role: RoleUser, Content: "run it"},
				{Role: RoleTool, Content: "tool output"},
				{Role: RoleSystem, Content: "system note"},
				{Role: RoleAssistant, Content: "done"},
			},
			want: "User: run it\nAgent: done",
		},
		{
			name: "empty extractions are dropped",
			messages: []Message{
				{Role: RoleUser, Content: "   "},
				{Role: RoleAssistant, Content: []ContentBlock{{Type: "image"}}},
				{Role: RoleUser, Content: "real"},
			},
			want: "User: real",
		},
		{
			name: "block content is flattened",
			messages: []Message{
				{Role: RoleUser, Content: []ContentBlock{TextBlock("a"), TextBlock("b")}},
			},
			want: "User: a\nb",
		},
		{
			name:     "empty history",
			messages: nil,
			want:     "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractHistoryContext(tt.messages))
		})
	}
}
