package guardrail

import (
	"encoding/json"
	"strings"
)

// ExtractText flattens heterogeneous message content into plain text.
// A string is returned as-is; a sequence of blocks concatenates the text of
// every text (or untyped) block joined by newline, skipping non-text blocks.
// Anything else yields the empty string. Never fails.
func ExtractText(content any) string {
	switch c := content.(type) {
	case string:
		return c
	case ContentBlock:
		return blockText(c.Type, c.Text)
	case []ContentBlock:
		parts := make([]string, 0, len(c))
		for _, block := range c {
			if text := blockText(block.Type, block.Text); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	case []any:
		parts := make([]string, 0, len(c))
		for _, item := range c {
			if text := ExtractText(item); text != "" {
				parts = append(parts, text)
			}
		}
		return strings.Join(parts, "\n")
	case map[string]any:
		blockType, _ := c["type"].(string)
		text, _ := c["text"].(string)
		return blockText(blockType, text)
	default:
		return ""
	}
}

// blockText returns the text of a block when its type is text or absent.
func blockText(blockType, text string) string {
	if blockType == "" || blockType == "text" {
		return text
	}
	return ""
}

// ExtractToolResultText flattens a tool result for evaluation. It prefers the
// text blocks of the result content; when those trim to empty it falls back
// to a JSON serialization of the details map, then of the whole result.
// Serialization failures degrade to the empty string.
func ExtractToolResultText(result ToolResult) string {
	if text := ExtractText(result.Content); strings.TrimSpace(text) != "" {
		return text
	}

	if len(result.Details) > 0 {
		if data, err := json.Marshal(result.Details); err == nil {
			return string(data)
		}
	}

	if data, err := json.Marshal(result); err == nil {
		return string(data)
	}

	return ""
}

// ExtractHistoryContext renders conversation history as human-readable
// context for an evaluator. Only user and assistant messages are included;
// entries whose extracted text trims to empty are dropped.
func ExtractHistoryContext(messages []Message) string {
	lines := make([]string, 0, len(messages))
	for _, msg := range messages {
		var prefix string
		switch msg.Role {
		case RoleUser:
			prefix = "User: "
		case RoleAssistant:
			prefix = "Agent: "
		default:
			continue
		}

		text := ExtractText(msg.Content)
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, prefix+text)
	}
	return strings.Join(lines, "\n")
}
