package guardrail

import "fmt"

// Stage identifies one of the four interception points in an agent turn.
type Stage string

const (
	StageBeforeRequest  Stage = "before_request"
	StageBeforeToolCall Stage = "before_tool_call"
	StageAfterToolCall  Stage = "after_tool_call"
	StageAfterResponse  Stage = "after_response"
)

// AllStages lists every stage in lifecycle order.
func AllStages() []Stage {
	return []Stage{StageBeforeRequest, StageBeforeToolCall, StageAfterToolCall, StageAfterResponse}
}

// Valid reports whether s is one of the four known stages.
func (s Stage) Valid() bool {
	switch s {
	case StageBeforeRequest, StageBeforeToolCall, StageAfterToolCall, StageAfterResponse:
		return true
	}
	return false
}

// ParseStage parses and validates a stage name.
func ParseStage(s string) (Stage, error) {
	stage := Stage(s)
	if !stage.Valid() {
		return "", fmt.Errorf("unknown stage: %q", s)
	}
	return stage, nil
}

// Location returns the human-readable label used in violation messages
// for content intercepted at this stage.
func (s Stage) Location() string {
	switch s {
	case StageBeforeRequest:
		return "input query"
	case StageBeforeToolCall:
		return "tool call request"
	case StageAfterToolCall:
		return "tool response"
	case StageAfterResponse:
		return "model response"
	default:
		return string(s)
	}
}

// Role identifies the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

// Message is one entry in the conversation history. Content is either a
// plain string or an ordered sequence of content blocks.
type Message struct {
	Role    Role `json:"role"`
	Content any  `json:"content"`
}

// ContentBlock is a typed fragment of message or tool-result content.
// Blocks with an empty Type are treated as text.
type ContentBlock struct {
	Type string `json:"type,omitempty"`
	Text string `json:"text,omitempty"`
}

// TextBlock builds a text content block.
func TextBlock(text string) ContentBlock {
	return ContentBlock{Type: "text", Text: text}
}

// ToolResult is the structured outcome of a tool execution: ordered content
// blocks plus an opaque details map the tool may attach.
type ToolResult struct {
	Content []ContentBlock `json:"content"`
	Details map[string]any `json:"details,omitempty"`
}

// StagePayload is the closed union of the four per-stage payload shapes.
// Only the four payload types in this package implement it.
type StagePayload interface {
	Stage() Stage
	History() []Message
}

// BeforeRequestPayload carries the outbound prompt before it reaches the model.
type BeforeRequestPayload struct {
	Prompt       string    `json:"prompt"`
	Messages     []Message `json:"messages"`
	SystemPrompt string    `json:"system_prompt,omitempty"`
}

func (p *BeforeRequestPayload) Stage() Stage       { return StageBeforeRequest }
func (p *BeforeRequestPayload) History() []Message { return p.Messages }

// BeforeToolCallPayload carries a tool call before the tool executes.
type BeforeToolCallPayload struct {
	ToolName   string         `json:"tool_name"`
	ToolCallID string         `json:"tool_call_id"`
	Params     map[string]any `json:"params,omitempty"`
	Messages   []Message      `json:"messages"`
}

func (p *BeforeToolCallPayload) Stage() Stage       { return StageBeforeToolCall }
func (p *BeforeToolCallPayload) History() []Message { return p.Messages }

// AfterToolCallPayload carries a tool result before it re-enters the turn.
type AfterToolCallPayload struct {
	ToolName   string         `json:"tool_name"`
	ToolCallID string         `json:"tool_call_id"`
	Params     map[string]any `json:"params,omitempty"`
	Result     ToolResult     `json:"result"`
	Messages   []Message      `json:"messages"`
}

func (p *AfterToolCallPayload) Stage() Stage       { return StageAfterToolCall }
func (p *AfterToolCallPayload) History() []Message { return p.Messages }

// AfterResponsePayload carries the final assistant response texts.
type AfterResponsePayload struct {
	AssistantTexts []string  `json:"assistant_texts"`
	Messages       []Message `json:"messages"`
	LastAssistant  *Message  `json:"last_assistant,omitempty"`
}

func (p *AfterResponsePayload) Stage() Stage       { return StageAfterResponse }
func (p *AfterResponsePayload) History() []Message { return p.Messages }
