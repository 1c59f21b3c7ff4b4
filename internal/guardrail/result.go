package guardrail

// HandlerResult is what a stage handler returns: nil for no effect, a block
// directive, or a partial mutation of the stage-appropriate payload fields.
// Only the fields that belong to the payload's stage are consulted.
type HandlerResult struct {
	// Block, when true, terminates the stage. The accompanying message field
	// depends on the stage: BlockResponse for before_request/after_response,
	// BlockReason for before_tool_call, Result for after_tool_call.
	Block         bool   `json:"block,omitempty"`
	BlockResponse string `json:"block_response,omitempty"`
	BlockReason   string `json:"block_reason,omitempty"`

	// ToolResult optionally supplies a synthetic result for a blocked
	// before_tool_call, returned in place of executing the tool.
	ToolResult *ToolResult `json:"tool_result,omitempty"`

	// Mutation fields. A nil/absent field leaves the payload untouched.
	Prompt         *string        `json:"prompt,omitempty"`
	Messages       []Message      `json:"messages,omitempty"`
	Params         map[string]any `json:"params,omitempty"`
	Result         *ToolResult    `json:"result,omitempty"`
	AssistantTexts []string       `json:"assistant_texts,omitempty"`
}

// Empty reports whether the result carries neither a block directive nor any
// mutation.
func (r *HandlerResult) Empty() bool {
	if r == nil {
		return true
	}
	return !r.Block &&
		r.Prompt == nil &&
		r.Messages == nil &&
		r.Params == nil &&
		r.Result == nil &&
		r.AssistantTexts == nil
}

// BlockWithResponse builds a block directive for the request/response stages.
func BlockWithResponse(response string) *HandlerResult {
	return &HandlerResult{Block: true, BlockResponse: response}
}

// BlockWithReason builds a block directive for the tool-call stage.
func BlockWithReason(reason string) *HandlerResult {
	return &HandlerResult{Block: true, BlockReason: reason}
}

// BlockWithResult builds a block directive for the after-tool-call stage,
// carrying the already-materialized replacement result.
func BlockWithResult(result ToolResult) *HandlerResult {
	return &HandlerResult{Block: true, Result: &result}
}

// MutatePrompt builds a mutation replacing the outbound prompt.
func MutatePrompt(prompt string) *HandlerResult {
	return &HandlerResult{Prompt: &prompt}
}

// MutateParams builds a mutation replacing tool-call arguments.
func MutateParams(params map[string]any) *HandlerResult {
	return &HandlerResult{Params: params}
}
