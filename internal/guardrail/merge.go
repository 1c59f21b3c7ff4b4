package guardrail

// GuardrailWarningKey is the details key set on a tool result that was
// rewritten by a block directive.
const GuardrailWarningKey = "guardrailWarning"

// ApplyMutation merges a handler's partial result into the working payload,
// returning a new payload. Only the mutation fields valid for the payload's
// stage are consulted; untouched fields are identity-preserved. Block
// directives are not applied here, they terminate the stage instead.
func ApplyMutation(payload StagePayload, result *HandlerResult) StagePayload {
	if result.Empty() || result.Block {
		return payload
	}

	switch p := payload.(type) {
	case *BeforeRequestPayload:
		next := *p
		if result.Prompt != nil {
			next.Prompt = *result.Prompt
		}
		if result.Messages != nil {
			next.Messages = result.Messages
		}
		return &next

	case *BeforeToolCallPayload:
		next := *p
		if result.Params != nil {
			next.Params = result.Params
		}
		return &next

	case *AfterToolCallPayload:
		next := *p
		if result.Result != nil {
			next.Result = *result.Result
		}
		return &next

	case *AfterResponsePayload:
		next := *p
		if result.AssistantTexts != nil {
			next.AssistantTexts = result.AssistantTexts
		}
		return &next

	default:
		return payload
	}
}

// BlockToolResult materializes the replacement tool result for a blocked
// after_tool_call stage. Append mode keeps every original content block,
// pushes one warning text block, and adds the guardrail warning to the
// existing details map without disturbing other keys. Replace mode discards
// all original content and details, keeping only the warning.
func BlockToolResult(original ToolResult, warning string, mode BlockMode) ToolResult {
	if mode == BlockModeAppend {
		content := make([]ContentBlock, 0, len(original.Content)+1)
		content = append(content, original.Content...)
		content = append(content, TextBlock(warning))

		details := original.Details
		if details != nil {
			merged := make(map[string]any, len(details)+1)
			for k, v := range details {
				merged[k] = v
			}
			merged[GuardrailWarningKey] = warning
			details = merged
		}

		return ToolResult{Content: content, Details: details}
	}

	return ToolResult{
		Content: []ContentBlock{TextBlock(warning)},
		Details: map[string]any{GuardrailWarningKey: warning},
	}
}

// BlockAssistantTexts materializes the block directive for a blocked
// after_response stage. Append mode returns the original texts with the
// warning appended as an additional element; replace mode supplies a
// blockResponse that fully replaces the response.
func BlockAssistantTexts(original []string, warning string, mode BlockMode) *HandlerResult {
	if mode == BlockModeAppend {
		texts := make([]string, 0, len(original)+1)
		texts = append(texts, original...)
		texts = append(texts, warning)
		return &HandlerResult{Block: true, AssistantTexts: texts}
	}
	return &HandlerResult{Block: true, BlockResponse: warning}
}
