package guardrail

import (
	"fmt"

	"github.com/zero-day-ai/warden/internal/types"
)

// Guardrail error codes
const (
	ErrGuardrailBlocked       = types.GUARDRAIL_BLOCKED
	ErrGuardrailConfigInvalid = types.GUARDRAIL_CONFIG_INVALID
	ErrGuardrailExecution     = types.GUARDRAIL_EXECUTION
)

// BlockedError reports that a guardrail blocked a stage. Hosts that prefer
// error semantics over inspecting the dispatch outcome can use Outcome.Err.
type BlockedError struct {
	GuardrailName string
	Stage         Stage
	Message       string
}

// Error implements the error interface.
func (e *BlockedError) Error() string {
	return fmt.Sprintf("guardrail '%s' blocked %s: %s", e.GuardrailName, e.Stage, e.Message)
}

// Unwrap returns nil as this is a terminal error.
func (e *BlockedError) Unwrap() error {
	return nil
}

// NewBlockedError creates a new BlockedError.
func NewBlockedError(name string, stage Stage, message string) *BlockedError {
	return &BlockedError{
		GuardrailName: name,
		Stage:         stage,
		Message:       message,
	}
}
