package guardrail

import (
	"context"

	"github.com/zero-day-ai/warden/internal/types"
)

type contextKey string

const sessionIDKey contextKey = "warden.session_id"

// WithSessionID attaches the agent session identifier to the context. Backends
// that correlate their own pre-model and post-model calls key their state by
// this identifier.
func WithSessionID(ctx context.Context, id types.ID) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session identifier attached to the
// context, or the zero ID when none is set.
func SessionIDFromContext(ctx context.Context) types.ID {
	if id, ok := ctx.Value(sessionIDKey).(types.ID); ok {
		return id
	}
	return ""
}
