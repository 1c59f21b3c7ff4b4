package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWardenErrorFormat(t *testing.T) {
	err := NewError(GUARDRAIL_CONFIG_INVALID, "endpoint is required")
	assert.Equal(t, "[GUARDRAIL_CONFIG_INVALID] endpoint is required", err.Error())

	wrapped := WrapError(BACKEND_REQUEST_FAILED, "request failed", errors.New("connection refused"))
	assert.Equal(t, "[BACKEND_REQUEST_FAILED] request failed: connection refused", wrapped.Error())
}

func TestWardenErrorUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := WrapError(GUARDRAIL_EXECUTION, "handler failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, cause, errors.Unwrap(err))
}

func TestWardenErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("outer: %w", NewError(BACKEND_TIMEOUT, "deadline exceeded"))

	assert.ErrorIs(t, err, NewError(BACKEND_TIMEOUT, "different message"))
	assert.NotErrorIs(t, err, NewError(BACKEND_REQUEST_FAILED, "deadline exceeded"))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewRetryableError(BACKEND_TIMEOUT, "timed out")))
	assert.True(t, IsRetryable(fmt.Errorf("wrapped: %w", WrapRetryableError(BACKEND_REQUEST_FAILED, "failed", errors.New("eof")))))
	assert.False(t, IsRetryable(NewError(GUARDRAIL_CONFIG_INVALID, "bad config")))
	assert.False(t, IsRetryable(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, GUARDRAIL_BLOCKED, CodeOf(NewError(GUARDRAIL_BLOCKED, "blocked")))
	assert.Equal(t, GUARDRAIL_BLOCKED, CodeOf(fmt.Errorf("wrapped: %w", NewError(GUARDRAIL_BLOCKED, "blocked"))))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("plain")))
	assert.Equal(t, ErrorCode(""), CodeOf(nil))
}

func TestWrapPreservesChain(t *testing.T) {
	inner := NewError(BACKEND_RESPONSE_INVALID, "bad json")
	outer := WrapError(GUARDRAIL_EXECUTION, "evaluation failed", inner)

	var wardenErr *WardenError
	require.True(t, errors.As(outer, &wardenErr))
	assert.Equal(t, GUARDRAIL_EXECUTION, wardenErr.Code)
	assert.ErrorIs(t, outer, inner)
}
