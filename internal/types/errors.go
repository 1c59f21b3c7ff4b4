package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a namespaced error code for Warden framework errors.
type ErrorCode string

// Configuration error codes
const (
	CONFIG_LOAD_FAILED       ErrorCode = "CONFIG_LOAD_FAILED"
	CONFIG_PARSE_FAILED      ErrorCode = "CONFIG_PARSE_FAILED"
	CONFIG_VALIDATION_FAILED ErrorCode = "CONFIG_VALIDATION_FAILED"
	CONFIG_NOT_FOUND         ErrorCode = "CONFIG_NOT_FOUND"
)

// Guardrail error codes
const (
	GUARDRAIL_BLOCKED        ErrorCode = "GUARDRAIL_BLOCKED"
	GUARDRAIL_CONFIG_INVALID ErrorCode = "GUARDRAIL_CONFIG_INVALID"
	GUARDRAIL_NOT_FOUND      ErrorCode = "GUARDRAIL_NOT_FOUND"
	GUARDRAIL_EXECUTION      ErrorCode = "GUARDRAIL_EXECUTION"
)

// Backend error codes
const (
	BACKEND_REQUEST_FAILED   ErrorCode = "BACKEND_REQUEST_FAILED"
	BACKEND_TIMEOUT          ErrorCode = "BACKEND_TIMEOUT"
	BACKEND_RESPONSE_INVALID ErrorCode = "BACKEND_RESPONSE_INVALID"
)

// WardenError represents a structured error with error code, message, and optional cause.
// It supports error wrapping and retryability hints for error handling logic.
type WardenError struct {
	Code      ErrorCode
	Message   string
	Retryable bool
	Cause     error
}

// Error implements the error interface, returning a formatted error message.
// Format: "[CODE] message" or "[CODE] message: cause" if cause exists.
func (e *WardenError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error for error unwrapping chains.
func (e *WardenError) Unwrap() error {
	return e.Cause
}

// Is checks if the target error matches this error by error code.
func (e *WardenError) Is(target error) bool {
	var wardenErr *WardenError
	if errors.As(target, &wardenErr) {
		return e.Code == wardenErr.Code
	}
	return false
}

// NewError creates a new non-retryable WardenError with the given code and message.
func NewError(code ErrorCode, message string) *WardenError {
	return &WardenError{
		Code:    code,
		Message: message,
	}
}

// NewRetryableError creates a new retryable WardenError with the given code and message.
// Use this for transient errors that may succeed on retry (e.g., network timeouts).
func NewRetryableError(code ErrorCode, message string) *WardenError {
	return &WardenError{
		Code:      code,
		Message:   message,
		Retryable: true,
	}
}

// WrapError creates a new non-retryable WardenError that wraps an existing error.
// The wrapped error is accessible via Unwrap() for error chain inspection.
func WrapError(code ErrorCode, message string, cause error) *WardenError {
	return &WardenError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// WrapRetryableError creates a retryable WardenError that wraps an existing error.
func WrapRetryableError(code ErrorCode, message string, cause error) *WardenError {
	return &WardenError{
		Code:      code,
		Message:   message,
		Retryable: true,
		Cause:     cause,
	}
}

// IsRetryable reports whether err (or any error in its chain) is a retryable WardenError.
func IsRetryable(err error) bool {
	var wardenErr *WardenError
	if errors.As(err, &wardenErr) {
		return wardenErr.Retryable
	}
	return false
}

// CodeOf returns the error code of err if it is a WardenError, or empty string otherwise.
func CodeOf(err error) ErrorCode {
	var wardenErr *WardenError
	if errors.As(err, &wardenErr) {
		return wardenErr.Code
	}
	return ""
}
