package types

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unified error code across mediaflow.
type ErrorCode string

// Run-level error codes. Only ErrConfiguration and ErrNoPrompts abort a run.
const (
	ErrConfiguration ErrorCode = "CONFIGURATION"
	ErrNoPrompts     ErrorCode = "NO_PROMPTS"
)

// Item-level error codes. These are logged and the item is skipped.
const (
	ErrTransport     ErrorCode = "TRANSPORT"
	ErrUpstreamError ErrorCode = "UPSTREAM_ERROR"
	ErrParse         ErrorCode = "PARSE"
	ErrTimeout       ErrorCode = "TIMEOUT"
	ErrTaskFailed    ErrorCode = "TASK_FAILED"
	ErrNoCandidate   ErrorCode = "NO_CANDIDATE"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
)

// Error represents a structured error with code, message, and metadata.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewError creates a new Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Errorf creates a new Error with a formatted message.
func Errorf(code ErrorCode, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// WithCause adds a cause to the error.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus sets the HTTP status code.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks the error as retryable.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider sets the provider name.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// GetErrorCode extracts the error code from an error chain.
func GetErrorCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCode reports whether any error in err's chain carries the given code.
func IsCode(err error, code ErrorCode) bool {
	return err != nil && GetErrorCode(err) == code
}

// IsFatal reports whether err must abort a whole workflow run.
func IsFatal(err error) bool {
	switch GetErrorCode(err) {
	case ErrConfiguration, ErrNoPrompts:
		return true
	}
	return false
}
