package avatar

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorCode aligns HTTP status, retryability and failover behaviour.
type ErrorCode string

const (
	ErrTimeout          ErrorCode = "AVATAR_TIMEOUT"           // network or upstream timeout
	ErrTransport        ErrorCode = "AVATAR_TRANSPORT"         // connection-level failure
	ErrProviderServer   ErrorCode = "AVATAR_PROVIDER_SERVER"   // 5xx-equivalent upstream error
	ErrProviderRejected ErrorCode = "AVATAR_PROVIDER_REJECTED" // 4xx-equivalent, payload-specific
	ErrInvalidRequest   ErrorCode = "AVATAR_INVALID_REQUEST"   // caller defect, never retried
	ErrUnauthorized     ErrorCode = "AVATAR_UNAUTHORIZED"      // bad or missing credentials
	ErrRateLimited      ErrorCode = "AVATAR_RATE_LIMITED"      // local admission denied or upstream throttle; never retried in place
	ErrExhausted        ErrorCode = "AVATAR_ALL_PROVIDERS_EXHAUSTED"
)

// Error is the structured error produced by adapters and the client.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status,omitempty"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
	Cause      error     `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Cause }

// NewError creates an Error with the given code and message.
func NewError(code ErrorCode, message string) *Error {
	return &Error{Code: code, Message: message}
}

// WithCause attaches the underlying cause.
func (e *Error) WithCause(cause error) *Error {
	e.Cause = cause
	return e
}

// WithHTTPStatus records the upstream HTTP status.
func (e *Error) WithHTTPStatus(status int) *Error {
	e.HTTPStatus = status
	return e
}

// WithRetryable marks whether the same provider may be retried.
func (e *Error) WithRetryable(retryable bool) *Error {
	e.Retryable = retryable
	return e
}

// WithProvider records which provider produced the error.
func (e *Error) WithProvider(provider string) *Error {
	e.Provider = provider
	return e
}

// IsRetryable reports whether the same provider may be retried.
func IsRetryable(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Retryable
	}
	return false
}

// CodeOf extracts the error code, or "" for foreign errors.
func CodeOf(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// IsCallerFault reports whether the failure indicates a caller-side defect.
// Such failures are never retried and never fail over: retrying elsewhere
// cannot help a malformed request or bad credentials.
func IsCallerFault(err error) bool {
	switch CodeOf(err) {
	case ErrInvalidRequest, ErrUnauthorized:
		return true
	}
	return false
}

// ProviderOutcome is the terminal result of trying one provider.
type ProviderOutcome struct {
	Provider string    `json:"provider"`
	Code     ErrorCode `json:"code"`
	Attempts int       `json:"attempts"`
	Err      error     `json:"-"`
}

// ExhaustedError is the terminal failure after every candidate was tried.
// It enumerates the final outcome per provider so the caller can tell
// "try again later" apart from "fix the request".
type ExhaustedError struct {
	Outcomes []ProviderOutcome
}

func (e *ExhaustedError) Error() string {
	parts := make([]string, 0, len(e.Outcomes))
	for _, o := range e.Outcomes {
		parts = append(parts, fmt.Sprintf("%s=%s", o.Provider, o.Code))
	}
	return fmt.Sprintf("[%s] all providers exhausted: %s", ErrExhausted, strings.Join(parts, ", "))
}

// Outcome reports the terminal outcome for a given provider, if it was tried.
func (e *ExhaustedError) Outcome(provider string) (ProviderOutcome, bool) {
	for _, o := range e.Outcomes {
		if o.Provider == provider {
			return o, true
		}
	}
	return ProviderOutcome{}, false
}
