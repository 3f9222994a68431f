package avatar

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrapping(t *testing.T) {
	cause := errors.New("connection reset")
	err := NewError(ErrTransport, "transport failure").
		WithRetryable(true).
		WithProvider("duix").
		WithCause(cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "AVATAR_TRANSPORT")
	assert.Contains(t, err.Error(), "connection reset")

	var e *Error
	require.True(t, errors.As(fmt.Errorf("wrapped: %w", err), &e))
	assert.Equal(t, "duix", e.Provider)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(serverErr("duix")))
	assert.False(t, IsRetryable(rejectedErr("duix")))
	assert.False(t, IsRetryable(errors.New("foreign")))
	assert.False(t, IsRetryable(nil))
}

func TestIsCallerFault(t *testing.T) {
	assert.True(t, IsCallerFault(NewError(ErrInvalidRequest, "empty text")))
	assert.True(t, IsCallerFault(unauthorizedErr("duix")))
	assert.False(t, IsCallerFault(serverErr("duix")))
	assert.False(t, IsCallerFault(NewError(ErrRateLimited, "denied")))
	assert.False(t, IsCallerFault(errors.New("foreign")))
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, ErrProviderServer, CodeOf(serverErr("duix")))
	assert.Equal(t, ErrorCode(""), CodeOf(errors.New("foreign")))
	assert.Equal(t, ErrTimeout, CodeOf(fmt.Errorf("outer: %w", NewError(ErrTimeout, "slow"))))
}

func TestExhaustedError(t *testing.T) {
	err := &ExhaustedError{Outcomes: []ProviderOutcome{
		{Provider: "duix", Code: ErrProviderServer, Attempts: 3},
		{Provider: "akool", Code: ErrProviderRejected, Attempts: 1},
	}}

	msg := err.Error()
	assert.Contains(t, msg, "duix=AVATAR_PROVIDER_SERVER")
	assert.Contains(t, msg, "akool=AVATAR_PROVIDER_REJECTED")

	o, ok := err.Outcome("akool")
	require.True(t, ok)
	assert.Equal(t, 1, o.Attempts)

	_, ok = err.Outcome("sense")
	assert.False(t, ok)
}
