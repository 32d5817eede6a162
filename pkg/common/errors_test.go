package common

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorKindStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  *AppError
		kind Kind
		code int
	}{
		{"invalid input", NewInvalidInputError("bad coordinates", nil), KindInvalidInput, http.StatusBadRequest},
		{"not found", NewNotFoundError("ride not found", nil), KindNotFound, http.StatusNotFound},
		{"conflict", NewConflictError("ride already matched"), KindConflict, http.StatusConflict},
		{"validation", NewValidationError("invalid OTP"), KindValidation, http.StatusUnprocessableEntity},
		{"timeout", NewTimeoutError("persistence deadline exceeded", nil), KindTimeout, http.StatusGatewayTimeout},
		{"dependency", NewDependencyError("payment gateway unavailable", nil), KindDependency, http.StatusServiceUnavailable},
		{"internal", NewInternalError("invariant violated", nil), KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.err.Kind)
			assert.Equal(t, tt.code, tt.err.Code)
		})
	}
}

func TestRetryable(t *testing.T) {
	assert.True(t, NewConflictError("locked").Retryable())
	assert.True(t, NewTimeoutError("slow", nil).Retryable())
	assert.True(t, NewDependencyError("down", nil).Retryable())

	assert.False(t, NewInvalidInputError("bad", nil).Retryable())
	assert.False(t, NewNotFoundError("missing", nil).Retryable())
	assert.False(t, NewValidationError("rule").Retryable())
	assert.False(t, NewInternalError("bug", nil).Retryable())
}

func TestAsAppErrorThroughWrapping(t *testing.T) {
	base := NewConflictError("driver no longer available")
	wrapped := fmt.Errorf("matching attempt 2: %w", base)

	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindConflict, appErr.Kind)
	assert.True(t, IsKind(wrapped, KindConflict))
}

func TestKindOfUnclassified(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain error")))
}

func TestErrorMessageIncludesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := NewDependencyError("redis unavailable", cause)

	assert.Contains(t, err.Error(), "redis unavailable")
	assert.Contains(t, err.Error(), "connection refused")
	assert.ErrorIs(t, err, cause)
}
