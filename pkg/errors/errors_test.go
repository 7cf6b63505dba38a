package errors

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvalidTransitionMessage(t *testing.T) {
	err := InvalidTransition("ASSIGN", "CLOSED")
	assert.Equal(t, "Transition ASSIGN not allowed from state CLOSED.", err.Message)
	assert.Equal(t, http.StatusBadRequest, err.StatusCode())
}

func TestStatusCodes(t *testing.T) {
	tests := []struct {
		err    *AppError
		status int
	}{
		{NotFound("referral", nil), http.StatusNotFound},
		{BadRequest("bad", nil), http.StatusBadRequest},
		{Conflict("dup"), http.StatusBadRequest},
		{Unauthorized(nil), http.StatusUnauthorized},
		{Forbidden("no"), http.StatusForbidden},
		{ScanRejected("x.pdf"), http.StatusBadRequest},
		{Internal(nil), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.status, tt.err.StatusCode(), tt.err.Message)
	}
}

func TestNotFoundMessage(t *testing.T) {
	assert.Equal(t, "referral not found", NotFound("referral", nil).Error())
}

func TestAppErrorUnwrap(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NotFound("user", cause)
	assert.ErrorIs(t, err, cause)
}

func TestAsAppError(t *testing.T) {
	wrapped := fmt.Errorf("context: %w", Forbidden("no access"))
	appErr, ok := AsAppError(wrapped)
	require.True(t, ok)
	assert.Equal(t, ErrForbidden, appErr.Code)

	_, ok = AsAppError(fmt.Errorf("plain"))
	assert.False(t, ok)
}

func TestFieldErrors(t *testing.T) {
	fields := NewFieldErrors()
	assert.False(t, fields.HasErrors())

	fields.Add("object", "object is required")
	fields.Add("object", "object is too short")
	fields.Add("topic", "topic is required")

	assert.True(t, fields.HasErrors())
	assert.Len(t, fields.Fields["object"], 2)

	got, ok := AsFieldErrors(fmt.Errorf("send failed: %w", fields))
	require.True(t, ok)
	assert.Equal(t, fields.Fields, got.Fields)
}
