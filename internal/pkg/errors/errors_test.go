package errors

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", NewValidation("name", "is required"), http.StatusBadRequest, ErrCodeInvalidInput},
		{"unauthorized", &AuthError{}, http.StatusUnauthorized, ErrCodeUnauthorized},
		{"forbidden", Forbidden("owner only"), http.StatusForbidden, ErrCodeForbidden},
		{"not found", &NotFoundError{Resource: "api key", ID: "k1"}, http.StatusNotFound, ErrCodeNotFound},
		{"conflict", Conflict("duplicate"), http.StatusConflict, ErrCodeConflict},
		{"wrapped not found", fmt.Errorf("delete: %w", &NotFoundError{Resource: "org"}), http.StatusNotFound, ErrCodeNotFound},
		{"other", New("boom"), http.StatusInternalServerError, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, code := Status(tt.err)
			assert.Equal(t, tt.status, status)
			assert.Equal(t, tt.code, code)
		})
	}
}

func TestRemoteErrorRetryable(t *testing.T) {
	assert.True(t, (&RemoteError{Status: 0}).Retryable())
	assert.True(t, (&RemoteError{Status: 503}).Retryable())
	assert.True(t, (&RemoteError{Status: 429}).Retryable())
	assert.False(t, (&RemoteError{Status: 409}).Retryable())
	assert.True(t, Is(Conflict("dup"), ErrConflict))
	assert.True(t, Is(Conflict("dup"), ErrRemote))
}

func TestWriteFunctionError(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteFunctionError(rr, http.StatusUnauthorized, "Unauthorized")

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, map[string]string{"error": "Unauthorized"}, body)
}

func TestWriteDomainErrorHidesInternalMessage(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteDomainError(rr, New("pq: connection refused"))

	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.Equal(t, "Internal error", body.Message)
}
