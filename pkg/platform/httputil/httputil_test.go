package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "admissions/pkg/domain-errors"
)

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestWriteError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		status      int
		code        string
		description string
	}{
		{"validation", dErrors.New(dErrors.CodeValidation, "identifier is required"), http.StatusBadRequest, "validation_error", "identifier is required"},
		{"invalid input", dErrors.New(dErrors.CodeInvalidInput, "unknown action"), http.StatusBadRequest, "bad_request", "unknown action"},
		{"unauthorized", dErrors.New(dErrors.CodeUnauthorized, "invalid email or password"), http.StatusUnauthorized, "unauthorized", "invalid email or password"},
		{"wrapped by fmt", fmt.Errorf("login: %w", dErrors.New(dErrors.CodeUnauthorized, "invalid email or password")), http.StatusUnauthorized, "unauthorized", "invalid email or password"},
		{"plain error", errors.New("dial tcp: connection refused"), http.StatusInternalServerError, "internal_error", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
			resp := decodeEnvelope(t, w)
			assert.Equal(t, tt.code, resp.Error)
			assert.Equal(t, tt.description, resp.ErrorDescription)
		})
	}
}

type loginBody struct {
	Email string `json:"email" validate:"required,email"`
}

func TestDecodeJSON(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	decode := func(body string) (*loginBody, bool, *httptest.ResponseRecorder) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(body))
		req, ok := DecodeJSON[loginBody](r.Context(), w, r, logger)
		return req, ok, w
	}

	t.Run("valid body", func(t *testing.T) {
		req, ok, _ := decode(`{"email":"applicant@example.edu"}`)
		require.True(t, ok)
		assert.Equal(t, "applicant@example.edu", req.Email)
	})

	t.Run("malformed JSON", func(t *testing.T) {
		_, ok, w := decode(`{"email":`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "invalid request body", decodeEnvelope(t, w).ErrorDescription)
	})

	t.Run("trailing data", func(t *testing.T) {
		_, ok, w := decode(`{"email":"a@example.edu"} {"email":"b@example.edu"}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("fails validation", func(t *testing.T) {
		_, ok, w := decode(`{"email":"not-an-email"}`)
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "email must be a valid email", decodeEnvelope(t, w).ErrorDescription)
	})

	t.Run("body over limit", func(t *testing.T) {
		w := httptest.NewRecorder()
		r := httptest.NewRequest(http.MethodPost, "/auth/login", strings.NewReader(`{"email":"`+strings.Repeat("a", 64)+`@example.edu"}`))
		r.Body = http.MaxBytesReader(w, r.Body, 16)
		_, ok := DecodeJSON[loginBody](r.Context(), w, r, logger)
		assert.False(t, ok)
		assert.Equal(t, "request body too large", decodeEnvelope(t, w).ErrorDescription)
	})
}
