// Package httputil writes JSON responses and translates domain errors into
// the shared error envelope.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "admissions/pkg/domain-errors"
)

// ErrorResponse is the JSON error envelope shared by every handler.
type ErrorResponse struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:   http.StatusBadRequest,
	dErrors.CodeInvalidInput: http.StatusBadRequest,
	dErrors.CodeValidation:   http.StatusBadRequest,
	dErrors.CodeUnauthorized: http.StatusUnauthorized,
	dErrors.CodeRateLimited:  http.StatusTooManyRequests,
}

var envelopeByCode = map[dErrors.Code]string{
	dErrors.CodeBadRequest:   "bad_request",
	dErrors.CodeInvalidInput: "bad_request",
	dErrors.CodeValidation:   "validation_error",
	dErrors.CodeUnauthorized: "unauthorized",
	dErrors.CodeRateLimited:  "rate_limit_exceeded",
}

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, so an encoding failure cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError writes err as the error envelope. Errors without a code are
// reported as internal_error with no description.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, ErrorResponse{Error: ErrorCode(dErrors.CodeInternal)})
		return
	}
	WriteJSON(w, StatusCode(domainErr.Code), ErrorResponse{
		Error:            ErrorCode(domainErr.Code),
		ErrorDescription: domainErr.Message,
	})
}

// StatusCode translates a domain error code to an HTTP status.
func StatusCode(code dErrors.Code) int {
	if s, ok := statusByCode[code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// ErrorCode translates a domain error code to the "error" field of the
// envelope.
func ErrorCode(code dErrors.Code) string {
	if c, ok := envelopeByCode[code]; ok {
		return c
	}
	return "internal_error"
}
