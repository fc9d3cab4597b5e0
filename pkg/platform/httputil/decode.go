package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/validation"
)

// DecodeJSON decodes exactly one JSON object from the request body into T
// and validates it with pkg/validation. On failure it writes the error
// response and returns nil, false.
//
//	req, ok := httputil.DecodeJSON[models.LoginRequest](ctx, w, r, h.logger)
//	if !ok {
//	    return
//	}
func DecodeJSON[T any](ctx context.Context, w http.ResponseWriter, r *http.Request, logger *slog.Logger) (*T, bool) {
	var req T
	dec := json.NewDecoder(r.Body)
	err := dec.Decode(&req)
	if err == nil && dec.Decode(&struct{}{}) != io.EOF {
		err = errors.New("unexpected data after JSON object")
	}
	if err != nil {
		logger.WarnContext(ctx, "failed to decode request body", "error", err)
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			WriteError(w, dErrors.New(dErrors.CodeBadRequest, "request body too large"))
			return nil, false
		}
		WriteError(w, dErrors.New(dErrors.CodeBadRequest, "invalid request body"))
		return nil, false
	}
	if err := validation.Validate(&req); err != nil {
		logger.WarnContext(ctx, "invalid request", "error", err)
		WriteError(w, err)
		return nil, false
	}
	return &req, true
}
