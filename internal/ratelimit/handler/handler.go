package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"admissions/internal/audit"
	"admissions/internal/ratelimit/models"
	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/platform/httputil"
	"admissions/pkg/requestcontext"
)

const maxBodyBytes = 64 * 1024

type Resetter interface {
	Reset(ctx context.Context, identifier string, profiles ...models.Profile) error
}

// Auditor records admin operations.
type Auditor interface {
	Log(ctx context.Context, entry audit.Entry)
}

type Handler struct {
	limiter Resetter
	auditor Auditor
	logger  *slog.Logger
}

func New(limiter Resetter, auditor Auditor, logger *slog.Logger) *Handler {
	return &Handler{
		limiter: limiter,
		auditor: auditor,
		logger:  logger,
	}
}

// RegisterAdmin mounts the admin routes. Callers wrap r with the admin
// middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Delete("/admin/ratelimit", h.HandleResetRateLimit)
}

// HandleResetRateLimit implements DELETE /admin/ratelimit.
//
// Input: { "identifier": "203.0.113.7", "profile": "auth" }
// Output: { "identifier": "203.0.113.7", "profiles": ["auth"] }
func (h *Handler) HandleResetRateLimit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	var req models.ResetRateLimitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.WarnContext(ctx, "failed to decode reset rate limit request",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.New(dErrors.CodeBadRequest, "Invalid JSON in request body"))
		return
	}
	req.Normalize()
	if err := req.Validate(); err != nil {
		httputil.WriteError(w, err)
		return
	}

	profiles := req.Profiles()
	if err := h.limiter.Reset(ctx, req.Identifier, profiles...); err != nil {
		h.logger.ErrorContext(ctx, "failed to reset rate limit",
			"error", err,
			"request_id", requestID,
		)
		httputil.WriteError(w, dErrors.Wrap(err, dErrors.CodeInternal, "failed to reset rate limit"))
		return
	}

	h.auditor.Log(ctx, audit.Entry{
		Action:       audit.ActionAdminAction,
		ResourceType: "rate_limit",
		ResourceID:   req.Identifier,
		Details: map[string]any{
			"operation": "reset",
			"profiles":  profiles,
		},
	})

	httputil.WriteJSON(w, http.StatusOK, &models.ResetRateLimitResponse{
		Identifier: req.Identifier,
		Profiles:   profiles,
	})
}
