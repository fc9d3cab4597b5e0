package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"admissions/internal/auth/models"
	"admissions/pkg/platform/httputil"
	"admissions/pkg/requestcontext"
)

// Service defines the interface for authentication operations.
type Service interface {
	Login(ctx context.Context, req *models.LoginRequest) (*models.LoginResponse, error)
}

// Handler handles authentication endpoints.
type Handler struct {
	auth   Service
	logger *slog.Logger
}

func New(auth Service, logger *slog.Logger) *Handler {
	return &Handler{auth: auth, logger: logger}
}

// Register mounts the auth routes. loginMW wraps the login route (the auth
// rate-limit profile).
func (h *Handler) Register(r chi.Router, loginMW func(http.Handler) http.Handler) {
	r.With(loginMW).Post("/auth/login", h.HandleLogin)
}

// HandleLogin implements POST /auth/login.
//
// Input: { "email": "admin@uni.example", "password": "..." }
// Output: { "access_token": "...", "token_type": "Bearer", "expires_at": "...", "expires_in": 900 }
func (h *Handler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req, ok := httputil.DecodeJSON[models.LoginRequest](ctx, w, r, h.logger)
	if !ok {
		return
	}

	res, err := h.auth.Login(ctx, req)
	if err != nil {
		h.logger.WarnContext(ctx, "login failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Cache-Control", "no-store")
	httputil.WriteJSON(w, http.StatusOK, res)
}
