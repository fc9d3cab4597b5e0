package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"admissions/internal/gdpr"
	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/platform/httputil"
	"admissions/pkg/requestcontext"
)

type Service interface {
	Export(ctx context.Context, userID string) (*gdpr.Export, error)
	Delete(ctx context.Context, userID string) (gdpr.Report, error)
}

type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the self-service routes. exportMW and deleteMW wrap the
// individual routes (rate limits); r must already authenticate the caller.
func (h *Handler) Register(r chi.Router, exportMW, deleteMW func(http.Handler) http.Handler) {
	r.With(exportMW).Get("/me/data-export", h.HandleExport)
	r.With(deleteMW).Delete("/me/data", h.HandleDelete)
}

// DeleteResponse is the body of DELETE /me/data.
type DeleteResponse struct {
	Status string      `json:"status"`
	Report gdpr.Report `json:"report"`
}

// HandleExport implements GET /me/data-export.
func (h *Handler) HandleExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	export, err := h.service.Export(ctx, userID)
	if err != nil {
		h.logger.ErrorContext(ctx, "data export failed",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="data-export.json"`)
	httputil.WriteJSON(w, http.StatusOK, export)
}

// HandleDelete implements DELETE /me/data. A partial failure still returns
// the report, with status 500.
func (h *Handler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID, ok := h.requireUser(w, r)
	if !ok {
		return
	}

	report, err := h.service.Delete(ctx, userID)
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidInput) {
			httputil.WriteError(w, err)
			return
		}
		h.logger.ErrorContext(ctx, "data deletion incomplete",
			"error", err,
			"request_id", requestcontext.RequestID(ctx),
		)
		httputil.WriteJSON(w, http.StatusInternalServerError, DeleteResponse{Status: "partial", Report: report})
		return
	}

	httputil.WriteJSON(w, http.StatusOK, DeleteResponse{Status: "deleted", Report: report})
}

func (h *Handler) requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	actor := requestcontext.GetActor(r.Context())
	if actor.UserID == "" {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "authentication required"))
		return "", false
	}
	return actor.UserID, true
}
