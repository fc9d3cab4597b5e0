package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"admissions/internal/audit"
	dErrors "admissions/pkg/domain-errors"
	"admissions/pkg/platform/httputil"
	"admissions/pkg/requestcontext"
	"admissions/pkg/validation"
)

// Querier is the read side of the audit logger.
type Querier interface {
	Query(ctx context.Context, filter audit.Filter) ([]audit.Entry, error)
}

type Handler struct {
	audit  Querier
	logger *slog.Logger
}

func New(q Querier, logger *slog.Logger) *Handler {
	return &Handler{audit: q, logger: logger}
}

// RegisterAdmin mounts the admin audit routes. Callers wrap r with the admin
// middleware.
func (h *Handler) RegisterAdmin(r chi.Router) {
	r.Get("/admin/audit-logs", h.HandleQuery)
}

// QueryRequest holds the parsed query string of GET /admin/audit-logs.
type QueryRequest struct {
	UserID string `validate:"omitempty,max=128"`
	Action string `validate:"omitempty,max=64"`
	From   time.Time
	To     time.Time
	Limit  int `validate:"min=0,max=1000"`
}

// QueryResponse is the body of GET /admin/audit-logs.
type QueryResponse struct {
	Entries []audit.Entry `json:"entries"`
	Count   int           `json:"count"`
}

// HandleQuery implements GET /admin/audit-logs?userId=&action=&from=&to=&limit=.
// from and to accept RFC3339 or epoch milliseconds.
func (h *Handler) HandleQuery(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	req, err := parseQuery(r)
	if err != nil {
		h.logger.WarnContext(ctx, "invalid audit query", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}

	filter := audit.Filter{UserID: req.UserID, From: req.From, To: req.To, Limit: req.Limit}
	if req.Action != "" {
		action, err := audit.ParseAction(req.Action)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		filter.Action = action
	}

	entries, err := h.audit.Query(ctx, filter)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to query audit logs", "error", err, "request_id", requestID)
		httputil.WriteError(w, err)
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}

	httputil.WriteJSON(w, http.StatusOK, QueryResponse{Entries: entries, Count: len(entries)})
}

func parseQuery(r *http.Request) (*QueryRequest, error) {
	q := r.URL.Query()
	req := &QueryRequest{
		UserID: q.Get("userId"),
		Action: q.Get("action"),
	}

	var err error
	if req.From, err = parseTime(q.Get("from")); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "from must be RFC3339 or epoch milliseconds")
	}
	if req.To, err = parseTime(q.Get("to")); err != nil {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "to must be RFC3339 or epoch milliseconds")
	}
	if v := q.Get("limit"); v != "" {
		if req.Limit, err = strconv.Atoi(v); err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "limit must be an integer")
		}
	}

	if err := validation.Validate(req); err != nil {
		return nil, err
	}
	return req, nil
}

func parseTime(v string) (time.Time, error) {
	if v == "" {
		return time.Time{}, nil
	}
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339, v)
}
