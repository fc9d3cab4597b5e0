package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"admissions/internal/audit"
	"admissions/internal/ratelimit/models"
	"admissions/pkg/platform/httputil"
	"admissions/pkg/platform/middleware/metadata"
	"admissions/pkg/platform/privacy"
	"admissions/pkg/requestcontext"
)

type RateLimiter interface {
	Check(ctx context.Context, profile models.Profile, identifier string) (models.Result, error)
}

// Auditor records rejected requests as security events.
type Auditor interface {
	LogSecurityEvent(ctx context.Context, action audit.Action, ipAddress string, details map[string]any)
}

// ExceededResponse is the 429 body.
type ExceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after"`
}

type Middleware struct {
	limiter  RateLimiter
	auditor  Auditor
	logger   *slog.Logger
	disabled bool
}

type Option func(*Middleware)

// WithAuditor records RATE_LIMIT_EXCEEDED for every rejection.
func WithAuditor(a Auditor) Option {
	return func(m *Middleware) {
		m.auditor = a
	}
}

// WithDisabled turns every RateLimit middleware into a pass-through.
func WithDisabled(disabled bool) Option {
	return func(m *Middleware) {
		m.disabled = disabled
	}
}

func New(limiter RateLimiter, logger *slog.Logger, opts ...Option) *Middleware {
	m := &Middleware{
		limiter: limiter,
		logger:  logger,
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.disabled {
		m.logger.Warn("rate limiting disabled")
	}
	return m
}

// RateLimit enforces profile against the client identifier resolved by the
// metadata middleware. Store errors fail open.
func (m *Middleware) RateLimit(profile models.Profile) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if m.disabled {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			clientID := requestcontext.ClientIP(ctx)
			if clientID == "" {
				clientID = metadata.ClientIdentifier(r.Header)
			}

			result, err := m.limiter.Check(ctx, profile, clientID)
			if err != nil {
				m.logger.ErrorContext(ctx, "failed to check rate limit",
					"error", err,
					"profile", profile,
					"ip_prefix", privacy.AnonymizeIP(clientID),
				)
				next.ServeHTTP(w, r)
				return
			}

			addRateLimitHeaders(w, result)

			if !result.Allowed {
				m.logger.WarnContext(ctx, "rate limit exceeded",
					"profile", profile,
					"ip_prefix", privacy.AnonymizeIP(clientID),
					"retry_after", result.RetryAfter,
				)
				if m.auditor != nil {
					m.auditor.LogSecurityEvent(ctx, audit.ActionRateLimitExceeded, clientID, map[string]any{
						"profile": profile.String(),
						"path":    r.URL.Path,
						"method":  r.Method,
						"limit":   result.Limit,
					})
				}
				writeRateLimitExceeded(w, result)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func addRateLimitHeaders(w http.ResponseWriter, result models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", result.ResetAt.UTC().Format(time.RFC3339))
}

func writeRateLimitExceeded(w http.ResponseWriter, result models.Result) {
	w.Header().Set("Retry-After", strconv.Itoa(result.RetryAfter))
	httputil.WriteJSON(w, http.StatusTooManyRequests, &ExceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: result.RetryAfter,
	})
}
