package httptransport

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	audithandler "admissions/internal/audit/handler"
	authhandler "admissions/internal/auth/handler"
	gdprhandler "admissions/internal/gdpr/handler"
	"admissions/internal/platform/health"
	ratelimithandler "admissions/internal/ratelimit/handler"
	ratelimitmw "admissions/internal/ratelimit/middleware"
	"admissions/internal/ratelimit/models"
	"admissions/pkg/platform/middleware/admin"
	"admissions/pkg/platform/middleware/auth"
	"admissions/pkg/platform/middleware/metadata"
	"admissions/pkg/platform/middleware/request"
)

const (
	requestTimeout = 30 * time.Second
	maxBodyBytes   = 1 << 20
)

// Deps are the handlers and middleware the router mounts. Handlers left nil
// are not mounted.
type Deps struct {
	Logger         *slog.Logger
	Gatherer       prometheus.Gatherer
	RequestMetrics *request.Metrics

	Validator  auth.JWTValidator
	AdminToken string
	RateLimit  *ratelimitmw.Middleware

	Health         *health.Handler
	Auth           *authhandler.Handler
	Audit          *audithandler.Handler
	RateLimitAdmin *ratelimithandler.Handler
	GDPR           *gdprhandler.Handler
}

// NewRouter wires all public endpoints with middleware.
func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(request.Recovery(d.Logger))
	r.Use(request.RequestID)
	r.Use(request.RequestTime)
	r.Use(metadata.Handler)
	r.Use(request.Logger(d.Logger))
	r.Use(request.LatencyMiddleware(d.RequestMetrics))

	if d.Health != nil {
		d.Health.Register(r)
	}
	if d.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(request.Timeout(requestTimeout))
		r.Use(request.BodyLimit(maxBodyBytes))
		r.Use(auth.OptionalAuth(d.Validator, d.Logger))
		r.Use(d.RateLimit.RateLimit(models.ProfileGeneral))

		if d.Auth != nil {
			d.Auth.Register(r, d.RateLimit.RateLimit(models.ProfileAuth))
		}

		if d.GDPR != nil {
			r.Group(func(r chi.Router) {
				r.Use(auth.RequireAuth(d.Validator, d.Logger))
				d.GDPR.Register(r, d.RateLimit.RateLimit(models.ProfileAPI), d.RateLimit.RateLimit(models.ProfileEmail))
			})
		}

		r.Group(func(r chi.Router) {
			r.Use(admin.RequireAdmin(d.AdminToken, d.Logger))
			r.Use(d.RateLimit.RateLimit(models.ProfileAPI))
			if d.Audit != nil {
				d.Audit.RegisterAdmin(r)
			}
			if d.RateLimitAdmin != nil {
				d.RateLimitAdmin.RegisterAdmin(r)
			}
		})
	})

	return r
}
