// Package app assembles the admissions server from configuration. It is
// shared by cmd/server and the end-to-end tests.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"admissions/internal/audit"
	audithandler "admissions/internal/audit/handler"
	auditmetrics "admissions/internal/audit/metrics"
	"admissions/internal/audit/store/memory"
	"admissions/internal/audit/store/sqlstore"
	authhandler "admissions/internal/auth/handler"
	authmodels "admissions/internal/auth/models"
	authservice "admissions/internal/auth/service"
	"admissions/internal/gdpr"
	gdprhandler "admissions/internal/gdpr/handler"
	jwttoken "admissions/internal/jwt_token"
	"admissions/internal/platform/config"
	"admissions/internal/platform/database"
	"admissions/internal/platform/health"
	"admissions/internal/platform/kafka/producer"
	platformredis "admissions/internal/platform/redis"
	ratelimitconfig "admissions/internal/ratelimit/config"
	ratelimithandler "admissions/internal/ratelimit/handler"
	"admissions/internal/ratelimit/limiter"
	ratelimitmetrics "admissions/internal/ratelimit/metrics"
	ratelimitmw "admissions/internal/ratelimit/middleware"
	"admissions/internal/ratelimit/store/tokenbucket"
	"admissions/internal/ratelimit/store/window"
	"admissions/internal/ratelimit/workers/cleanup"
	httptransport "admissions/internal/transport/http"
	"admissions/migrations"
	"admissions/pkg/platform/middleware/admin"
	"admissions/pkg/platform/middleware/request"
)

const (
	tokenIssuer       = "admissions"
	poolStatsInterval = 15 * time.Second
	bucketIdleTTL     = time.Hour
)

// App is a fully wired server. Run its workers alongside the HTTP server
// and call Close after both have stopped.
type App struct {
	Handler  http.Handler
	Audit    *audit.Logger
	Registry *prometheus.Registry

	workers []func(ctx context.Context) error
	closers []func(ctx context.Context) error
	logger  *slog.Logger
}

// Workers returns the background loops to run until shutdown.
func (a *App) Workers() []func(ctx context.Context) error {
	return a.workers
}

// Close drains the audit queue and releases connections in reverse order of
// acquisition.
func (a *App) Close(ctx context.Context) error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) onClose(fn func(ctx context.Context) error) {
	a.closers = append(a.closers, fn)
}

// New builds every component selected by cfg. On error, anything already
// opened is closed.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger) (_ *App, err error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	a := &App{Registry: reg, logger: logger}
	defer func() {
		if err != nil {
			_ = a.Close(context.Background())
		}
	}()

	healthHandler := health.New(cfg.Environment)

	rlMetrics := ratelimitmetrics.New(reg)
	store, sweeper, err := a.rateLimitStore(ctx, cfg, reg, rlMetrics, healthHandler)
	if err != nil {
		return nil, err
	}
	registry, err := limiter.NewRegistry(ratelimitconfig.FromPlatform(cfg.RateLimit), store, limiter.WithMetrics(rlMetrics))
	if err != nil {
		return nil, fmt.Errorf("build rate limiters: %w", err)
	}
	if sweeper != nil {
		svc := cleanup.New(sweeper,
			cleanup.WithLogger(logger),
			cleanup.WithInterval(cfg.RateLimit.SweepInterval),
			cleanup.WithMetrics(rlMetrics),
		)
		a.workers = append(a.workers, svc.Start)
	}

	auditStore, err := a.auditStore(ctx, cfg, healthHandler)
	if err != nil {
		return nil, err
	}
	auditOpts := []audit.Option{
		audit.WithLogger(logger),
		audit.WithMetrics(auditmetrics.New(reg)),
	}
	if cfg.Kafka.Brokers != "" {
		p, err := producer.New(cfg.Kafka, logger)
		if err != nil {
			return nil, fmt.Errorf("create kafka producer: %w", err)
		}
		a.onClose(p.Close)
		healthHandler.RegisterOptionalCheck("kafka", p.Healthy)
		auditOpts = append(auditOpts, audit.WithAlertSink(audit.NewKafkaAlertSink(p, cfg.Audit.AlertTopic)))
	}
	auditLogger := audit.New(auditStore, auditOpts...)
	a.Audit = auditLogger
	a.onClose(auditLogger.Close)

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, tokenIssuer, cfg.TokenTTL)
	validator := jwttoken.NewValidator(jwtService)

	var accounts []authmodels.Account
	if cfg.AdminEmail != "" && cfg.AdminPasswordHash != "" {
		accounts = append(accounts, authmodels.Account{
			UserID:       "admin",
			Email:        cfg.AdminEmail,
			Role:         admin.RoleAdmin,
			PasswordHash: cfg.AdminPasswordHash,
		})
	}
	authSvc := authservice.New(accounts, jwtService, auditLogger, logger)

	a.Handler = httptransport.NewRouter(httptransport.Deps{
		Logger:         logger,
		Gatherer:       reg,
		RequestMetrics: request.NewMetrics(reg),
		Validator:      validator,
		AdminToken:     cfg.AdminToken,
		RateLimit: ratelimitmw.New(registry, logger,
			ratelimitmw.WithAuditor(auditLogger),
			ratelimitmw.WithDisabled(cfg.RateLimit.Disabled),
		),
		Health:         healthHandler,
		Auth:           authhandler.New(authSvc, logger),
		Audit:          audithandler.New(auditLogger, logger),
		RateLimitAdmin: ratelimithandler.New(registry, auditLogger, logger),
		GDPR:           gdprhandler.New(gdpr.New(auditLogger, gdpr.WithLogger(logger)), logger),
	})

	logger.InfoContext(ctx, "admissions server assembled",
		"ratelimit_backend", cfg.RateLimit.Backend,
		"ratelimit_algorithm", cfg.RateLimit.Algorithm,
		"audit_backend", cfg.Audit.Backend,
		"kafka_alerts", cfg.Kafka.Brokers != "",
	)
	return a, nil
}

// rateLimitStore returns the limiter store and the sweeper for its expired
// entries.
func (a *App) rateLimitStore(ctx context.Context, cfg config.Server, reg prometheus.Registerer, m *ratelimitmetrics.Metrics, h *health.Handler) (limiter.Store, cleanup.Sweeper, error) {
	if cfg.RateLimit.Algorithm == config.AlgorithmTokenBucket {
		if cfg.RateLimit.Backend != config.BackendMemory {
			return nil, nil, fmt.Errorf("token_bucket algorithm is not supported on the %s backend", cfg.RateLimit.Backend)
		}
		s := tokenbucket.New(bucketIdleTTL)
		return s, s, nil
	}

	if cfg.RateLimit.Backend != config.BackendRedis {
		s := window.NewInMemoryStore()
		return s, s, nil
	}

	client, err := platformredis.New(ctx, cfg.Redis, reg)
	if err != nil {
		return nil, nil, fmt.Errorf("connect redis: %w", err)
	}
	a.onClose(func(context.Context) error { return client.Close() })
	a.workers = append(a.workers, func(ctx context.Context) error {
		client.RunPoolStats(ctx, poolStatsInterval)
		return nil
	})
	h.RegisterOptionalCheck("redis", client.Health)

	s := window.NewResilientStore(window.NewRedisStore(client.Client), window.NewInMemoryStore(), a.logger,
		window.WithStateListener(m.SetFallbackActive),
	)
	return s, s, nil
}

func (a *App) auditStore(ctx context.Context, cfg config.Server, h *health.Handler) (audit.Store, error) {
	var (
		pool *database.Pool
		err  error
	)
	switch cfg.Audit.Backend {
	case config.BackendPostgres:
		pool, err = database.OpenPostgres(ctx, cfg.Database)
	case config.BackendSQLite:
		pool, err = database.OpenSQLite(ctx, cfg.Audit.SQLitePath)
	default:
		return memory.New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	a.onClose(func(context.Context) error { return pool.Close() })

	if err := migrations.Up(ctx, pool.DB(), pool.Driver()); err != nil {
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}
	h.RegisterCheck("database", pool.Health)
	return sqlstore.FromPool(pool), nil
}
