package cleanup

import (
	"context"
	"log/slog"
	"time"

	"admissions/internal/ratelimit/metrics"
)

const DefaultInterval = 5 * time.Minute

// Result contains the results of a sweep run.
type Result struct {
	Removed   int
	Remaining int
	Duration  time.Duration
}

// Sweeper deletes limiter records whose window ended before now.
type Sweeper interface {
	Sweep(ctx context.Context, now time.Time) (removed, remaining int, err error)
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

func WithInterval(interval time.Duration) Option {
	return func(s *Service) {
		if interval > 0 {
			s.interval = interval
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithClock overrides the time passed to Sweep.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// Service periodically sweeps expired rate-limit records.
type Service struct {
	store    Sweeper
	logger   *slog.Logger
	interval time.Duration
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(store Sweeper, opts ...Option) *Service {
	service := &Service{
		store:    store,
		logger:   slog.Default(),
		interval: DefaultInterval,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(service)
	}
	return service
}

// Start sweeps every interval until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			res, err := s.RunOnce(ctx)
			if err != nil {
				s.logger.Error("ratelimit_cleanup_failed",
					"error", err,
					"duration_ms", res.Duration.Milliseconds(),
				)
				if s.metrics != nil {
					s.metrics.IncrementCleanupRuns("error")
					s.metrics.CleanupDurationSeconds.Observe(res.Duration.Seconds())
				}
				continue
			}

			s.logger.Info("ratelimit_cleanup_completed",
				"records_removed", res.Removed,
				"records_remaining", res.Remaining,
				"duration_ms", res.Duration.Milliseconds(),
			)
			if s.metrics != nil {
				s.metrics.IncrementCleanupRuns("success")
				s.metrics.ObserveCleanup(res.Removed, res.Remaining, res.Duration.Seconds())
			}

		case <-ctx.Done():
			s.logger.Info("ratelimit cleanup worker stopping", "reason", ctx.Err())
			return ctx.Err()
		}
	}
}

// RunOnce executes a single sweep. Logging is handled by the caller (Start).
func (s *Service) RunOnce(ctx context.Context) (Result, error) {
	start := time.Now()
	removed, remaining, err := s.store.Sweep(ctx, s.now())
	res := Result{Removed: removed, Remaining: remaining, Duration: time.Since(start)}
	return res, err
}
