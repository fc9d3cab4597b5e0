package window

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"admissions/internal/ratelimit/models"
)

// Store is the contract shared by the primary and fallback stores.
type Store interface {
	Take(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Result, error)
	Reset(ctx context.Context, key string) error
}

// Breaker defaults: open after 5 consecutive failures, probe again after 30s.
const (
	defaultMaxFailures uint32 = 5
	defaultOpenTimeout        = 30 * time.Second
	defaultProbes      uint32 = 3
)

// ResilientStore routes checks to a shared primary store through a circuit
// breaker. While the circuit is open, checks are served by a local fallback
// so limiting degrades to per-instance instead of disappearing.
type ResilientStore struct {
	primary  Store
	fallback *InMemoryStore
	breaker  *gobreaker.CircuitBreaker[models.Result]
	logger   *slog.Logger
	onState  func(open bool)
}

type ResilientOption func(*resilientSettings)

type resilientSettings struct {
	maxFailures uint32
	openTimeout time.Duration
	onState     func(open bool)
}

// WithBreakerThreshold sets consecutive failures before the circuit opens.
func WithBreakerThreshold(n uint32) ResilientOption {
	return func(s *resilientSettings) {
		if n > 0 {
			s.maxFailures = n
		}
	}
}

// WithBreakerTimeout sets how long the circuit stays open before probing.
func WithBreakerTimeout(d time.Duration) ResilientOption {
	return func(s *resilientSettings) {
		if d > 0 {
			s.openTimeout = d
		}
	}
}

// WithStateListener is told whenever the fallback becomes active or inactive.
func WithStateListener(fn func(open bool)) ResilientOption {
	return func(s *resilientSettings) {
		s.onState = fn
	}
}

func NewResilientStore(primary Store, fallback *InMemoryStore, logger *slog.Logger, opts ...ResilientOption) *ResilientStore {
	settings := resilientSettings{
		maxFailures: defaultMaxFailures,
		openTimeout: defaultOpenTimeout,
	}
	for _, opt := range opts {
		opt(&settings)
	}

	rs := &ResilientStore{
		primary:  primary,
		fallback: fallback,
		logger:   logger,
		onState:  settings.onState,
	}
	rs.breaker = gobreaker.NewCircuitBreaker[models.Result](gobreaker.Settings{
		Name:        "ratelimit-store",
		MaxRequests: defaultProbes,
		Timeout:     settings.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= settings.maxFailures
		},
		// A caller giving up says nothing about the store's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("rate limit store circuit state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
			if rs.onState != nil {
				rs.onState(to == gobreaker.StateOpen)
			}
		},
	})
	return rs
}

// Take consults the primary store. Primary errors and an open circuit both
// route the check to the fallback, so Take only fails if the fallback does.
func (s *ResilientStore) Take(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Result, error) {
	res, err := s.breaker.Execute(func() (models.Result, error) {
		return s.primary.Take(ctx, key, limit, now)
	})
	if err == nil {
		return res, nil
	}
	s.logger.DebugContext(ctx, "rate limit primary store unavailable, using fallback", "error", err)
	return s.fallback.Take(ctx, key, limit, now)
}

// Reset clears both stores so a reset survives a circuit transition.
func (s *ResilientStore) Reset(ctx context.Context, key string) error {
	var errs []error
	if err := s.fallback.Reset(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("reset fallback: %w", err))
	}
	if err := s.primary.Reset(ctx, key); err != nil {
		errs = append(errs, fmt.Errorf("reset primary: %w", err))
	}
	return errors.Join(errs...)
}

// Sweep bounds the fallback's memory.
func (s *ResilientStore) Sweep(ctx context.Context, now time.Time) (removed, remaining int, err error) {
	return s.fallback.Sweep(ctx, now)
}

// Open reports whether checks are currently served by the fallback.
func (s *ResilientStore) Open() bool {
	return s.breaker.State() == gobreaker.StateOpen
}
