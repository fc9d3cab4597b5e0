// Package limiter implements the fixed-window request limiter and the
// registry of named profiles.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"admissions/internal/ratelimit/config"
	"admissions/internal/ratelimit/metrics"
	"admissions/internal/ratelimit/models"
	"admissions/pkg/requestcontext"
)

// Store holds window state. Implementations: window.InMemoryStore,
// window.RedisStore, window.ResilientStore, tokenbucket.Store.
type Store interface {
	Take(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Result, error)
	Reset(ctx context.Context, key string) error
}

// Limiter throttles one profile. The zero value is not usable; use New.
type Limiter struct {
	profile models.Profile
	limit   models.Limit
	store   Store
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New builds a limiter for profile backed by store. Several limiters may
// share one store; keys are scoped by profile.
func New(profile models.Profile, limit models.Limit, store Store, opts ...Option) (*Limiter, error) {
	if err := limit.Validate(); err != nil {
		return nil, fmt.Errorf("limiter %s: %w", profile, err)
	}
	if store == nil {
		return nil, fmt.Errorf("limiter %s: store is required", profile)
	}
	l := &Limiter{profile: profile, limit: limit, store: store}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Check counts one request from identifier against the current window. A
// rejection is reported through Result.Allowed; the error is non-nil only
// when the store itself failed.
func (l *Limiter) Check(ctx context.Context, identifier string) (models.Result, error) {
	now := requestcontext.Now(ctx)
	res, err := l.store.Take(ctx, models.Key(l.profile, identifier), l.limit, now)
	if err != nil {
		if l.metrics != nil {
			l.metrics.IncrementStoreErrors(string(l.profile))
		}
		return models.Result{}, err
	}
	if l.metrics != nil {
		l.metrics.ObserveCheck(string(l.profile), res.Allowed)
	}
	return res, nil
}

// Reset clears identifier's window so its next request opens a new one.
func (l *Limiter) Reset(ctx context.Context, identifier string) error {
	return l.store.Reset(ctx, models.Key(l.profile, identifier))
}

func (l *Limiter) Profile() models.Profile { return l.profile }

func (l *Limiter) Limit() models.Limit { return l.limit }

// Registry owns one limiter per profile over a shared store.
type Registry struct {
	limiters map[models.Profile]*Limiter
}

// NewRegistry pre-builds a limiter for every configured profile.
func NewRegistry(cfg *config.Config, store Store, opts ...Option) (*Registry, error) {
	r := &Registry{limiters: make(map[models.Profile]*Limiter, len(cfg.Limits))}
	for profile, limit := range cfg.Limits {
		l, err := New(profile, limit, store, opts...)
		if err != nil {
			return nil, err
		}
		r.limiters[profile] = l
	}
	if _, ok := r.limiters[models.ProfileGeneral]; !ok {
		return nil, errors.New("registry requires a general profile")
	}
	return r, nil
}

// Get returns the limiter for profile. Unknown profiles get the general
// limiter.
func (r *Registry) Get(profile models.Profile) *Limiter {
	if l, ok := r.limiters[profile]; ok {
		return l
	}
	return r.limiters[models.ProfileGeneral]
}

// Check is shorthand for Get(profile).Check.
func (r *Registry) Check(ctx context.Context, profile models.Profile, identifier string) (models.Result, error) {
	return r.Get(profile).Check(ctx, identifier)
}

// Reset clears identifier's window in each listed profile and returns the
// joined errors of the ones that failed.
func (r *Registry) Reset(ctx context.Context, identifier string, profiles ...models.Profile) error {
	var errs []error
	for _, p := range profiles {
		l, ok := r.limiters[p]
		if !ok {
			continue
		}
		if err := l.Reset(ctx, identifier); err != nil {
			errs = append(errs, fmt.Errorf("reset %s: %w", p, err))
		}
	}
	return errors.Join(errs...)
}
