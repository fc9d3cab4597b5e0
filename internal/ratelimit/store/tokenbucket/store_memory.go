// Package tokenbucket is an alternative to the fixed-window stores that
// smooths bursts at window boundaries. It is selected with
// RATELIMIT_ALGORITHM=token_bucket and is single-process only.
package tokenbucket

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"admissions/internal/ratelimit/models"
)

type bucket struct {
	limiter  *rate.Limiter
	limit    models.Limit
	lastSeen time.Time
}

// Store keeps one token bucket per key. A bucket holds MaxRequests tokens and
// refills at MaxRequests per Window, so the long-run rate matches the
// fixed-window profile without the 2x boundary burst.
type Store struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	idleTTL time.Duration
}

// New creates a store. Buckets idle for longer than idleTTL, and full again,
// are evicted by Sweep.
func New(idleTTL time.Duration) *Store {
	return &Store{
		buckets: make(map[string]*bucket),
		idleTTL: idleTTL,
	}
}

func newBucket(limit models.Limit) *bucket {
	every := limit.Window / time.Duration(limit.MaxRequests)
	return &bucket{
		limiter: rate.NewLimiter(rate.Every(every), limit.MaxRequests),
		limit:   limit,
	}
}

func (s *Store) Take(_ context.Context, key string, limit models.Limit, now time.Time) (models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.buckets[key]
	if !ok || b.limit != limit {
		b = newBucket(limit)
		s.buckets[key] = b
	}
	b.lastSeen = now

	r := b.limiter.ReserveN(now, 1)
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return models.Reject(limit, now.Add(delay), now), nil
	}

	tokens := int(b.limiter.TokensAt(now))
	// Time until the bucket is full again.
	missing := limit.MaxRequests - tokens
	resetAt := now.Add(time.Duration(missing) * limit.Window / time.Duration(limit.MaxRequests))
	return models.Allow(limit, limit.MaxRequests-tokens, resetAt), nil
}

func (s *Store) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.buckets, key)
	return nil
}

// Sweep evicts buckets not used within idleTTL.
func (s *Store) Sweep(_ context.Context, now time.Time) (removed, remaining int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, b := range s.buckets {
		if now.Sub(b.lastSeen) > s.idleTTL {
			delete(s.buckets, key)
			removed++
		}
	}
	return removed, len(s.buckets), nil
}
