// Package window holds fixed-window counter stores.
package window

import (
	"context"
	"sync"
	"time"

	"admissions/internal/ratelimit/models"
)

// InMemoryStore keeps one fixed-window record per key. It is correct only
// for a single process; use RedisStore to share windows across instances.
type InMemoryStore struct {
	mu      sync.Mutex
	records map[string]models.Record
}

// NewInMemoryStore creates an empty store. Each limiter registry owns its
// own instance so tests and deployments never share hidden state.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{records: make(map[string]models.Record)}
}

// Take counts one request against key. An absent or expired record is
// replaced by a fresh window with count 1. A live record below the limit is
// incremented. A full record rejects without being changed.
func (s *InMemoryStore) Take(_ context.Context, key string, limit models.Limit, now time.Time) (models.Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[key]
	if !ok || rec.Expired(now) {
		rec = models.Record{Count: 1, ResetAt: now.Add(limit.Window)}
		s.records[key] = rec
		return models.Allow(limit, rec.Count, rec.ResetAt), nil
	}

	if rec.Count < limit.MaxRequests {
		rec.Count++
		s.records[key] = rec
		return models.Allow(limit, rec.Count, rec.ResetAt), nil
	}

	return models.Reject(limit, rec.ResetAt, now), nil
}

// Reset clears the window for a key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Sweep deletes every record whose window ended before now and reports how
// many were removed and how many remain.
func (s *InMemoryStore) Sweep(_ context.Context, now time.Time) (removed, remaining int, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, rec := range s.records {
		if rec.Expired(now) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, len(s.records), nil
}

// Len returns the number of tracked keys.
func (s *InMemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.records)
}
