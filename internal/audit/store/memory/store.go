// Package memory is the default single-process audit store.
package memory

import (
	"context"
	"maps"
	"slices"
	"sync"

	"admissions/internal/audit"
)

// Store keeps entries in insertion order behind a RWMutex.
type Store struct {
	mu      sync.RWMutex
	entries []audit.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Add(_ context.Context, e audit.Entry) error {
	e.Details = maps.Clone(e.Details)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func (s *Store) Query(_ context.Context, filter audit.Filter) ([]audit.Entry, error) {
	s.mu.RLock()
	var out []audit.Entry
	for _, e := range s.entries {
		if filter.Matches(e) {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()

	// Stable sort keeps later inserts first among equal timestamps.
	slices.Reverse(out)
	slices.SortStableFunc(out, func(a, b audit.Entry) int {
		switch {
		case a.Timestamp > b.Timestamp:
			return -1
		case a.Timestamp < b.Timestamp:
			return 1
		}
		return 0
	})
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (s *Store) AnonymizeUser(_ context.Context, userID, replacementID, replacementEmail string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for i := range s.entries {
		if s.entries[i].UserID != userID {
			continue
		}
		s.entries[i].UserID = replacementID
		s.entries[i].UserEmail = replacementEmail
		n++
	}
	return n, nil
}

// Len reports the number of stored entries.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
