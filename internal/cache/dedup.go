// Package cache provides the request-deduplication store used to coalesce
// near-simultaneous identical calls. It is a UX/cost optimization, never a
// correctness mechanism: single-use token semantics live in the database.
package cache

import (
	"context"
	"sync"
	"time"
)

// Store claims short-lived idempotency keys.
type Store interface {
	// Acquire claims key for ttl. Returns true when this caller made the
	// claim, false when the key is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// MemoryStore is a process-local TTL map. Best effort only in a
// multi-instance deployment; use the Redis store when instances must share.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]time.Time
}

// NewMemoryStore creates an empty in-process dedup store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]time.Time)}
}

// Acquire claims the key unless a live claim exists.
func (s *MemoryStore) Acquire(_ context.Context, key string, ttl time.Duration) (bool, error) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.entries) > 4096 {
		s.purgeLocked(now)
	}
	if exp, ok := s.entries[key]; ok && exp.After(now) {
		return false, nil
	}
	s.entries[key] = now.Add(ttl)
	return true, nil
}

func (s *MemoryStore) purgeLocked(now time.Time) {
	for k, exp := range s.entries {
		if !exp.After(now) {
			delete(s.entries, k)
		}
	}
}

var _ Store = (*MemoryStore)(nil)
