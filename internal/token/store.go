package token

import (
	"context"
	"sync"
	"time"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// Store persists remote action tokens. Consume must be atomic: under
// concurrent redemption of the same token exactly one caller wins.
type Store interface {
	// Insert persists a freshly issued token.
	Insert(ctx context.Context, tok domain.RemoteActionToken) error

	// Get returns the token by id, or nil when absent.
	Get(ctx context.Context, id string) (*domain.RemoteActionToken, error)

	// Consume marks the token used if and only if it is currently unused.
	// Returns true when this call performed the transition.
	Consume(ctx context.Context, id string, at time.Time) (bool, error)

	// InvalidateForEntity marks all unused tokens for an entity as used and
	// returns how many were invalidated.
	InvalidateForEntity(ctx context.Context, tenantID string, entityType domain.Module, entityID string, at time.Time) (int64, error)

	// DeleteExpired removes tokens past expiry, plus used tokens older than
	// the retention window. Returns the number of rows removed.
	DeleteExpired(ctx context.Context, now time.Time, usedRetention time.Duration) (int64, error)
}

// MemoryStore is a process-local Store for tests and single-instance
// development runs. The conditional transition in Consume is serialized by a
// mutex, mirroring the row-level atomicity of the Postgres store.
type MemoryStore struct {
	mu     sync.Mutex
	tokens map[string]*domain.RemoteActionToken
}

// NewMemoryStore creates an empty in-memory token store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tokens: make(map[string]*domain.RemoteActionToken)}
}

// Insert stores a copy of the token.
func (s *MemoryStore) Insert(_ context.Context, tok domain.RemoteActionToken) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := tok
	s.tokens[tok.ID] = &cp
	return nil
}

// Get returns a copy of the token, or nil when absent.
func (s *MemoryStore) Get(_ context.Context, id string) (*domain.RemoteActionToken, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	if !ok {
		return nil, nil
	}
	cp := *tok
	return &cp, nil
}

// Consume flips used exactly once per token.
func (s *MemoryStore) Consume(_ context.Context, id string, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	tok, ok := s.tokens[id]
	if !ok || tok.Used {
		return false, nil
	}
	at = at.UTC()
	tok.Used = true
	tok.UsedAt = &at
	return true, nil
}

// InvalidateForEntity marks all unused tokens of the entity as used.
func (s *MemoryStore) InvalidateForEntity(_ context.Context, tenantID string, entityType domain.Module, entityID string, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	at = at.UTC()
	var n int64
	for _, tok := range s.tokens {
		if tok.Used || tok.TenantID != tenantID || tok.EntityType != entityType || tok.EntityID != entityID {
			continue
		}
		tok.Used = true
		usedAt := at
		tok.UsedAt = &usedAt
		n++
	}
	return n, nil
}

// DeleteExpired drops expired tokens and stale used tokens.
func (s *MemoryStore) DeleteExpired(_ context.Context, now time.Time, usedRetention time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := now.Add(-usedRetention)
	var n int64
	for id, tok := range s.tokens {
		if tok.ExpiresAt.Before(now) || (tok.Used && tok.UsedAt != nil && tok.UsedAt.Before(cutoff)) {
			delete(s.tokens, id)
			n++
		}
	}
	return n, nil
}

var _ Store = (*MemoryStore)(nil)
