package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// PostgresStore persists tokens in PostgreSQL. Single-use semantics hold
// across replicas because Consume is one conditional UPDATE whose affected
// row count arbitrates concurrent redemptions.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a token store backed by PostgreSQL.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

const (
	insertTokenSQL = `
INSERT INTO remote_action_tokens
	(id, tenant_id, entity_type, entity_id, action, approver_id, expires_at, used, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, FALSE, $8);`

	getTokenSQL = `
SELECT id, tenant_id, entity_type, entity_id, action, approver_id, expires_at, used, used_at, created_at
FROM remote_action_tokens
WHERE id = $1;`

	consumeTokenSQL = `
UPDATE remote_action_tokens
SET used = TRUE, used_at = $2
WHERE id = $1 AND used = FALSE;`

	invalidateEntityTokensSQL = `
UPDATE remote_action_tokens
SET used = TRUE, used_at = $4
WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3 AND used = FALSE;`

	deleteExpiredTokensSQL = `
DELETE FROM remote_action_tokens
WHERE expires_at < $1 OR (used AND used_at < $2);`
)

// Insert persists a freshly issued token.
func (s *PostgresStore) Insert(ctx context.Context, tok domain.RemoteActionToken) error {
	_, err := s.pool.Exec(ctx, insertTokenSQL,
		tok.ID, tok.TenantID, string(tok.EntityType), tok.EntityID,
		string(tok.Action), tok.ApproverID, tok.ExpiresAt.UTC(), tok.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert remote action token %s: %w", tok.ID, err)
	}
	return nil
}

// Get returns the token by id, or nil when absent.
func (s *PostgresStore) Get(ctx context.Context, id string) (*domain.RemoteActionToken, error) {
	var tok domain.RemoteActionToken
	err := s.pool.QueryRow(ctx, getTokenSQL, id).Scan(
		&tok.ID, &tok.TenantID, &tok.EntityType, &tok.EntityID,
		&tok.Action, &tok.ApproverID, &tok.ExpiresAt, &tok.Used, &tok.UsedAt, &tok.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get remote action token %s: %w", id, err)
	}
	return &tok, nil
}

// Consume marks the token used exactly once; the loser of a race sees false.
func (s *PostgresStore) Consume(ctx context.Context, id string, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx, consumeTokenSQL, id, at.UTC())
	if err != nil {
		return false, fmt.Errorf("consume remote action token %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

// InvalidateForEntity marks all unused tokens for the entity as used.
func (s *PostgresStore) InvalidateForEntity(ctx context.Context, tenantID string, entityType domain.Module, entityID string, at time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, invalidateEntityTokensSQL, tenantID, string(entityType), entityID, at.UTC())
	if err != nil {
		return 0, fmt.Errorf("invalidate tokens for %s %s: %w", entityType, entityID, err)
	}
	return tag.RowsAffected(), nil
}

// DeleteExpired removes rows past expiry or used longer than the retention window.
func (s *PostgresStore) DeleteExpired(ctx context.Context, now time.Time, usedRetention time.Duration) (int64, error) {
	tag, err := s.pool.Exec(ctx, deleteExpiredTokensSQL, now.UTC(), now.UTC().Add(-usedRetention))
	if err != nil {
		return 0, fmt.Errorf("delete expired remote action tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}

var _ Store = (*PostgresStore)(nil)
