package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
)

// DelegationRepo persists approver delegations.
type DelegationRepo struct {
	pool *pgxpool.Pool
}

// NewDelegationRepo creates a delegation repository.
func NewDelegationRepo(pool *pgxpool.Pool) *DelegationRepo {
	return &DelegationRepo{pool: pool}
}

const (
	// Two active windows overlap when each starts before the other ends
	// (windows are half-open on the end date).
	countOverlappingDelegationsSQL = `
SELECT COUNT(*)
FROM delegations
WHERE tenant_id = $1 AND delegator_id = $2 AND is_active
  AND start_date < $4 AND end_date > $3;`

	insertDelegationSQL = `
INSERT INTO delegations (id, tenant_id, delegator_id, delegatee_id, start_date, end_date, is_active, reason, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9);`

	getDelegationSQL = `
SELECT id, tenant_id, delegator_id, delegatee_id, start_date, end_date, is_active, reason, created_at
FROM delegations
WHERE tenant_id = $1 AND id = $2;`

	listDelegationsSQL = `
SELECT id, tenant_id, delegator_id, delegatee_id, start_date, end_date, is_active, reason, created_at
FROM delegations
WHERE tenant_id = $1 AND ($2 = '' OR delegator_id = $2)
ORDER BY start_date DESC, created_at DESC;`

	listActiveDelegationsSQL = `
SELECT id, tenant_id, delegator_id, delegatee_id, start_date, end_date, is_active, reason, created_at
FROM delegations
WHERE tenant_id = $1 AND is_active AND start_date <= $2 AND end_date > $2;`

	deactivateDelegationSQL = `
UPDATE delegations SET is_active = FALSE WHERE tenant_id = $1 AND id = $2 AND is_active;`
)

// Create inserts a delegation after rejecting window overlaps for the same
// delegator.
func (r *DelegationRepo) Create(ctx context.Context, d *domain.Delegation) error {
	if !d.EndDate.After(d.StartDate) {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "delegation end date must be after start date")
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create delegation tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var overlapping int
	err = tx.QueryRow(ctx, countOverlappingDelegationsSQL,
		d.TenantID, d.DelegatorID, d.StartDate.UTC(), d.EndDate.UTC(),
	).Scan(&overlapping)
	if err != nil {
		return fmt.Errorf("check delegation overlap for %s: %w", d.DelegatorID, err)
	}
	if overlapping > 0 {
		return apperrors.Conflict(apperrors.CodeDelegationOverlap, "delegator already has an active delegation in this window")
	}

	_, err = tx.Exec(ctx, insertDelegationSQL,
		d.ID, d.TenantID, d.DelegatorID, d.DelegateeID,
		d.StartDate.UTC(), d.EndDate.UTC(), d.IsActive, d.Reason, d.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert delegation %s: %w", d.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create delegation tx: %w", err)
	}
	return nil
}

// Get returns a delegation, or nil when absent.
func (r *DelegationRepo) Get(ctx context.Context, tenantID, id string) (*domain.Delegation, error) {
	d, err := scanDelegation(r.pool.QueryRow(ctx, getDelegationSQL, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get delegation %s: %w", id, err)
	}
	return d, nil
}

// List returns the tenant's delegations, optionally filtered by delegator.
func (r *DelegationRepo) List(ctx context.Context, tenantID, delegatorID string) ([]domain.Delegation, error) {
	return r.queryDelegations(ctx, listDelegationsSQL, tenantID, delegatorID)
}

// ListActiveDelegations satisfies the engine's Store interface.
func (r *DelegationRepo) ListActiveDelegations(ctx context.Context, tenantID string, at time.Time) ([]domain.Delegation, error) {
	return r.queryDelegations(ctx, listActiveDelegationsSQL, tenantID, at.UTC())
}

// Deactivate ends a delegation early. Returns false when the delegation does
// not exist or is already inactive.
func (r *DelegationRepo) Deactivate(ctx context.Context, tenantID, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deactivateDelegationSQL, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("deactivate delegation %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *DelegationRepo) queryDelegations(ctx context.Context, sql string, args ...any) ([]domain.Delegation, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query delegations: %w", err)
	}
	defer rows.Close()

	var out []domain.Delegation
	for rows.Next() {
		d, err := scanDelegation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan delegation: %w", err)
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDelegation(row pgx.Row) (*domain.Delegation, error) {
	var d domain.Delegation
	err := row.Scan(
		&d.ID, &d.TenantID, &d.DelegatorID, &d.DelegateeID,
		&d.StartDate, &d.EndDate, &d.IsActive, &d.Reason, &d.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
