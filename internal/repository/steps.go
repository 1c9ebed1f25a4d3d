package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// StepRepo persists approval steps and applies decisions atomically. Decision
// writes run the step transition, sibling skip, request finalization, and
// token invalidation in one pgx transaction; the conditional update's
// affected-row count arbitrates concurrent decisions on the same step.
type StepRepo struct {
	pool *pgxpool.Pool
}

// NewStepRepo creates a step repository.
func NewStepRepo(pool *pgxpool.Pool) *StepRepo {
	return &StepRepo{pool: pool}
}

const (
	// The unique constraint on (entity_type, entity_id, level_order) plus
	// DO NOTHING makes bulk materialization idempotent for retried
	// submissions.
	insertStepSQL = `
INSERT INTO approval_steps (id, tenant_id, entity_type, entity_id, level_order, approver_role, status, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
ON CONFLICT (entity_type, entity_id, level_order) DO NOTHING;`

	getStepSQL = `
SELECT id, tenant_id, entity_type, entity_id, level_order, approver_role, status, resolved_by_id, resolved_at, notes, created_at
FROM approval_steps
WHERE tenant_id = $1 AND id = $2;`

	listStepsSQL = `
SELECT id, tenant_id, entity_type, entity_id, level_order, approver_role, status, resolved_by_id, resolved_at, notes, created_at
FROM approval_steps
WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3
ORDER BY level_order;`

	listActiveStepsSQL = `
SELECT id, tenant_id, entity_type, entity_id, level_order, approver_role, status, resolved_by_id, resolved_at, notes, created_at
FROM (
	SELECT DISTINCT ON (entity_type, entity_id)
		id, tenant_id, entity_type, entity_id, level_order, approver_role, status, resolved_by_id, resolved_at, notes, created_at
	FROM approval_steps
	WHERE tenant_id = $1 AND status = 'PENDING'
	ORDER BY entity_type, entity_id, level_order
) active
WHERE approver_role = ANY($2)
ORDER BY created_at;`

	decideStepSQL = `
UPDATE approval_steps
SET status = $2, resolved_by_id = $3, resolved_at = $4, notes = $5
WHERE id = $1 AND status = 'PENDING';`

	skipSiblingStepsSQL = `
UPDATE approval_steps
SET status = 'SKIPPED'
WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3 AND status = 'PENDING' AND id <> $4;`

	skipAllPendingStepsSQL = `
UPDATE approval_steps
SET status = 'SKIPPED'
WHERE tenant_id = $1 AND entity_id = $2 AND status = 'PENDING';`

	nextPendingStepSQL = `
SELECT id, tenant_id, entity_type, entity_id, level_order, approver_role, status, resolved_by_id, resolved_at, notes, created_at
FROM approval_steps
WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3 AND status = 'PENDING'
ORDER BY level_order
LIMIT 1;`

	countDecidedStepsSQL = `
SELECT COUNT(*)
FROM approval_steps
WHERE tenant_id = $1 AND entity_id = $2 AND status IN ('APPROVED', 'REJECTED');`

	finalizeRequestSQL = `
UPDATE requests
SET status = $3, decided_at = $4
WHERE tenant_id = $1 AND id = $2 AND status = 'PENDING_APPROVAL';`

	voidEntityTokensSQL = `
UPDATE remote_action_tokens
SET used = TRUE, used_at = $4
WHERE tenant_id = $1 AND entity_type = $2 AND entity_id = $3 AND used = FALSE;`
)

// CreateSteps bulk-inserts a request's step chain, skipping levels that
// already exist.
func (r *StepRepo) CreateSteps(ctx context.Context, steps []domain.ApprovalStep) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create steps tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, s := range steps {
		_, err := tx.Exec(ctx, insertStepSQL,
			s.ID, s.TenantID, string(s.EntityType), s.EntityID,
			s.LevelOrder, string(s.ApproverRole), string(s.Status), s.CreatedAt.UTC(),
		)
		if err != nil {
			return fmt.Errorf("insert step level %d for %s: %w", s.LevelOrder, s.EntityID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create steps tx: %w", err)
	}
	return nil
}

// GetStep returns a step by id within the tenant, or nil when absent.
func (r *StepRepo) GetStep(ctx context.Context, tenantID, id string) (*domain.ApprovalStep, error) {
	s, err := scanStep(r.pool.QueryRow(ctx, getStepSQL, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get step %s: %w", id, err)
	}
	return s, nil
}

// ListSteps returns a request's full step chain ordered by level.
func (r *StepRepo) ListSteps(ctx context.Context, tenantID string, entityType domain.Module, entityID string) ([]domain.ApprovalStep, error) {
	return r.querySteps(ctx, listStepsSQL, tenantID, string(entityType), entityID)
}

// ListActiveSteps returns the lowest-ordered pending step of each request
// whose approver role is one of roles.
func (r *StepRepo) ListActiveSteps(ctx context.Context, tenantID string, roles []domain.ApproverRole) ([]domain.ApprovalStep, error) {
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	return r.querySteps(ctx, listActiveStepsSQL, tenantID, names)
}

// Apply performs the decision transition. A zero-row conditional update means
// a concurrent decision won; the caller receives Applied=false and nothing is
// committed.
func (r *StepRepo) Apply(ctx context.Context, dec approval.Decision) (approval.DecisionResult, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return approval.DecisionResult{}, fmt.Errorf("begin decision tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	status := domain.StepApproved
	if dec.Action == domain.ActionReject {
		status = domain.StepRejected
	}
	at := dec.At.UTC()

	tag, err := tx.Exec(ctx, decideStepSQL, dec.Step.ID, string(status), dec.ActorID, at, dec.Notes)
	if err != nil {
		return approval.DecisionResult{}, fmt.Errorf("decide step %s: %w", dec.Step.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return approval.DecisionResult{Applied: false}, nil
	}

	result := approval.DecisionResult{Applied: true, RequestStatus: domain.RequestPendingApproval}

	if dec.Action == domain.ActionReject {
		if _, err := tx.Exec(ctx, skipSiblingStepsSQL, dec.TenantID, string(dec.Step.EntityType), dec.Step.EntityID, dec.Step.ID); err != nil {
			return approval.DecisionResult{}, fmt.Errorf("skip sibling steps for %s: %w", dec.Step.EntityID, err)
		}
		if err := finalizeRequest(ctx, tx, dec.TenantID, dec.Step.EntityID, domain.RequestRejected, at); err != nil {
			return approval.DecisionResult{}, err
		}
		result.RequestStatus = domain.RequestRejected
	} else {
		next, err := scanStepErr(tx.QueryRow(ctx, nextPendingStepSQL, dec.TenantID, string(dec.Step.EntityType), dec.Step.EntityID))
		if err != nil {
			return approval.DecisionResult{}, fmt.Errorf("find next pending step for %s: %w", dec.Step.EntityID, err)
		}
		if next != nil {
			result.NextStep = next
		} else {
			if err := finalizeRequest(ctx, tx, dec.TenantID, dec.Step.EntityID, domain.RequestApproved, at); err != nil {
				return approval.DecisionResult{}, err
			}
			result.RequestStatus = domain.RequestApproved
		}
	}

	// Outstanding chat buttons for this entity are stale the moment any
	// decision lands.
	if _, err := tx.Exec(ctx, voidEntityTokensSQL, dec.TenantID, string(dec.Step.EntityType), dec.Step.EntityID, at); err != nil {
		return approval.DecisionResult{}, fmt.Errorf("void tokens for %s: %w", dec.Step.EntityID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return approval.DecisionResult{}, fmt.Errorf("commit decision tx: %w", err)
	}
	return result, nil
}

// Cancel withdraws a pending request with no decided steps.
func (r *StepRepo) Cancel(ctx context.Context, tenantID, requestID string, at time.Time) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin cancel tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var decided int
	if err := tx.QueryRow(ctx, countDecidedStepsSQL, tenantID, requestID).Scan(&decided); err != nil {
		return false, fmt.Errorf("count decided steps for %s: %w", requestID, err)
	}
	if decided > 0 {
		return false, nil
	}

	tag, err := tx.Exec(ctx, `
UPDATE requests SET status = 'CANCELLED', decided_at = $3
WHERE tenant_id = $1 AND id = $2 AND status = 'PENDING_APPROVAL';`, tenantID, requestID, at.UTC())
	if err != nil {
		return false, fmt.Errorf("cancel request %s: %w", requestID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, skipAllPendingStepsSQL, tenantID, requestID); err != nil {
		return false, fmt.Errorf("skip steps for cancelled request %s: %w", requestID, err)
	}
	if _, err := tx.Exec(ctx, `
UPDATE remote_action_tokens SET used = TRUE, used_at = $3
WHERE tenant_id = $1 AND entity_id = $2 AND used = FALSE;`, tenantID, requestID, at.UTC()); err != nil {
		return false, fmt.Errorf("void tokens for cancelled request %s: %w", requestID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit cancel tx: %w", err)
	}
	return true, nil
}

func finalizeRequest(ctx context.Context, tx pgx.Tx, tenantID, requestID string, status domain.RequestStatus, at time.Time) error {
	if _, err := tx.Exec(ctx, finalizeRequestSQL, tenantID, requestID, string(status), at); err != nil {
		return fmt.Errorf("finalize request %s as %s: %w", requestID, status, err)
	}
	return nil
}

func (r *StepRepo) querySteps(ctx context.Context, sql string, args ...any) ([]domain.ApprovalStep, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("query steps: %w", err)
	}
	defer rows.Close()

	var out []domain.ApprovalStep
	for rows.Next() {
		s, err := scanStep(rows)
		if err != nil {
			return nil, fmt.Errorf("scan step: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

func scanStep(row pgx.Row) (*domain.ApprovalStep, error) {
	var s domain.ApprovalStep
	err := row.Scan(
		&s.ID, &s.TenantID, &s.EntityType, &s.EntityID, &s.LevelOrder,
		&s.ApproverRole, &s.Status, &s.ResolvedByID, &s.ResolvedAt, &s.Notes, &s.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// scanStepErr is scanStep with ErrNoRows mapped to (nil, nil).
func scanStepErr(row pgx.Row) (*domain.ApprovalStep, error) {
	s, err := scanStep(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	return s, err
}
