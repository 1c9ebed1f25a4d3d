package repository

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// PolicyRepo persists approval policies and their levels.
type PolicyRepo struct {
	pool *pgxpool.Pool
}

// NewPolicyRepo creates a policy repository.
func NewPolicyRepo(pool *pgxpool.Pool) *PolicyRepo {
	return &PolicyRepo{pool: pool}
}

const (
	insertPolicySQL = `
INSERT INTO approval_policies (id, tenant_id, name, module, is_active, priority, min_days, max_days, min_amount, max_amount, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11);`

	updatePolicySQL = `
UPDATE approval_policies
SET name = $3, module = $4, is_active = $5, priority = $6,
    min_days = $7, max_days = $8, min_amount = $9, max_amount = $10
WHERE tenant_id = $1 AND id = $2;`

	insertLevelSQL = `
INSERT INTO approval_levels (policy_id, level_order, approver_role)
VALUES ($1, $2, $3);`

	deleteLevelsSQL = `DELETE FROM approval_levels WHERE policy_id = $1;`

	getPolicySQL = `
SELECT id, tenant_id, name, module, is_active, priority, min_days, max_days, min_amount::text, max_amount::text, created_at
FROM approval_policies
WHERE tenant_id = $1 AND id = $2;`

	listPoliciesSQL = `
SELECT id, tenant_id, name, module, is_active, priority, min_days, max_days, min_amount::text, max_amount::text, created_at
FROM approval_policies
WHERE tenant_id = $1 AND ($2 = '' OR module = $2)
ORDER BY module, priority DESC, id;`

	listActivePoliciesSQL = `
SELECT id, tenant_id, name, module, is_active, priority, min_days, max_days, min_amount::text, max_amount::text, created_at
FROM approval_policies
WHERE tenant_id = $1 AND module = $2 AND is_active
ORDER BY priority DESC, id;`

	listLevelsSQL = `
SELECT policy_id, level_order, approver_role
FROM approval_levels
WHERE policy_id = ANY($1)
ORDER BY policy_id, level_order;`

	setPolicyActiveSQL = `
UPDATE approval_policies SET is_active = $3 WHERE tenant_id = $1 AND id = $2;`

	deletePolicySQL = `DELETE FROM approval_policies WHERE tenant_id = $1 AND id = $2;`
)

// Create inserts the policy and its levels in one transaction.
func (r *PolicyRepo) Create(ctx context.Context, p *domain.ApprovalPolicy) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create policy tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, insertPolicySQL,
		p.ID, p.TenantID, p.Name, string(p.Module), p.IsActive, p.Priority,
		p.MinDays, p.MaxDays, decimalArg(p.MinAmount), decimalArg(p.MaxAmount), p.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("insert policy %s: %w", p.ID, err)
	}
	if err := insertLevels(ctx, tx, p.ID, p.Levels); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create policy tx: %w", err)
	}
	return nil
}

// Update replaces the policy row and its level set in one transaction.
// Returns false when the policy does not exist.
func (r *PolicyRepo) Update(ctx context.Context, p *domain.ApprovalPolicy) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin update policy tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	tag, err := tx.Exec(ctx, updatePolicySQL,
		p.TenantID, p.ID, p.Name, string(p.Module), p.IsActive, p.Priority,
		p.MinDays, p.MaxDays, decimalArg(p.MinAmount), decimalArg(p.MaxAmount),
	)
	if err != nil {
		return false, fmt.Errorf("update policy %s: %w", p.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return false, nil
	}

	if _, err := tx.Exec(ctx, deleteLevelsSQL, p.ID); err != nil {
		return false, fmt.Errorf("clear levels for policy %s: %w", p.ID, err)
	}
	if err := insertLevels(ctx, tx, p.ID, p.Levels); err != nil {
		return false, err
	}
	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit update policy tx: %w", err)
	}
	return true, nil
}

// Get returns a policy with its levels, or nil when absent.
func (r *PolicyRepo) Get(ctx context.Context, tenantID, id string) (*domain.ApprovalPolicy, error) {
	p, err := scanPolicy(r.pool.QueryRow(ctx, getPolicySQL, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get policy %s: %w", id, err)
	}
	if err := r.attachLevels(ctx, []*domain.ApprovalPolicy{p}); err != nil {
		return nil, err
	}
	return p, nil
}

// List returns the tenant's policies, optionally filtered by module.
func (r *PolicyRepo) List(ctx context.Context, tenantID string, module string) ([]domain.ApprovalPolicy, error) {
	return r.queryPolicies(ctx, listPoliciesSQL, tenantID, module)
}

// ListActivePolicies satisfies the engine's Store interface.
func (r *PolicyRepo) ListActivePolicies(ctx context.Context, tenantID string, module domain.Module) ([]domain.ApprovalPolicy, error) {
	return r.queryPolicies(ctx, listActivePoliciesSQL, tenantID, string(module))
}

// SetActive toggles a policy without touching its configuration.
func (r *PolicyRepo) SetActive(ctx context.Context, tenantID, id string, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, setPolicyActiveSQL, tenantID, id, active)
	if err != nil {
		return false, fmt.Errorf("set policy %s active=%t: %w", id, active, err)
	}
	return tag.RowsAffected() == 1, nil
}

// Delete removes a policy and, via cascade, its levels. Existing steps are
// untouched: they are the audit trail, not policy state.
func (r *PolicyRepo) Delete(ctx context.Context, tenantID, id string) (bool, error) {
	tag, err := r.pool.Exec(ctx, deletePolicySQL, tenantID, id)
	if err != nil {
		return false, fmt.Errorf("delete policy %s: %w", id, err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *PolicyRepo) queryPolicies(ctx context.Context, sql string, args ...any) ([]domain.ApprovalPolicy, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var ptrs []*domain.ApprovalPolicy
	for rows.Next() {
		p, err := scanPolicy(rows)
		if err != nil {
			return nil, fmt.Errorf("scan policy: %w", err)
		}
		ptrs = append(ptrs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := r.attachLevels(ctx, ptrs); err != nil {
		return nil, err
	}

	out := make([]domain.ApprovalPolicy, 0, len(ptrs))
	for _, p := range ptrs {
		out = append(out, *p)
	}
	return out, nil
}

func (r *PolicyRepo) attachLevels(ctx context.Context, policies []*domain.ApprovalPolicy) error {
	if len(policies) == 0 {
		return nil
	}
	ids := make([]string, 0, len(policies))
	byID := make(map[string]*domain.ApprovalPolicy, len(policies))
	for _, p := range policies {
		ids = append(ids, p.ID)
		byID[p.ID] = p
	}

	rows, err := r.pool.Query(ctx, listLevelsSQL, ids)
	if err != nil {
		return fmt.Errorf("list policy levels: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			policyID string
			lvl      domain.ApprovalLevel
		)
		if err := rows.Scan(&policyID, &lvl.LevelOrder, &lvl.ApproverRole); err != nil {
			return fmt.Errorf("scan policy level: %w", err)
		}
		if p, ok := byID[policyID]; ok {
			p.Levels = append(p.Levels, lvl)
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for _, p := range policies {
		sort.Slice(p.Levels, func(i, j int) bool { return p.Levels[i].LevelOrder < p.Levels[j].LevelOrder })
	}
	return nil
}

func insertLevels(ctx context.Context, tx pgx.Tx, policyID string, levels []domain.ApprovalLevel) error {
	for _, lvl := range levels {
		if _, err := tx.Exec(ctx, insertLevelSQL, policyID, lvl.LevelOrder, string(lvl.ApproverRole)); err != nil {
			return fmt.Errorf("insert level %d for policy %s: %w", lvl.LevelOrder, policyID, err)
		}
	}
	return nil
}

func scanPolicy(row pgx.Row) (*domain.ApprovalPolicy, error) {
	var (
		p         domain.ApprovalPolicy
		minAmount *string
		maxAmount *string
	)
	err := row.Scan(
		&p.ID, &p.TenantID, &p.Name, &p.Module, &p.IsActive, &p.Priority,
		&p.MinDays, &p.MaxDays, &minAmount, &maxAmount, &p.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	if p.MinAmount, err = parseDecimal(minAmount); err != nil {
		return nil, fmt.Errorf("policy %s min amount: %w", p.ID, err)
	}
	if p.MaxAmount, err = parseDecimal(maxAmount); err != nil {
		return nil, fmt.Errorf("policy %s max amount: %w", p.ID, err)
	}
	return &p, nil
}
