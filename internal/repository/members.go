package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// Member is a tenant user the engine needs to know about: role holders for
// authorization and phone numbers for outbound messages.
type Member struct {
	ID       string
	TenantID string
	Name     string
	Phone    *string
	Role     *domain.ApproverRole
}

// MemberRepo is the role directory backing approver authorization.
type MemberRepo struct {
	pool *pgxpool.Pool
}

// NewMemberRepo creates a member repository.
func NewMemberRepo(pool *pgxpool.Pool) *MemberRepo {
	return &MemberRepo{pool: pool}
}

const (
	getMemberSQL = `
SELECT id, tenant_id, name, phone, approver_role
FROM members
WHERE tenant_id = $1 AND id = $2;`

	usersWithRoleSQL = `
SELECT id FROM members
WHERE tenant_id = $1 AND approver_role = $2
ORDER BY id;`

	rolesOfSQL = `
SELECT approver_role FROM members
WHERE tenant_id = $1 AND id = $2 AND approver_role IS NOT NULL;`

	upsertMemberSQL = `
INSERT INTO members (id, tenant_id, name, phone, approver_role)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (id) DO UPDATE SET name = $3, phone = $4, approver_role = $5;`
)

// Get returns a member, or nil when absent.
func (r *MemberRepo) Get(ctx context.Context, tenantID, id string) (*Member, error) {
	var m Member
	err := r.pool.QueryRow(ctx, getMemberSQL, tenantID, id).Scan(&m.ID, &m.TenantID, &m.Name, &m.Phone, &m.Role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member %s: %w", id, err)
	}
	return &m, nil
}

// Upsert writes a member row, used by seeding and admin sync.
func (r *MemberRepo) Upsert(ctx context.Context, m *Member) error {
	var role *string
	if m.Role != nil {
		s := string(*m.Role)
		role = &s
	}
	if _, err := r.pool.Exec(ctx, upsertMemberSQL, m.ID, m.TenantID, m.Name, m.Phone, role); err != nil {
		return fmt.Errorf("upsert member %s: %w", m.ID, err)
	}
	return nil
}

// UsersWithRole returns the ids of members holding the role.
func (r *MemberRepo) UsersWithRole(ctx context.Context, tenantID string, role domain.ApproverRole) ([]string, error) {
	rows, err := r.pool.Query(ctx, usersWithRoleSQL, tenantID, string(role))
	if err != nil {
		return nil, fmt.Errorf("list members with role %s: %w", role, err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan member id: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RolesOf returns the approver roles a member holds.
func (r *MemberRepo) RolesOf(ctx context.Context, tenantID, userID string) ([]domain.ApproverRole, error) {
	rows, err := r.pool.Query(ctx, rolesOfSQL, tenantID, userID)
	if err != nil {
		return nil, fmt.Errorf("list roles of member %s: %w", userID, err)
	}
	defer rows.Close()

	var out []domain.ApproverRole
	for rows.Next() {
		var role domain.ApproverRole
		if err := rows.Scan(&role); err != nil {
			return nil, fmt.Errorf("scan member role: %w", err)
		}
		out = append(out, role)
	}
	return out, rows.Err()
}
