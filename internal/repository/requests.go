package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// RequestRepo persists workflow requests.
type RequestRepo struct {
	pool *pgxpool.Pool
}

// NewRequestRepo creates a request repository.
func NewRequestRepo(pool *pgxpool.Pool) *RequestRepo {
	return &RequestRepo{pool: pool}
}

const (
	insertRequestSQL = `
INSERT INTO requests (id, tenant_id, module, requester_id, title, days, amount, status, created_at, decided_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);`

	// Amounts travel as text so shopspring decimals never pass through
	// binary float encoding.
	getRequestSQL = `
SELECT id, tenant_id, module, requester_id, title, days, amount::text, status, created_at, decided_at
FROM requests
WHERE tenant_id = $1 AND id = $2;`

	listRequestsByRequesterSQL = `
SELECT id, tenant_id, module, requester_id, title, days, amount::text, status, created_at, decided_at
FROM requests
WHERE tenant_id = $1 AND requester_id = $2
ORDER BY created_at DESC
LIMIT $3;`
)

// Create inserts a new request row.
func (r *RequestRepo) Create(ctx context.Context, req *domain.Request) error {
	_, err := r.pool.Exec(ctx, insertRequestSQL,
		req.ID, req.TenantID, string(req.Module), req.RequesterID, req.Title,
		req.Days, decimalArg(req.Amount), string(req.Status), req.CreatedAt.UTC(), req.DecidedAt,
	)
	if err != nil {
		return fmt.Errorf("insert request %s: %w", req.ID, err)
	}
	return nil
}

// CreateRequest satisfies the engine's Store interface.
func (r *RequestRepo) CreateRequest(ctx context.Context, req *domain.Request) error {
	return r.Create(ctx, req)
}

// GetRequest returns a request by id within the tenant, or nil when absent.
func (r *RequestRepo) GetRequest(ctx context.Context, tenantID, id string) (*domain.Request, error) {
	req, err := scanRequest(r.pool.QueryRow(ctx, getRequestSQL, tenantID, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get request %s: %w", id, err)
	}
	return req, nil
}

// ListByRequester returns the requester's most recent requests.
func (r *RequestRepo) ListByRequester(ctx context.Context, tenantID, requesterID string, limit int) ([]domain.Request, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, listRequestsByRequesterSQL, tenantID, requesterID, limit)
	if err != nil {
		return nil, fmt.Errorf("list requests for %s: %w", requesterID, err)
	}
	defer rows.Close()

	var out []domain.Request
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan request: %w", err)
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

func scanRequest(row pgx.Row) (*domain.Request, error) {
	var (
		req       domain.Request
		amountStr *string
	)
	err := row.Scan(
		&req.ID, &req.TenantID, &req.Module, &req.RequesterID, &req.Title,
		&req.Days, &amountStr, &req.Status, &req.CreatedAt, &req.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	amount, err := parseDecimal(amountStr)
	if err != nil {
		return nil, fmt.Errorf("request %s amount: %w", req.ID, err)
	}
	req.Amount = amount
	return &req, nil
}

func decimalArg(d *decimal.Decimal) any {
	if d == nil {
		return nil
	}
	return d.String()
}

func parseDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
