// Package repository provides PostgreSQL persistence for the approval
// workflow engine via pgx.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// schemaDDL creates all tables the approvals service owns. Statements are
// idempotent so Migrate can run on every boot.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS approval_policies (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	name        TEXT NOT NULL,
	module      TEXT NOT NULL,
	is_active   BOOLEAN NOT NULL DEFAULT TRUE,
	priority    INTEGER NOT NULL DEFAULT 0,
	min_days    INTEGER,
	max_days    INTEGER,
	min_amount  NUMERIC(14,2),
	max_amount  NUMERIC(14,2),
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_policies_tenant_module
	ON approval_policies (tenant_id, module) WHERE is_active;

CREATE TABLE IF NOT EXISTS approval_levels (
	policy_id     TEXT NOT NULL REFERENCES approval_policies (id) ON DELETE CASCADE,
	level_order   INTEGER NOT NULL,
	approver_role TEXT NOT NULL,
	PRIMARY KEY (policy_id, level_order)
);

CREATE TABLE IF NOT EXISTS requests (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	module       TEXT NOT NULL,
	requester_id TEXT NOT NULL,
	title        TEXT NOT NULL,
	days         INTEGER,
	amount       NUMERIC(14,2),
	status       TEXT NOT NULL,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	decided_at   TIMESTAMPTZ
);

CREATE INDEX IF NOT EXISTS idx_requests_tenant_requester
	ON requests (tenant_id, requester_id);

CREATE TABLE IF NOT EXISTS approval_steps (
	id             TEXT PRIMARY KEY,
	tenant_id      TEXT NOT NULL,
	entity_type    TEXT NOT NULL,
	entity_id      TEXT NOT NULL,
	level_order    INTEGER NOT NULL,
	approver_role  TEXT NOT NULL,
	status         TEXT NOT NULL,
	resolved_by_id TEXT,
	resolved_at    TIMESTAMPTZ,
	notes          TEXT,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	UNIQUE (entity_type, entity_id, level_order)
);

CREATE INDEX IF NOT EXISTS idx_steps_entity
	ON approval_steps (tenant_id, entity_type, entity_id);

CREATE TABLE IF NOT EXISTS delegations (
	id           TEXT PRIMARY KEY,
	tenant_id    TEXT NOT NULL,
	delegator_id TEXT NOT NULL,
	delegatee_id TEXT NOT NULL,
	start_date   TIMESTAMPTZ NOT NULL,
	end_date     TIMESTAMPTZ NOT NULL,
	is_active    BOOLEAN NOT NULL DEFAULT TRUE,
	reason       TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	CHECK (end_date > start_date)
);

CREATE INDEX IF NOT EXISTS idx_delegations_delegator
	ON delegations (tenant_id, delegator_id) WHERE is_active;

CREATE TABLE IF NOT EXISTS remote_action_tokens (
	id          TEXT PRIMARY KEY,
	tenant_id   TEXT NOT NULL,
	entity_type TEXT NOT NULL,
	entity_id   TEXT NOT NULL,
	action      TEXT NOT NULL,
	approver_id TEXT NOT NULL,
	expires_at  TIMESTAMPTZ NOT NULL,
	used        BOOLEAN NOT NULL DEFAULT FALSE,
	used_at     TIMESTAMPTZ,
	created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_tokens_entity
	ON remote_action_tokens (tenant_id, entity_type, entity_id) WHERE NOT used;

CREATE TABLE IF NOT EXISTS members (
	id            TEXT PRIMARY KEY,
	tenant_id     TEXT NOT NULL,
	name          TEXT NOT NULL,
	phone         TEXT,
	approver_role TEXT,
	created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_members_role
	ON members (tenant_id, approver_role);
`

// Migrate applies the schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("apply approvals schema: %w", err)
	}
	return nil
}
