// Package main seeds approval policies and members from a YAML file.
//
// Seeding is idempotent: policies are matched by (tenant, name) and members
// by ID, so re-running against a populated database only fills gaps.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/mohammedrameesp/smepp-approvals/internal/config"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/policy"
	"github.com/mohammedrameesp/smepp-approvals/internal/repository"
)

type seedFile struct {
	TenantID string       `yaml:"tenant_id"`
	Members  []seedMember `yaml:"members"`
	Policies []seedPolicy `yaml:"policies"`
}

type seedMember struct {
	ID    string  `yaml:"id"`
	Name  string  `yaml:"name"`
	Phone *string `yaml:"phone"`
	Role  *string `yaml:"role"`
}

type seedPolicy struct {
	Name      string      `yaml:"name"`
	Module    string      `yaml:"module"`
	IsActive  *bool       `yaml:"is_active"`
	Priority  int         `yaml:"priority"`
	MinDays   *int        `yaml:"min_days"`
	MaxDays   *int        `yaml:"max_days"`
	MinAmount *string     `yaml:"min_amount"`
	MaxAmount *string     `yaml:"max_amount"`
	Levels    []seedLevel `yaml:"levels"`
}

type seedLevel struct {
	LevelOrder   int    `yaml:"level_order"`
	ApproverRole string `yaml:"approver_role"`
}

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seed error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	path := flag.String("file", "seed.yaml", "path to the seed YAML file")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Init(cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	raw, err := os.ReadFile(*path)
	if err != nil {
		return fmt.Errorf("read seed file: %w", err)
	}
	var seed seedFile
	if err := yaml.Unmarshal(raw, &seed); err != nil {
		return fmt.Errorf("parse seed file: %w", err)
	}
	if seed.TenantID == "" {
		return fmt.Errorf("seed file must set tenant_id")
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()

	if err := repository.Migrate(ctx, pool); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	logger.Info("Starting data seeding...", zap.String("tenant", seed.TenantID))

	members := repository.NewMemberRepo(pool)
	for _, m := range seed.Members {
		if err := seedOneMember(ctx, members, seed.TenantID, m); err != nil {
			return fmt.Errorf("seed member %s: %w", m.ID, err)
		}
	}

	policies := repository.NewPolicyRepo(pool)
	for _, p := range seed.Policies {
		if err := seedOnePolicy(ctx, policies, seed.TenantID, p); err != nil {
			return fmt.Errorf("seed policy %q: %w", p.Name, err)
		}
	}

	logger.Info("Data seeding completed successfully",
		zap.Int("members", len(seed.Members)),
		zap.Int("policies", len(seed.Policies)),
	)
	return nil
}

func seedOneMember(ctx context.Context, repo *repository.MemberRepo, tenantID string, m seedMember) error {
	member := &repository.Member{
		ID:       m.ID,
		TenantID: tenantID,
		Name:     m.Name,
		Phone:    m.Phone,
	}
	if m.Role != nil {
		role := domain.ApproverRole(*m.Role)
		if !role.Valid() {
			return fmt.Errorf("unknown approver role %q", *m.Role)
		}
		member.Role = &role
	}
	return repo.Upsert(ctx, member)
}

func seedOnePolicy(ctx context.Context, repo *repository.PolicyRepo, tenantID string, p seedPolicy) error {
	existing, err := repo.List(ctx, tenantID, p.Module)
	if err != nil {
		return err
	}
	for _, e := range existing {
		if e.Name == p.Name {
			logger.Info("policy already present, skipping", zap.String("name", p.Name))
			return nil
		}
	}

	id, err := uuid.NewV7()
	if err != nil {
		return err
	}
	pol := &domain.ApprovalPolicy{
		ID:        id.String(),
		TenantID:  tenantID,
		Name:      p.Name,
		Module:    domain.Module(p.Module),
		IsActive:  true,
		Priority:  p.Priority,
		MinDays:   p.MinDays,
		MaxDays:   p.MaxDays,
		CreatedAt: time.Now().UTC(),
	}
	if p.IsActive != nil {
		pol.IsActive = *p.IsActive
	}
	if pol.MinAmount, err = parseAmount(p.MinAmount); err != nil {
		return err
	}
	if pol.MaxAmount, err = parseAmount(p.MaxAmount); err != nil {
		return err
	}
	for _, l := range p.Levels {
		pol.Levels = append(pol.Levels, domain.ApprovalLevel{
			LevelOrder:   l.LevelOrder,
			ApproverRole: domain.ApproverRole(l.ApproverRole),
		})
	}

	if err := policy.Validate(pol); err != nil {
		return err
	}
	return repo.Create(ctx, pol)
}

func parseAmount(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, fmt.Errorf("invalid amount %q: %w", *s, err)
	}
	return &d, nil
}
