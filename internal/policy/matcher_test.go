package policy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

func intp(v int) *int { return &v }

func amount(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func leavePolicy(id string, priority int, minDays, maxDays *int) domain.ApprovalPolicy {
	return domain.ApprovalPolicy{
		ID:       id,
		Module:   domain.ModuleLeaveRequest,
		IsActive: true,
		Priority: priority,
		MinDays:  minDays,
		MaxDays:  maxDays,
		Levels: []domain.ApprovalLevel{
			{LevelOrder: 1, ApproverRole: domain.RoleManager},
		},
	}
}

func TestMatchSelectsPolicyInRange(t *testing.T) {
	policies := []domain.ApprovalPolicy{
		leavePolicy("p1", 1, intp(1), intp(4)),
		leavePolicy("p2", 1, intp(5), intp(30)),
	}

	got := Match(policies, domain.ModuleLeaveRequest, decimal.NewFromInt(10))
	require.NotNil(t, got)
	require.Equal(t, "p2", got.ID)
}

func TestMatchBoundaryInclusive(t *testing.T) {
	policies := []domain.ApprovalPolicy{leavePolicy("p1", 1, intp(5), intp(30))}

	for _, days := range []int64{5, 30} {
		got := Match(policies, domain.ModuleLeaveRequest, decimal.NewFromInt(days))
		require.NotNil(t, got, "metric %d exactly at a boundary must match", days)
	}
	require.Nil(t, Match(policies, domain.ModuleLeaveRequest, decimal.NewFromInt(31)))
}

func TestMatchPrefersHigherPriority(t *testing.T) {
	policies := []domain.ApprovalPolicy{
		leavePolicy("low", 1, nil, nil),
		leavePolicy("high", 10, intp(5), intp(30)),
	}

	got := Match(policies, domain.ModuleLeaveRequest, decimal.NewFromInt(10))
	require.NotNil(t, got)
	require.Equal(t, "high", got.ID, "overlapping match must resolve to the higher priority")

	// Outside the specific range only the catch-all applies.
	got = Match(policies, domain.ModuleLeaveRequest, decimal.NewFromInt(60))
	require.NotNil(t, got)
	require.Equal(t, "low", got.ID)
}

func TestMatchEqualPriorityTieBreaksByLowestID(t *testing.T) {
	// uuid-v7 ids sort chronologically, so the lowest id is the oldest policy.
	policies := []domain.ApprovalPolicy{
		leavePolicy("0192-bbbb", 3, nil, nil),
		leavePolicy("0192-aaaa", 3, nil, nil),
	}

	got := Match(policies, domain.ModuleLeaveRequest, decimal.NewFromInt(2))
	require.NotNil(t, got)
	require.Equal(t, "0192-aaaa", got.ID)
}

func TestMatchIgnoresInactiveAndOtherModules(t *testing.T) {
	inactive := leavePolicy("p1", 5, nil, nil)
	inactive.IsActive = false

	purchase := domain.ApprovalPolicy{
		ID:        "p2",
		Module:    domain.ModulePurchaseRequest,
		IsActive:  true,
		Priority:  5,
		MinAmount: amount("0"),
		Levels:    []domain.ApprovalLevel{{LevelOrder: 1, ApproverRole: domain.RoleFinanceManager}},
	}

	require.Nil(t, Match([]domain.ApprovalPolicy{inactive, purchase}, domain.ModuleLeaveRequest, decimal.NewFromInt(3)))
}

func TestMatchNoPolicies(t *testing.T) {
	require.Nil(t, Match(nil, domain.ModuleLeaveRequest, decimal.NewFromInt(1)))
}

func TestMatchAmountModule(t *testing.T) {
	policies := []domain.ApprovalPolicy{
		{
			ID: "small", Module: domain.ModulePurchaseRequest, IsActive: true, Priority: 1,
			MaxAmount: amount("999.99"),
			Levels:    []domain.ApprovalLevel{{LevelOrder: 1, ApproverRole: domain.RoleManager}},
		},
		{
			ID: "large", Module: domain.ModulePurchaseRequest, IsActive: true, Priority: 1,
			MinAmount: amount("1000"),
			Levels: []domain.ApprovalLevel{
				{LevelOrder: 1, ApproverRole: domain.RoleManager},
				{LevelOrder: 2, ApproverRole: domain.RoleFinanceManager},
			},
		},
	}

	got := Match(policies, domain.ModulePurchaseRequest, decimal.RequireFromString("1000.00"))
	require.NotNil(t, got)
	require.Equal(t, "large", got.ID)

	got = Match(policies, domain.ModulePurchaseRequest, decimal.RequireFromString("999.99"))
	require.NotNil(t, got)
	require.Equal(t, "small", got.ID)
}
