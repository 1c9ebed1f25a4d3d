package approval

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

func TestResolveApproverInsideAndOutsideWindow(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	t1 := t0.AddDate(0, 0, 14)
	delegations := []domain.Delegation{
		{ID: "d1", DelegatorID: "M", DelegateeID: "D", StartDate: t0, EndDate: t1, IsActive: true},
	}

	require.Equal(t, "D", ResolveApprover(delegations, "M", t0), "window start is inclusive")
	require.Equal(t, "D", ResolveApprover(delegations, "M", t0.AddDate(0, 0, 7)))
	require.Equal(t, "M", ResolveApprover(delegations, "M", t1), "window end is exclusive")
	require.Equal(t, "M", ResolveApprover(delegations, "M", t0.Add(-time.Second)))
}

func TestResolveApproverIgnoresInactiveAndOtherDelegators(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := t0.AddDate(0, 0, 1)
	delegations := []domain.Delegation{
		{ID: "d1", DelegatorID: "M", DelegateeID: "D", StartDate: t0, EndDate: t0.AddDate(0, 0, 14), IsActive: false},
		{ID: "d2", DelegatorID: "X", DelegateeID: "Y", StartDate: t0, EndDate: t0.AddDate(0, 0, 14), IsActive: true},
	}
	require.Equal(t, "M", ResolveApprover(delegations, "M", at))
}

func TestResolveApproverIsNotTransitive(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := t0.AddDate(0, 0, 1)
	delegations := []domain.Delegation{
		{ID: "d1", DelegatorID: "M", DelegateeID: "D", StartDate: t0, EndDate: t0.AddDate(0, 0, 14), IsActive: true},
		{ID: "d2", DelegatorID: "D", DelegateeID: "E", StartDate: t0, EndDate: t0.AddDate(0, 0, 14), IsActive: true},
	}
	require.Equal(t, "D", ResolveApprover(delegations, "M", at), "delegatee's own delegations must not chain")
}

func TestEffectiveDelegationOverlapPrefersLatestStart(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := t0.AddDate(0, 0, 5)
	delegations := []domain.Delegation{
		{ID: "d1", DelegatorID: "M", DelegateeID: "D1", StartDate: t0, EndDate: t0.AddDate(0, 0, 30), IsActive: true, CreatedAt: t0},
		{ID: "d2", DelegatorID: "M", DelegateeID: "D2", StartDate: t0.AddDate(0, 0, 3), EndDate: t0.AddDate(0, 0, 10), IsActive: true, CreatedAt: t0},
	}
	d := EffectiveDelegation(delegations, "M", at)
	require.NotNil(t, d)
	require.Equal(t, "d2", d.ID)
}

func TestEffectiveDelegationOverlapTieBreaks(t *testing.T) {
	t0 := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	at := t0.AddDate(0, 0, 1)

	// Same start date, different creation times.
	delegations := []domain.Delegation{
		{ID: "d1", DelegatorID: "M", DelegateeID: "D1", StartDate: t0, EndDate: t0.AddDate(0, 0, 10), IsActive: true, CreatedAt: t0},
		{ID: "d2", DelegatorID: "M", DelegateeID: "D2", StartDate: t0, EndDate: t0.AddDate(0, 0, 10), IsActive: true, CreatedAt: t0.Add(time.Hour)},
	}
	d := EffectiveDelegation(delegations, "M", at)
	require.NotNil(t, d)
	require.Equal(t, "d2", d.ID)

	// Identical start and creation: largest id wins.
	delegations[1].CreatedAt = t0
	d = EffectiveDelegation(delegations, "M", at)
	require.NotNil(t, d)
	require.Equal(t, "d2", d.ID)
}
