package approval

import (
	"time"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// EffectiveDelegation picks the delegation in effect for a delegator at t,
// or nil when none applies. Overlapping active delegations for the same
// delegator are resolved deterministically: latest start date wins, then
// latest creation time, then largest id. The repository rejects overlaps on
// create, so this rule only matters for rows predating that check.
func EffectiveDelegation(delegations []domain.Delegation, delegatorID string, at time.Time) *domain.Delegation {
	var winner *domain.Delegation
	for i := range delegations {
		d := &delegations[i]
		if d.DelegatorID != delegatorID || !d.ActiveAt(at) {
			continue
		}
		if winner == nil || laterDelegation(d, winner) {
			winner = d
		}
	}
	return winner
}

func laterDelegation(candidate, current *domain.Delegation) bool {
	if !candidate.StartDate.Equal(current.StartDate) {
		return candidate.StartDate.After(current.StartDate)
	}
	if !candidate.CreatedAt.Equal(current.CreatedAt) {
		return candidate.CreatedAt.After(current.CreatedAt)
	}
	return candidate.ID > current.ID
}

// ResolveApprover returns the effective approver for a nominal approver at t.
// When an active delegation exists the delegatee substitutes the delegator
// for the whole window; otherwise the nominal approver stands. Resolution is
// not transitive: the delegatee's own delegations never chain.
func ResolveApprover(delegations []domain.Delegation, approverID string, at time.Time) string {
	if d := EffectiveDelegation(delegations, approverID, at); d != nil {
		return d.DelegateeID
	}
	return approverID
}
