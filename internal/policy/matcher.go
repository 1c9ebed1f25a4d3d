// Package policy implements approval policy matching and validation.
package policy

import (
	"github.com/shopspring/decimal"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// Match selects the best-matching active policy for a module and metric.
//
// A policy matches when it is active, belongs to the module, and its
// [min, max] range contains the metric (both bounds inclusive; a missing
// bound is unbounded). Among matches the highest priority wins; equal
// priorities are broken by lowest id, which for uuid-v7 ids means the oldest
// policy. Returns nil when nothing matches — callers treat that as "no
// approval required".
func Match(policies []domain.ApprovalPolicy, module domain.Module, metric decimal.Decimal) *domain.ApprovalPolicy {
	var best *domain.ApprovalPolicy
	for i := range policies {
		p := &policies[i]
		if !p.IsActive || p.Module != module || !p.Contains(metric) {
			continue
		}
		if best == nil || betterMatch(p, best) {
			best = p
		}
	}
	return best
}

// betterMatch reports whether candidate should replace current.
func betterMatch(candidate, current *domain.ApprovalPolicy) bool {
	if candidate.Priority != current.Priority {
		return candidate.Priority > current.Priority
	}
	return candidate.ID < current.ID
}
