// Package approval implements the workflow engine: level sequencing,
// delegation resolution, and approve/reject step processing.
package approval

import (
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// MaterializeSteps expands a matched policy into per-request approval steps,
// one per configured level, ordered by levelOrder ascending and all created
// PENDING. The active step is never stored; it is derived as the
// lowest-ordered PENDING step (see ActiveStep).
func MaterializeSteps(p *domain.ApprovalPolicy, tenantID string, entityType domain.Module, entityID string, at time.Time) ([]domain.ApprovalStep, error) {
	if len(p.Levels) == 0 {
		return nil, fmt.Errorf("policy %s has no levels", p.ID)
	}

	levels := make([]domain.ApprovalLevel, len(p.Levels))
	copy(levels, p.Levels)
	sort.Slice(levels, func(i, j int) bool { return levels[i].LevelOrder < levels[j].LevelOrder })

	steps := make([]domain.ApprovalStep, 0, len(levels))
	for _, lvl := range levels {
		id, err := uuid.NewV7()
		if err != nil {
			return nil, fmt.Errorf("generate step id: %w", err)
		}
		steps = append(steps, domain.ApprovalStep{
			ID:           id.String(),
			TenantID:     tenantID,
			EntityType:   entityType,
			EntityID:     entityID,
			LevelOrder:   lvl.LevelOrder,
			ApproverRole: lvl.ApproverRole,
			Status:       domain.StepPending,
			CreatedAt:    at,
		})
	}
	return steps, nil
}

// ActiveStep returns the lowest-ordered PENDING step, or nil when the
// request has no pending work left.
func ActiveStep(steps []domain.ApprovalStep) *domain.ApprovalStep {
	var active *domain.ApprovalStep
	for i := range steps {
		s := &steps[i]
		if s.Status != domain.StepPending {
			continue
		}
		if active == nil || s.LevelOrder < active.LevelOrder {
			active = s
		}
	}
	return active
}
