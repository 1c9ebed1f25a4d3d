package jobs

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/riverqueue/river"

	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
)

// Dispatcher enqueues notification jobs for workflow events. It is the
// engine's notification boundary: enqueue failures surface as errors so the
// engine can log them, but they never affect approval state.
type Dispatcher struct {
	client *river.Client[pgx.Tx]
}

// NewDispatcher creates a River-backed dispatcher.
func NewDispatcher(client *river.Client[pgx.Tx]) *Dispatcher {
	return &Dispatcher{client: client}
}

// StepActivated enqueues approver prompts for a step that just became active.
func (d *Dispatcher) StepActivated(ctx context.Context, req *domain.Request, step domain.ApprovalStep) error {
	_, err := d.client.Insert(ctx, ApprovalDispatchArgs{
		TenantID:   req.TenantID,
		EntityType: string(step.EntityType),
		EntityID:   step.EntityID,
		StepID:     step.ID,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueue approval_dispatch for step %s: %w", step.ID, err)
	}
	return nil
}

// RequestFinalized enqueues the requester's outcome message.
func (d *Dispatcher) RequestFinalized(ctx context.Context, req *domain.Request) error {
	_, err := d.client.Insert(ctx, OutcomeNotifyArgs{
		TenantID: req.TenantID,
		EntityID: req.ID,
	}, nil)
	if err != nil {
		return fmt.Errorf("enqueue approval_outcome for request %s: %w", req.ID, err)
	}
	return nil
}

var _ approval.Dispatcher = (*Dispatcher)(nil)
