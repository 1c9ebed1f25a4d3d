// Package jobs contains the River workers for notification dispatch and
// token maintenance.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	"github.com/mohammedrameesp/smepp-approvals/internal/notification"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/repository"
	"github.com/mohammedrameesp/smepp-approvals/internal/token"
)

// ApprovalDispatchArgs notifies the effective approvers of a newly active
// step, minting the approve/reject token pair for each of them.
type ApprovalDispatchArgs struct {
	TenantID   string `json:"tenant_id"`
	EntityType string `json:"entity_type"`
	EntityID   string `json:"entity_id"`
	StepID     string `json:"step_id"`
}

// Kind returns the job kind identifier.
func (ApprovalDispatchArgs) Kind() string { return "approval_dispatch" }

// InsertOpts dedupes re-enqueues of the same step within a short window.
func (ApprovalDispatchArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 15 * time.Minute,
		},
	}
}

// ApprovalDispatchWorker resolves the step's effective approvers and sends
// each one a prompt with single-use action links.
type ApprovalDispatchWorker struct {
	river.WorkerDefaults[ApprovalDispatchArgs]
	requests    *repository.RequestRepo
	steps       *repository.StepRepo
	delegations *repository.DelegationRepo
	members     *repository.MemberRepo
	tokens      *token.Service
	triggers    *notification.Triggers
	baseURL     string
}

// NewApprovalDispatchWorker creates the dispatch worker. baseURL is the
// public prefix for remote action links.
func NewApprovalDispatchWorker(
	store *repository.Store,
	members *repository.MemberRepo,
	tokens *token.Service,
	triggers *notification.Triggers,
	baseURL string,
) *ApprovalDispatchWorker {
	return &ApprovalDispatchWorker{
		requests:    store.RequestRepo,
		steps:       store.StepRepo,
		delegations: store.DelegationRepo,
		members:     members,
		tokens:      tokens,
		triggers:    triggers,
		baseURL:     baseURL,
	}
}

// Work sends the approver prompts. A stale job (step already decided,
// request finalized) completes without sending.
func (w *ApprovalDispatchWorker) Work(ctx context.Context, job *river.Job[ApprovalDispatchArgs]) error {
	args := job.Args

	step, err := w.steps.GetStep(ctx, args.TenantID, args.StepID)
	if err != nil {
		return err
	}
	if step == nil || step.Status != domain.StepPending {
		logger.Debug("dispatch skipped, step no longer pending", zap.String("step_id", args.StepID))
		return nil
	}

	req, err := w.requests.GetRequest(ctx, args.TenantID, args.EntityID)
	if err != nil {
		return err
	}
	if req == nil || req.Status != domain.RequestPendingApproval {
		logger.Debug("dispatch skipped, request no longer pending", zap.String("request_id", args.EntityID))
		return nil
	}

	holders, err := w.members.UsersWithRole(ctx, args.TenantID, step.ApproverRole)
	if err != nil {
		return err
	}
	if len(holders) == 0 {
		logger.Warn("no members hold the approver role, nobody to notify",
			zap.String("role", string(step.ApproverRole)),
			zap.String("request_id", req.ID),
		)
		return nil
	}

	now := time.Now().UTC()
	delegations, err := w.delegations.ListActiveDelegations(ctx, args.TenantID, now)
	if err != nil {
		return err
	}

	requesterName := req.RequesterID
	if requester, err := w.members.Get(ctx, args.TenantID, req.RequesterID); err == nil && requester != nil {
		requesterName = requester.Name
	}

	notified := make(map[string]bool)
	for _, holder := range holders {
		effective := approval.ResolveApprover(delegations, holder, now)
		if notified[effective] {
			continue
		}
		notified[effective] = true

		member, err := w.members.Get(ctx, args.TenantID, effective)
		if err != nil {
			return err
		}
		if member == nil || member.Phone == nil || *member.Phone == "" {
			logger.Warn("effective approver has no phone, skipping prompt",
				zap.String("approver_id", effective),
				zap.String("request_id", req.ID),
			)
			continue
		}

		pair, err := w.tokens.IssuePair(ctx, args.TenantID, req.Module, req.ID, effective, 0)
		if err != nil {
			return fmt.Errorf("issue token pair for approver %s: %w", effective, err)
		}

		w.triggers.ApproverPrompt(
			*member.Phone, requesterName, req, *step,
			w.baseURL+"/remote-actions/"+pair.Approve,
			w.baseURL+"/remote-actions/"+pair.Reject,
		)
	}

	logger.Info("approval prompts dispatched",
		zap.String("request_id", req.ID),
		zap.String("step_id", step.ID),
		zap.Int("level", step.LevelOrder),
		zap.Int("approvers", len(notified)),
	)
	return nil
}

// OutcomeNotifyArgs tells the requester their request was finalized.
type OutcomeNotifyArgs struct {
	TenantID string `json:"tenant_id"`
	EntityID string `json:"entity_id"`
}

// Kind returns the job kind identifier.
func (OutcomeNotifyArgs) Kind() string { return "approval_outcome" }

// InsertOpts dedupes duplicate outcome notifications per request.
func (OutcomeNotifyArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 5,
		UniqueOpts: river.UniqueOpts{
			ByArgs:   true,
			ByPeriod: 15 * time.Minute,
		},
	}
}

// OutcomeNotifyWorker messages the requester with the final status.
type OutcomeNotifyWorker struct {
	river.WorkerDefaults[OutcomeNotifyArgs]
	requests *repository.RequestRepo
	members  *repository.MemberRepo
	triggers *notification.Triggers
}

// NewOutcomeNotifyWorker creates the outcome worker.
func NewOutcomeNotifyWorker(store *repository.Store, members *repository.MemberRepo, triggers *notification.Triggers) *OutcomeNotifyWorker {
	return &OutcomeNotifyWorker{requests: store.RequestRepo, members: members, triggers: triggers}
}

// Work sends the outcome message when the requester has a phone on file.
func (w *OutcomeNotifyWorker) Work(ctx context.Context, job *river.Job[OutcomeNotifyArgs]) error {
	req, err := w.requests.GetRequest(ctx, job.Args.TenantID, job.Args.EntityID)
	if err != nil {
		return err
	}
	if req == nil || req.Status == domain.RequestPendingApproval {
		return nil
	}

	member, err := w.members.Get(ctx, job.Args.TenantID, req.RequesterID)
	if err != nil {
		return err
	}
	if member == nil || member.Phone == nil || *member.Phone == "" {
		logger.Debug("requester has no phone, outcome message skipped",
			zap.String("request_id", req.ID))
		return nil
	}

	w.triggers.RequesterOutcome(*member.Phone, req)
	return nil
}
