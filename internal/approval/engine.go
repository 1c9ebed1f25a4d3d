package approval

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/metrics"
	"github.com/mohammedrameesp/smepp-approvals/internal/policy"
)

// MaxNotesLength caps decision notes.
const MaxNotesLength = 500

// Store is the read side the engine needs. Write operations that must be
// atomic go through DecisionWriter instead.
type Store interface {
	CreateRequest(ctx context.Context, req *domain.Request) error
	GetRequest(ctx context.Context, tenantID, id string) (*domain.Request, error)
	ListActivePolicies(ctx context.Context, tenantID string, module domain.Module) ([]domain.ApprovalPolicy, error)

	// CreateSteps bulk-inserts steps. Implementations must be idempotent for
	// a given (entityType, entityID, levelOrder), skipping rows that already
	// exist, so a retried submission cannot duplicate a request's chain.
	CreateSteps(ctx context.Context, steps []domain.ApprovalStep) error
	GetStep(ctx context.Context, tenantID, id string) (*domain.ApprovalStep, error)
	ListSteps(ctx context.Context, tenantID string, entityType domain.Module, entityID string) ([]domain.ApprovalStep, error)

	// ListActiveSteps returns the lowest-ordered PENDING step of every
	// pending request in the tenant whose approver role is one of roles.
	ListActiveSteps(ctx context.Context, tenantID string, roles []domain.ApproverRole) ([]domain.ApprovalStep, error)

	ListActiveDelegations(ctx context.Context, tenantID string, at time.Time) ([]domain.Delegation, error)
}

// Directory answers role membership questions for a tenant.
type Directory interface {
	UsersWithRole(ctx context.Context, tenantID string, role domain.ApproverRole) ([]string, error)
	RolesOf(ctx context.Context, tenantID, userID string) ([]domain.ApproverRole, error)
}

// Decision is the fully authorized input handed to the DecisionWriter.
type Decision struct {
	TenantID string
	Step     domain.ApprovalStep
	Action   domain.DecisionAction
	ActorID  string
	Notes    *string
	At       time.Time
}

// DecisionResult reports what the atomic write did.
type DecisionResult struct {
	// Applied is false when the conditional update hit zero rows, meaning a
	// concurrent decision won the race.
	Applied bool

	// RequestStatus is the request's status after the write. It stays
	// PENDING_APPROVAL while further steps remain.
	RequestStatus domain.RequestStatus

	// NextStep is the newly active step after an approval, nil when the
	// request was finalized.
	NextStep *domain.ApprovalStep
}

// DecisionWriter applies decisions atomically. Implementations transition the
// step with a conditional update guarded on PENDING status, cascade
// skip/finalize effects, and void outstanding remote action tokens for the
// entity in the same transaction.
type DecisionWriter interface {
	Apply(ctx context.Context, dec Decision) (DecisionResult, error)

	// Cancel moves a pending request with no decided steps to CANCELLED,
	// skipping its pending steps. Returns false when the request already
	// progressed past the cancellable state.
	Cancel(ctx context.Context, tenantID, requestID string, at time.Time) (bool, error)
}

// Dispatcher hands workflow events to the notification layer. Calls are
// fire-and-forget from the engine's point of view: failures are logged and
// never affect approval state.
type Dispatcher interface {
	StepActivated(ctx context.Context, req *domain.Request, step domain.ApprovalStep) error
	RequestFinalized(ctx context.Context, req *domain.Request) error
}

// Engine coordinates policy matching, step sequencing, delegation-aware
// authorization, and decision processing.
type Engine struct {
	store      Store
	writer     DecisionWriter
	directory  Directory
	dispatcher Dispatcher
	now        func() time.Time
}

// NewEngine wires the engine. dispatcher may be nil when no notification
// channel is configured.
func NewEngine(store Store, writer DecisionWriter, directory Directory, dispatcher Dispatcher) *Engine {
	return &Engine{
		store:      store,
		writer:     writer,
		directory:  directory,
		dispatcher: dispatcher,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// SubmitInput is a request entering the workflow.
type SubmitInput struct {
	TenantID    string
	Module      domain.Module
	RequesterID string
	Title       string
	Days        *int
	Amount      *decimal.Decimal
}

// SubmitResult is the outcome of intake: the persisted request, its step
// chain, and the matched policy (nil when no policy applied and the request
// auto-approved).
type SubmitResult struct {
	Request *domain.Request
	Steps   []domain.ApprovalStep
	Policy  *domain.ApprovalPolicy
}

// Submit creates the request, matches a policy, and materializes its step
// chain. No matching policy is a valid outcome: the request is approved
// immediately without steps.
func (e *Engine) Submit(ctx context.Context, in SubmitInput) (*SubmitResult, error) {
	if err := validateSubmit(in); err != nil {
		return nil, err
	}

	now := e.now()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("generate request id: %w", err)
	}
	req := &domain.Request{
		ID:          id.String(),
		TenantID:    in.TenantID,
		Module:      in.Module,
		RequesterID: in.RequesterID,
		Title:       in.Title,
		Days:        in.Days,
		Amount:      in.Amount,
		Status:      domain.RequestPendingApproval,
		CreatedAt:   now,
	}
	metric, err := req.Metric()
	if err != nil {
		return nil, apperrors.BadRequest(apperrors.CodeValidationFailed, err.Error())
	}

	policies, err := e.store.ListActivePolicies(ctx, in.TenantID, in.Module)
	if err != nil {
		return nil, err
	}
	matched := policy.Match(policies, in.Module, metric)

	if matched == nil {
		req.Status = domain.RequestApproved
		req.DecidedAt = &now
		if err := e.store.CreateRequest(ctx, req); err != nil {
			return nil, err
		}
		metrics.RequestsSubmitted.WithLabelValues(string(in.Module), "auto_approved").Inc()
		logger.Info("request auto-approved, no policy matched",
			zap.String("request_id", req.ID),
			zap.String("module", string(req.Module)),
			zap.String("metric", metric.String()),
		)
		e.notifyFinalized(ctx, req)
		return &SubmitResult{Request: req}, nil
	}

	if err := e.store.CreateRequest(ctx, req); err != nil {
		return nil, err
	}
	steps, err := MaterializeSteps(matched, in.TenantID, in.Module, req.ID, now)
	if err != nil {
		return nil, err
	}
	if err := e.store.CreateSteps(ctx, steps); err != nil {
		return nil, err
	}

	metrics.RequestsSubmitted.WithLabelValues(string(in.Module), "matched").Inc()
	logger.Info("request entered approval workflow",
		zap.String("request_id", req.ID),
		zap.String("module", string(req.Module)),
		zap.String("policy_id", matched.ID),
		zap.Int("levels", len(steps)),
	)
	e.notifyStepActivated(ctx, req, steps[0])

	return &SubmitResult{Request: req, Steps: steps, Policy: matched}, nil
}

// ProcessInput is an approve/reject decision on one step.
type ProcessInput struct {
	TenantID string
	StepID   string
	Action   domain.DecisionAction
	ActorID  string
	Notes    *string
}

// Process records a decision on the request's active step.
//
// The step must be the lowest-ordered PENDING step of its request, and the
// actor must be the effective approver (after delegation resolution) for the
// step's role. The final state transition is a conditional update guarded on
// PENDING status, so a concurrent duplicate decision loses cleanly instead
// of double-applying.
func (e *Engine) Process(ctx context.Context, in ProcessInput) (*DecisionResult, error) {
	if err := validateProcess(in); err != nil {
		return nil, err
	}
	now := e.now()

	step, err := e.store.GetStep(ctx, in.TenantID, in.StepID)
	if err != nil {
		return nil, err
	}
	if step == nil {
		return nil, apperrors.ErrStepNotFoundf(in.StepID)
	}
	if step.Status != domain.StepPending {
		return nil, apperrors.ErrStepAlreadyDecidedf(string(step.Status))
	}

	siblings, err := e.store.ListSteps(ctx, in.TenantID, step.EntityType, step.EntityID)
	if err != nil {
		return nil, err
	}
	active := ActiveStep(siblings)
	if active == nil || active.ID != step.ID {
		return nil, apperrors.ErrStepNotActivef()
	}

	if err := e.authorize(ctx, in.TenantID, step, in.ActorID, now); err != nil {
		return nil, err
	}

	result, err := e.writer.Apply(ctx, Decision{
		TenantID: in.TenantID,
		Step:     *step,
		Action:   in.Action,
		ActorID:  in.ActorID,
		Notes:    in.Notes,
		At:       now,
	})
	if err != nil {
		return nil, err
	}
	if !result.Applied {
		// Someone else decided the step between our status check and the
		// conditional update.
		logger.Warn("step decision lost conditional update race",
			zap.String("step_id", step.ID),
			zap.String("entity_id", step.EntityID),
			zap.String("actor_id", in.ActorID),
		)
		return nil, apperrors.ErrStepAlreadyDecidedf(string(domain.StepPending))
	}

	metrics.Decisions.WithLabelValues(string(step.EntityType), string(in.Action)).Inc()
	logger.Info("approval step decided",
		zap.String("step_id", step.ID),
		zap.String("entity_type", string(step.EntityType)),
		zap.String("entity_id", step.EntityID),
		zap.String("action", string(in.Action)),
		zap.String("actor_id", in.ActorID),
		zap.Int("level", step.LevelOrder),
	)

	e.notifyAfterDecision(ctx, in.TenantID, step, result)
	return &result, nil
}

// Cancel lets the requester withdraw a request before any step is decided.
func (e *Engine) Cancel(ctx context.Context, tenantID, requestID, actorID string) error {
	req, err := e.store.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return err
	}
	if req == nil {
		return apperrors.NotFound(apperrors.CodeRequestNotFound, "request not found")
	}
	if req.RequesterID != actorID {
		return apperrors.Forbidden(apperrors.CodePermissionDenied, "only the requester may cancel a request")
	}

	ok, err := e.writer.Cancel(ctx, tenantID, requestID, e.now())
	if err != nil {
		return err
	}
	if !ok {
		return apperrors.Conflict(apperrors.CodeStepAlreadyDecided, "request can no longer be cancelled")
	}

	logger.Info("request cancelled by requester",
		zap.String("request_id", requestID),
		zap.String("requester_id", actorID),
	)
	req.Status = domain.RequestCancelled
	e.notifyFinalized(ctx, req)
	return nil
}

// History returns a request together with its full step trail.
func (e *Engine) History(ctx context.Context, tenantID string, module domain.Module, requestID string) (*domain.Request, []domain.ApprovalStep, error) {
	req, err := e.store.GetRequest(ctx, tenantID, requestID)
	if err != nil {
		return nil, nil, err
	}
	if req == nil {
		return nil, nil, apperrors.NotFound(apperrors.CodeRequestNotFound, "request not found")
	}
	steps, err := e.store.ListSteps(ctx, tenantID, module, requestID)
	if err != nil {
		return nil, nil, err
	}
	return req, steps, nil
}

// PendingApproval is one item in an approver's inbox.
type PendingApproval struct {
	Step     domain.ApprovalStep `json:"step"`
	Request  domain.Request      `json:"request"`
	Priority string              `json:"priority"`
}

// PendingApprovals lists the active steps a user can currently decide,
// covering both the user's own roles and roles delegated to them. A role the
// user has delegated away is excluded for the delegation window.
func (e *Engine) PendingApprovals(ctx context.Context, tenantID, userID string) ([]PendingApproval, error) {
	now := e.now()
	delegations, err := e.store.ListActiveDelegations(ctx, tenantID, now)
	if err != nil {
		return nil, err
	}

	roleSet := make(map[domain.ApproverRole]bool)
	if ResolveApprover(delegations, userID, now) == userID {
		own, err := e.directory.RolesOf(ctx, tenantID, userID)
		if err != nil {
			return nil, err
		}
		for _, r := range own {
			roleSet[r] = true
		}
	}
	for _, d := range delegations {
		if d.DelegateeID != userID || ResolveApprover(delegations, d.DelegatorID, now) != userID {
			continue
		}
		delegated, err := e.directory.RolesOf(ctx, tenantID, d.DelegatorID)
		if err != nil {
			return nil, err
		}
		for _, r := range delegated {
			roleSet[r] = true
		}
	}
	if len(roleSet) == 0 {
		return []PendingApproval{}, nil
	}

	roles := make([]domain.ApproverRole, 0, len(roleSet))
	for r := range roleSet {
		roles = append(roles, r)
	}
	steps, err := e.store.ListActiveSteps(ctx, tenantID, roles)
	if err != nil {
		return nil, err
	}

	items := make([]PendingApproval, 0, len(steps))
	for _, s := range steps {
		req, err := e.store.GetRequest(ctx, tenantID, s.EntityID)
		if err != nil {
			return nil, err
		}
		if req == nil || req.Status != domain.RequestPendingApproval {
			continue
		}
		items = append(items, PendingApproval{
			Step:     s,
			Request:  *req,
			Priority: domain.PriorityTier(req.CreatedAt),
		})
	}
	return items, nil
}

// authorize checks that actorID is the effective approver for the step's
// role at the given instant.
func (e *Engine) authorize(ctx context.Context, tenantID string, step *domain.ApprovalStep, actorID string, at time.Time) error {
	holders, err := e.directory.UsersWithRole(ctx, tenantID, step.ApproverRole)
	if err != nil {
		return err
	}
	delegations, err := e.store.ListActiveDelegations(ctx, tenantID, at)
	if err != nil {
		return err
	}
	for _, holder := range holders {
		if ResolveApprover(delegations, holder, at) == actorID {
			return nil
		}
	}
	return apperrors.ErrApproverMismatchf()
}

func (e *Engine) notifyAfterDecision(ctx context.Context, tenantID string, step *domain.ApprovalStep, result DecisionResult) {
	if e.dispatcher == nil {
		return
	}
	req, err := e.store.GetRequest(ctx, tenantID, step.EntityID)
	if err != nil || req == nil {
		logger.Warn("skipping post-decision notification, request lookup failed",
			zap.String("entity_id", step.EntityID), zap.Error(err))
		return
	}
	if result.NextStep != nil {
		e.notifyStepActivated(ctx, req, *result.NextStep)
		return
	}
	e.notifyFinalized(ctx, req)
}

func (e *Engine) notifyStepActivated(ctx context.Context, req *domain.Request, step domain.ApprovalStep) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.StepActivated(ctx, req, step); err != nil {
		logger.Error("failed to dispatch step notification",
			zap.String("request_id", req.ID),
			zap.String("step_id", step.ID),
			zap.Error(err),
		)
	}
}

func (e *Engine) notifyFinalized(ctx context.Context, req *domain.Request) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.RequestFinalized(ctx, req); err != nil {
		logger.Error("failed to dispatch outcome notification",
			zap.String("request_id", req.ID),
			zap.Error(err),
		)
	}
}

func validateSubmit(in SubmitInput) error {
	var fields []apperrors.FieldError
	if !in.Module.Valid() {
		fields = append(fields, apperrors.FieldError{Field: "module", Code: apperrors.CodeInvalidRequestField, Message: "unknown module"})
	}
	if in.TenantID == "" {
		fields = append(fields, apperrors.FieldError{Field: "tenantId", Code: apperrors.CodeInvalidRequestField, Message: "required"})
	}
	if in.RequesterID == "" {
		fields = append(fields, apperrors.FieldError{Field: "requesterId", Code: apperrors.CodeInvalidRequestField, Message: "required"})
	}
	if in.Title == "" {
		fields = append(fields, apperrors.FieldError{Field: "title", Code: apperrors.CodeInvalidRequestField, Message: "required"})
	}
	if in.Module.Valid() {
		if in.Module.UsesDays() {
			if in.Days == nil || *in.Days <= 0 {
				fields = append(fields, apperrors.FieldError{Field: "days", Code: apperrors.CodeInvalidRequestField, Message: "must be a positive day count"})
			}
		} else if in.Amount == nil || in.Amount.Sign() <= 0 {
			fields = append(fields, apperrors.FieldError{Field: "amount", Code: apperrors.CodeInvalidRequestField, Message: "must be a positive amount"})
		}
	}
	if len(fields) > 0 {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid submission").WithFieldErrors(fields)
	}
	return nil
}

func validateProcess(in ProcessInput) error {
	var fields []apperrors.FieldError
	if in.StepID == "" {
		fields = append(fields, apperrors.FieldError{Field: "stepId", Code: apperrors.CodeInvalidRequestField, Message: "required"})
	}
	if !in.Action.Valid() {
		fields = append(fields, apperrors.FieldError{Field: "action", Code: apperrors.CodeInvalidRequestField, Message: "must be APPROVE or REJECT"})
	}
	if in.ActorID == "" {
		fields = append(fields, apperrors.FieldError{Field: "actorId", Code: apperrors.CodeInvalidRequestField, Message: "required"})
	}
	if in.Notes != nil && len(*in.Notes) > MaxNotesLength {
		fields = append(fields, apperrors.FieldError{Field: "notes", Code: apperrors.CodeInvalidRequestField, Message: "must be at most 500 characters"})
	}
	if len(fields) > 0 {
		return apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid decision").WithFieldErrors(fields)
	}
	return nil
}
