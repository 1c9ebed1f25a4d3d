package notification

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/worker"
)

// Triggers formats workflow messages and hands them to the sender on the
// messaging pool. Send failures are logged and swallowed; approval state
// never depends on delivery.
type Triggers struct {
	sender Sender
	pools  *worker.Pools
}

// NewTriggers creates the trigger set.
func NewTriggers(sender Sender, pools *worker.Pools) *Triggers {
	return &Triggers{sender: sender, pools: pools}
}

// ApproverPrompt messages an effective approver about a step awaiting their
// decision, with one-tap approve/reject buttons.
func (t *Triggers) ApproverPrompt(phone, requesterName string, req *domain.Request, step domain.ApprovalStep, approveURL, rejectURL string) {
	body := fmt.Sprintf("%s submitted %s %q (%s). Level %d approval (%s) is waiting on you.",
		requesterName, moduleLabel(req.Module), req.Title, metricLabel(req), step.LevelOrder, roleLabel(step.ApproverRole))

	t.dispatch(Message{
		Phone:    phone,
		Template: TemplateApprovalPrompt,
		Body:     body,
		Buttons: []Button{
			{Label: "Approve", URL: approveURL},
			{Label: "Reject", URL: rejectURL},
		},
	})
}

// RequesterOutcome messages the requester about a finalized request.
func (t *Triggers) RequesterOutcome(phone string, req *domain.Request) {
	body := fmt.Sprintf("Your %s %q is %s.", moduleLabel(req.Module), req.Title, strings.ToLower(string(req.Status)))
	t.dispatch(Message{
		Phone:    phone,
		Template: TemplateApprovalOutcome,
		Body:     body,
	})
}

func (t *Triggers) dispatch(msg Message) {
	err := t.pools.SubmitDetached("messaging", func(ctx context.Context) {
		if err := t.sender.Send(ctx, msg); err != nil {
			logger.Error("outbound message failed",
				zap.String("template", msg.Template),
				zap.String("phone", maskPhone(msg.Phone)),
				zap.Error(err),
			)
		}
	})
	if err != nil {
		logger.Error("could not queue outbound message",
			zap.String("template", msg.Template),
			zap.Error(err),
		)
	}
}

func moduleLabel(m domain.Module) string {
	switch m {
	case domain.ModuleLeaveRequest:
		return "leave request"
	case domain.ModulePurchaseRequest:
		return "purchase request"
	case domain.ModuleAssetRequest:
		return "asset request"
	default:
		return strings.ToLower(string(m))
	}
}

func roleLabel(r domain.ApproverRole) string {
	return strings.ReplaceAll(strings.ToLower(string(r)), "_", " ")
}

func metricLabel(req *domain.Request) string {
	if req.Module.UsesDays() && req.Days != nil {
		if *req.Days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", *req.Days)
	}
	if req.Amount != nil {
		return "amount " + req.Amount.StringFixed(2)
	}
	return "no metric"
}
