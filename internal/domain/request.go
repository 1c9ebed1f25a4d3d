package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a leave/purchase/asset request.
type RequestStatus string

// Request lifecycle states.
const (
	RequestPendingApproval RequestStatus = "PENDING_APPROVAL"
	RequestApproved        RequestStatus = "APPROVED"
	RequestRejected        RequestStatus = "REJECTED"
	RequestCancelled       RequestStatus = "CANCELLED"
)

// Request is the workflow-facing view of a back-office request. Module-specific
// detail (leave dates, purchase line items) lives with the owning module; the
// engine only needs the quantitative metric and lifecycle status.
type Request struct {
	ID          string           `json:"id"`
	TenantID    string           `json:"tenantId"`
	Module      Module           `json:"module"`
	RequesterID string           `json:"requesterId"`
	Title       string           `json:"title"`
	Days        *int             `json:"days,omitempty"`
	Amount      *decimal.Decimal `json:"amount,omitempty"`
	Status      RequestStatus    `json:"status"`
	CreatedAt   time.Time        `json:"createdAt"`
	DecidedAt   *time.Time       `json:"decidedAt,omitempty"`
}

// Metric returns the policy-matching metric for the request: days for leave,
// amount for purchase/asset.
func (r *Request) Metric() (decimal.Decimal, error) {
	if r.Module.UsesDays() {
		if r.Days == nil {
			return decimal.Decimal{}, fmt.Errorf("leave request %s has no day count", r.ID)
		}
		return decimal.NewFromInt(int64(*r.Days)), nil
	}
	if r.Amount == nil {
		return decimal.Decimal{}, fmt.Errorf("%s request %s has no amount", r.Module, r.ID)
	}
	return *r.Amount, nil
}
