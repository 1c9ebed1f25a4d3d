// Package domain holds the core entities of the approval workflow engine.
package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Module identifies which request type a policy or step belongs to.
type Module string

// Request modules covered by the workflow engine.
const (
	ModuleLeaveRequest    Module = "LEAVE_REQUEST"
	ModulePurchaseRequest Module = "PURCHASE_REQUEST"
	ModuleAssetRequest    Module = "ASSET_REQUEST"
)

// Modules lists all known modules.
var Modules = []Module{ModuleLeaveRequest, ModulePurchaseRequest, ModuleAssetRequest}

// Valid reports whether m is a known module.
func (m Module) Valid() bool {
	switch m {
	case ModuleLeaveRequest, ModulePurchaseRequest, ModuleAssetRequest:
		return true
	}
	return false
}

// UsesDays reports whether the module's policy range is expressed in days
// rather than a money amount.
func (m Module) UsesDays() bool { return m == ModuleLeaveRequest }

// ParseModule converts a string into a Module.
func ParseModule(s string) (Module, error) {
	m := Module(s)
	if !m.Valid() {
		return "", fmt.Errorf("unknown module %q", s)
	}
	return m, nil
}

// ApproverRole is the role bound to an approval level.
type ApproverRole string

// Approver roles configurable on policy levels.
const (
	RoleManager        ApproverRole = "MANAGER"
	RoleHRManager      ApproverRole = "HR_MANAGER"
	RoleFinanceManager ApproverRole = "FINANCE_MANAGER"
	RoleDirector       ApproverRole = "DIRECTOR"
)

// Valid reports whether r is a known approver role.
func (r ApproverRole) Valid() bool {
	switch r {
	case RoleManager, RoleHRManager, RoleFinanceManager, RoleDirector:
		return true
	}
	return false
}

// StepStatus is the decision state of one approval step.
type StepStatus string

// Step statuses. A step is "active" when it is the lowest-ordered PENDING
// step of its request; active is derived, never stored.
const (
	StepPending  StepStatus = "PENDING"
	StepApproved StepStatus = "APPROVED"
	StepRejected StepStatus = "REJECTED"
	StepSkipped  StepStatus = "SKIPPED"
)

// DecisionAction is an approve/reject decision input.
type DecisionAction string

// Decision actions.
const (
	ActionApprove DecisionAction = "APPROVE"
	ActionReject  DecisionAction = "REJECT"
)

// Valid reports whether a is a known decision action.
func (a DecisionAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

// MaxLevels caps the number of levels a policy may configure.
const MaxLevels = 5

// ApprovalLevel is one stage in a policy's approval chain.
type ApprovalLevel struct {
	LevelOrder   int          `json:"levelOrder"`
	ApproverRole ApproverRole `json:"approverRole"`
}

// ApprovalPolicy maps a module and magnitude range to an ordered approval chain.
// Leave policies use day bounds; purchase/asset policies use amount bounds.
// A nil bound is unbounded on that side.
type ApprovalPolicy struct {
	ID        string           `json:"id"`
	TenantID  string           `json:"tenantId"`
	Name      string           `json:"name"`
	Module    Module           `json:"module"`
	IsActive  bool             `json:"isActive"`
	Priority  int              `json:"priority"`
	MinDays   *int             `json:"minDays,omitempty"`
	MaxDays   *int             `json:"maxDays,omitempty"`
	MinAmount *decimal.Decimal `json:"minAmount,omitempty"`
	MaxAmount *decimal.Decimal `json:"maxAmount,omitempty"`
	Levels    []ApprovalLevel  `json:"levels"`
	CreatedAt time.Time        `json:"createdAt"`
}

// Bounds normalizes the policy's range into decimal bounds, regardless of
// whether the module measures days or money.
func (p *ApprovalPolicy) Bounds() (min, max *decimal.Decimal) {
	if p.Module.UsesDays() {
		if p.MinDays != nil {
			v := decimal.NewFromInt(int64(*p.MinDays))
			min = &v
		}
		if p.MaxDays != nil {
			v := decimal.NewFromInt(int64(*p.MaxDays))
			max = &v
		}
		return min, max
	}
	return p.MinAmount, p.MaxAmount
}

// Contains reports whether metric falls inside the policy range.
// Both bounds are inclusive; a missing bound is unbounded.
func (p *ApprovalPolicy) Contains(metric decimal.Decimal) bool {
	min, max := p.Bounds()
	if min != nil && metric.Cmp(*min) < 0 {
		return false
	}
	if max != nil && metric.Cmp(*max) > 0 {
		return false
	}
	return true
}

// ApprovalStep is the per-request instantiation of a policy level.
// Steps are never deleted; they form the audit trail of the decision.
type ApprovalStep struct {
	ID           string       `json:"id"`
	TenantID     string       `json:"tenantId"`
	EntityType   Module       `json:"entityType"`
	EntityID     string       `json:"entityId"`
	LevelOrder   int          `json:"levelOrder"`
	ApproverRole ApproverRole `json:"approverRole"`
	Status       StepStatus   `json:"status"`
	ResolvedByID *string      `json:"resolvedById,omitempty"`
	ResolvedAt   *time.Time   `json:"resolvedAt,omitempty"`
	Notes        *string      `json:"notes,omitempty"`
	CreatedAt    time.Time    `json:"createdAt"`
}

// Delegation is a time-bounded substitution of one approver for another.
// Delegations are not transitive: a delegatee's own delegations never chain.
type Delegation struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenantId"`
	DelegatorID string    `json:"delegatorId"`
	DelegateeID string    `json:"delegateeId"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	IsActive    bool      `json:"isActive"`
	Reason      *string   `json:"reason,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
}

// ActiveAt reports whether the delegation is in effect at t.
// The window is half-open: [StartDate, EndDate).
func (d Delegation) ActiveAt(t time.Time) bool {
	return d.IsActive && !t.Before(d.StartDate) && t.Before(d.EndDate)
}

// RemoteActionToken is a single-use signed credential allowing a decision to
// be made from outside the authenticated application (chat message buttons).
type RemoteActionToken struct {
	ID         string         `json:"id"`
	TenantID   string         `json:"tenantId"`
	EntityType Module         `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     DecisionAction `json:"action"`
	ApproverID string         `json:"approverId"`
	ExpiresAt  time.Time      `json:"expiresAt"`
	Used       bool           `json:"used"`
	UsedAt     *time.Time     `json:"usedAt,omitempty"`
	CreatedAt  time.Time      `json:"createdAt"`
}

// PriorityTier calculates an urgency tier based on pending duration, used by
// approver inbox views.
func PriorityTier(createdAt time.Time) string {
	days := int(time.Since(createdAt).Hours() / 24)
	switch {
	case days >= 7:
		return "urgent"
	case days >= 4:
		return "warning"
	default:
		return "normal"
	}
}
