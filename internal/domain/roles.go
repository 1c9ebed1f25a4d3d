package domain

// Capabilities is the static capability set of an approver role. Modelled as
// a struct lookup rather than a string-keyed permission table so the compiler
// catches a role added without capabilities.
type Capabilities struct {
	ApproveLeave      bool
	ApprovePurchase   bool
	ApproveAsset      bool
	ManagePolicies    bool
	ManageDelegations bool
}

var roleCapabilities = map[ApproverRole]Capabilities{
	RoleManager: {
		ApproveLeave:      true,
		ApprovePurchase:   true,
		ApproveAsset:      true,
		ManageDelegations: true,
	},
	RoleHRManager: {
		ApproveLeave:      true,
		ManagePolicies:    true,
		ManageDelegations: true,
	},
	RoleFinanceManager: {
		ApprovePurchase:   true,
		ApproveAsset:      true,
		ManageDelegations: true,
	},
	RoleDirector: {
		ApproveLeave:      true,
		ApprovePurchase:   true,
		ApproveAsset:      true,
		ManagePolicies:    true,
		ManageDelegations: true,
	},
}

// Capabilities returns the capability set for the role. Unknown roles get the
// zero set.
func (r ApproverRole) Capabilities() Capabilities {
	return roleCapabilities[r]
}

// CanApprove reports whether the role may decide steps of the given module.
func (r ApproverRole) CanApprove(m Module) bool {
	caps := r.Capabilities()
	switch m {
	case ModuleLeaveRequest:
		return caps.ApproveLeave
	case ModulePurchaseRequest:
		return caps.ApprovePurchase
	case ModuleAssetRequest:
		return caps.ApproveAsset
	}
	return false
}
