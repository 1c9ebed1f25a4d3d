package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func intp(v int) *int { return &v }

func decp(s string) *decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &d
}

func TestPolicyContainsInclusiveBounds(t *testing.T) {
	p := &ApprovalPolicy{
		Module:  ModuleLeaveRequest,
		MinDays: intp(5),
		MaxDays: intp(30),
	}

	cases := []struct {
		days int64
		want bool
	}{
		{4, false},
		{5, true}, // lower bound inclusive
		{10, true},
		{30, true}, // upper bound inclusive
		{31, false},
	}
	for _, tc := range cases {
		got := p.Contains(decimal.NewFromInt(tc.days))
		if got != tc.want {
			t.Errorf("Contains(%d) = %v, want %v", tc.days, got, tc.want)
		}
	}
}

func TestPolicyContainsOpenBounds(t *testing.T) {
	catchAll := &ApprovalPolicy{Module: ModulePurchaseRequest}
	if !catchAll.Contains(decimal.NewFromInt(0)) || !catchAll.Contains(decimal.NewFromInt(1_000_000)) {
		t.Error("policy without bounds must match everything")
	}

	minOnly := &ApprovalPolicy{Module: ModulePurchaseRequest, MinAmount: decp("1000.50")}
	if minOnly.Contains(decimal.NewFromInt(1000)) {
		t.Error("metric below min must not match")
	}
	if !minOnly.Contains(decimal.NewFromInt(999999)) {
		t.Error("metric above min with open max must match")
	}
}

func TestDelegationActiveAtHalfOpenWindow(t *testing.T) {
	start := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)
	d := Delegation{StartDate: start, EndDate: end, IsActive: true}

	if d.ActiveAt(start.Add(-time.Second)) {
		t.Error("before start must be inactive")
	}
	if !d.ActiveAt(start) {
		t.Error("start instant must be active")
	}
	if !d.ActiveAt(end.Add(-time.Second)) {
		t.Error("just before end must be active")
	}
	if d.ActiveAt(end) {
		t.Error("end instant must be inactive (half-open window)")
	}

	d.IsActive = false
	if d.ActiveAt(start) {
		t.Error("deactivated delegation must never be active")
	}
}

func TestRequestMetric(t *testing.T) {
	leave := &Request{ID: "r1", Module: ModuleLeaveRequest, Days: intp(10)}
	m, err := leave.Metric()
	if err != nil {
		t.Fatalf("Metric: %v", err)
	}
	if !m.Equal(decimal.NewFromInt(10)) {
		t.Errorf("leave metric = %s, want 10", m)
	}

	purchase := &Request{ID: "r2", Module: ModulePurchaseRequest, Amount: decp("2500.75")}
	m, err = purchase.Metric()
	if err != nil {
		t.Fatalf("Metric: %v", err)
	}
	if m.String() != "2500.75" {
		t.Errorf("purchase metric = %s, want 2500.75", m)
	}

	broken := &Request{ID: "r3", Module: ModuleLeaveRequest}
	if _, err := broken.Metric(); err == nil {
		t.Error("leave request without days should error")
	}
}

func TestRoleCapabilitiesExhaustive(t *testing.T) {
	roles := []ApproverRole{RoleManager, RoleHRManager, RoleFinanceManager, RoleDirector}
	for _, r := range roles {
		caps := r.Capabilities()
		if caps == (Capabilities{}) {
			t.Errorf("role %s has no capabilities configured", r)
		}
	}
	if (ApproverRole("INTERN").Capabilities() != Capabilities{}) {
		t.Error("unknown role must have the zero capability set")
	}
}

func TestRoleCanApprove(t *testing.T) {
	if !RoleHRManager.CanApprove(ModuleLeaveRequest) {
		t.Error("HR manager should approve leave")
	}
	if RoleHRManager.CanApprove(ModulePurchaseRequest) {
		t.Error("HR manager should not approve purchases")
	}
	if !RoleFinanceManager.CanApprove(ModuleAssetRequest) {
		t.Error("finance manager should approve asset requests")
	}
	for _, m := range Modules {
		if !RoleDirector.CanApprove(m) {
			t.Errorf("director should approve %s", m)
		}
	}
}

func TestParseModule(t *testing.T) {
	if _, err := ParseModule("LEAVE_REQUEST"); err != nil {
		t.Errorf("ParseModule(LEAVE_REQUEST): %v", err)
	}
	if _, err := ParseModule("EXPENSE_REQUEST"); err == nil {
		t.Error("ParseModule should reject unknown modules")
	}
}
