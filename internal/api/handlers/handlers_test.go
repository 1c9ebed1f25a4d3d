package handlers

// End-to-end handler tests against a real PostgreSQL schema. Skipped unless
// TEST_DATABASE_URL or DATABASE_URL is set.

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mohammedrameesp/smepp-approvals/internal/api/middleware"
	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/cache"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/repository"
	"github.com/mohammedrameesp/smepp-approvals/internal/testutil"
	"github.com/mohammedrameesp/smepp-approvals/internal/token"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error", "json")
}

const testTenant = "t-1"

type apiHarness struct {
	router  *gin.Engine
	jwtCfg  middleware.JWTConfig
	store   *repository.Store
	members *repository.MemberRepo
	tokens  *token.Service
}

func newAPIHarness(t *testing.T) *apiHarness {
	t.Helper()
	pool := testutil.OpenPGXPool(t, "handlers")
	ctx := context.Background()
	require.NoError(t, repository.Migrate(ctx, pool))

	store := repository.NewStore(pool)
	members := repository.NewMemberRepo(pool)
	tokens := token.NewService([]byte("handler-test-secret-1234567890ab"), time.Hour, token.NewPostgresStore(pool))
	engine := approval.NewEngine(store, store.StepRepo, members, nil)

	srv := NewServer(engine, store, tokens, cache.NewMemoryStore(), pool)
	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte("jwt-test-key-123456789012345678901"),
		Issuer:     "smepp-approvals",
		ExpiresIn:  time.Hour,
	}

	router := gin.New()
	router.Use(middleware.RequestID(), middleware.ErrorHandler())

	public := router.Group("/")
	public.GET("/healthz", srv.Healthz)
	public.GET("/remote-actions/:token", srv.ValidateRemoteAction)
	public.POST("/remote-actions/:token", srv.RedeemRemoteAction)

	api := router.Group("/api/v1", middleware.JWTAuth(jwtCfg))
	api.POST("/requests", srv.SubmitRequest)
	api.GET("/requests", srv.ListMyRequests)
	api.GET("/requests/:module/:id", srv.GetRequestHistory)
	api.POST("/requests/:module/:id/cancel", srv.CancelRequest)
	api.POST("/steps/:id/decision", srv.DecideStep)
	api.GET("/approvals/pending", srv.PendingApprovals)

	policies := api.Group("/policies", middleware.RequireCapability(middleware.CapabilityManagePolicies))
	policies.POST("", srv.CreatePolicy)
	policies.GET("", srv.ListPolicies)

	delegations := api.Group("/delegations", middleware.RequireCapability(middleware.CapabilityManageDelegations))
	delegations.POST("", srv.CreateDelegation)
	delegations.GET("", srv.ListDelegations)
	delegations.DELETE("/:id", srv.DeactivateDelegation)

	return &apiHarness{router: router, jwtCfg: jwtCfg, store: store, members: members, tokens: tokens}
}

func (h *apiHarness) bearer(t *testing.T, userID string, roles ...string) string {
	t.Helper()
	tok, _, err := middleware.GenerateToken(h.jwtCfg, userID, testTenant, userID, roles)
	require.NoError(t, err)
	return "Bearer " + tok
}

func (h *apiHarness) do(t *testing.T, method, path, auth string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func (h *apiHarness) seedMember(t *testing.T, id string, role *domain.ApproverRole) {
	t.Helper()
	require.NoError(t, h.members.Upsert(context.Background(), &repository.Member{
		ID: id, TenantID: testTenant, Name: id, Role: role,
	}))
}

func (h *apiHarness) seedLeavePolicy(t *testing.T) {
	t.Helper()
	id, err := uuid.NewV7()
	require.NoError(t, err)
	minDays, maxDays := 1, 30
	require.NoError(t, h.store.PolicyRepo.Create(context.Background(), &domain.ApprovalPolicy{
		ID:       id.String(),
		TenantID: testTenant,
		Name:     "standard leave",
		Module:   domain.ModuleLeaveRequest,
		IsActive: true,
		Priority: 1,
		MinDays:  &minDays,
		MaxDays:  &maxDays,
		Levels: []domain.ApprovalLevel{
			{LevelOrder: 1, ApproverRole: domain.RoleManager},
			{LevelOrder: 2, ApproverRole: domain.RoleHRManager},
		},
		CreatedAt: time.Now().UTC(),
	}))
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), "body: %s", w.Body.String())
	return out
}

func TestSubmitDecideFlow(t *testing.T) {
	h := newAPIHarness(t)
	mgr, hr := domain.RoleManager, domain.RoleHRManager
	h.seedMember(t, "alice", nil)
	h.seedMember(t, "mona", &mgr)
	h.seedMember(t, "hana", &hr)
	h.seedLeavePolicy(t)

	w := h.do(t, http.MethodPost, "/api/v1/requests", h.bearer(t, "alice"), gin.H{
		"module": "LEAVE_REQUEST", "title": "annual leave", "days": 5,
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	body := decodeBody(t, w)
	reqID := body["request"].(map[string]any)["id"].(string)
	steps := body["steps"].([]any)
	require.Len(t, steps, 2)
	stepID := steps[0].(map[string]any)["id"].(string)

	// The manager sees it in the inbox.
	w = h.do(t, http.MethodGet, "/api/v1/approvals/pending", h.bearer(t, "mona", "MANAGER"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), reqID)

	// The HR manager must not decide level 1.
	w = h.do(t, http.MethodPost, "/api/v1/steps/"+stepID+"/decision", h.bearer(t, "hana", "HR_MANAGER"), gin.H{
		"action": "APPROVE",
	})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// The manager approves, advancing to level 2.
	w = h.do(t, http.MethodPost, "/api/v1/steps/"+stepID+"/decision", h.bearer(t, "mona", "MANAGER"), gin.H{
		"action": "APPROVE",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decodeBody(t, w)
	assert.Equal(t, "PENDING_APPROVAL", body["requestStatus"])
	next := body["nextStep"].(map[string]any)
	assert.Equal(t, float64(2), next["levelOrder"])

	// A second decision on the same step conflicts.
	w = h.do(t, http.MethodPost, "/api/v1/steps/"+stepID+"/decision", h.bearer(t, "mona", "MANAGER"), gin.H{
		"action": "APPROVE",
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// HR approves the final level.
	w = h.do(t, http.MethodPost, "/api/v1/steps/"+next["id"].(string)+"/decision", h.bearer(t, "hana", "HR_MANAGER"), gin.H{
		"action": "APPROVE", "notes": "enjoy",
	})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body = decodeBody(t, w)
	assert.Equal(t, "APPROVED", body["requestStatus"])

	// Full history shows the decided trail.
	w = h.do(t, http.MethodGet, "/api/v1/requests/LEAVE_REQUEST/"+reqID, h.bearer(t, "alice"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"APPROVED"`)
	assert.Contains(t, w.Body.String(), "enjoy")
}

func TestSubmitValidationErrors(t *testing.T) {
	h := newAPIHarness(t)

	w := h.do(t, http.MethodPost, "/api/v1/requests", h.bearer(t, "alice"), gin.H{
		"module": "LEAVE_REQUEST", "title": "broken",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "field_errors")
	assert.Contains(t, w.Body.String(), `"days"`)

	w = h.do(t, http.MethodPost, "/api/v1/requests", "", gin.H{"module": "LEAVE_REQUEST"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRemoteRedemption(t *testing.T) {
	h := newAPIHarness(t)
	mgr := domain.RoleManager
	h.seedMember(t, "alice", nil)
	h.seedMember(t, "mona", &mgr)
	h.seedLeavePolicy(t)

	w := h.do(t, http.MethodPost, "/api/v1/requests", h.bearer(t, "alice"), gin.H{
		"module": "LEAVE_REQUEST", "title": "annual leave", "days": 3,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	reqID := decodeBody(t, w)["request"].(map[string]any)["id"].(string)

	pair, err := h.tokens.IssuePair(context.Background(), testTenant, domain.ModuleLeaveRequest, reqID, "mona", 0)
	require.NoError(t, err)

	// Read-only validation leaves the token redeemable.
	w = h.do(t, http.MethodGet, "/remote-actions/"+pair.Approve, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":true`)

	w = h.do(t, http.MethodPost, "/remote-actions/"+pair.Approve, "", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	body := decodeBody(t, w)
	assert.Equal(t, true, body["valid"])
	assert.Equal(t, "APPROVE", body["action"])

	// The paired reject token was voided by the decision.
	w = h.do(t, http.MethodPost, "/remote-actions/"+pair.Reject, "", nil)
	require.Equal(t, http.StatusConflict, w.Code)
	body = decodeBody(t, w)
	assert.Equal(t, false, body["valid"])
	assert.Equal(t, "TOKEN_ALREADY_USED", body["error"].(map[string]any)["code"])

	// Garbage tokens get the envelope, not a bare error.
	w = h.do(t, http.MethodPost, "/remote-actions/not-a-token", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"valid":false`)
}

func TestPolicyAdminGuard(t *testing.T) {
	h := newAPIHarness(t)

	policyJSON := gin.H{
		"name": "small purchases", "module": "PURCHASE_REQUEST", "priority": 1,
		"minAmount": "0", "maxAmount": "1000",
		"levels": []gin.H{{"levelOrder": 1, "approverRole": "FINANCE_MANAGER"}},
	}

	w := h.do(t, http.MethodPost, "/api/v1/policies", h.bearer(t, "mona", "MANAGER"), policyJSON)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/policies", h.bearer(t, "hana", "HR_MANAGER"), policyJSON)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	// Duplicate level orders are rejected before any write.
	bad := gin.H{
		"name": "broken", "module": "PURCHASE_REQUEST", "priority": 1,
		"levels": []gin.H{
			{"levelOrder": 1, "approverRole": "FINANCE_MANAGER"},
			{"levelOrder": 1, "approverRole": "DIRECTOR"},
		},
	}
	w = h.do(t, http.MethodPost, "/api/v1/policies", h.bearer(t, "hana", "HR_MANAGER"), bad)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(t, http.MethodGet, "/api/v1/policies?module=PURCHASE_REQUEST", h.bearer(t, "hana", "HR_MANAGER"), nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "small purchases")
}

func TestDelegationEndpoints(t *testing.T) {
	h := newAPIHarness(t)
	now := time.Now().UTC()

	create := gin.H{
		"delegateeId": "dina",
		"startDate":   now.Format(time.RFC3339),
		"endDate":     now.Add(48 * time.Hour).Format(time.RFC3339),
	}
	w := h.do(t, http.MethodPost, "/api/v1/delegations", h.bearer(t, "mona", "MANAGER"), create)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	delegationID := decodeBody(t, w)["id"].(string)

	// Overlapping window for the same delegator conflicts.
	w = h.do(t, http.MethodPost, "/api/v1/delegations", h.bearer(t, "mona", "MANAGER"), gin.H{
		"delegateeId": "omar",
		"startDate":   now.Add(24 * time.Hour).Format(time.RFC3339),
		"endDate":     now.Add(72 * time.Hour).Format(time.RFC3339),
	})
	assert.Equal(t, http.StatusConflict, w.Code)

	// Only the delegator may deactivate.
	w = h.do(t, http.MethodDelete, "/api/v1/delegations/"+delegationID, h.bearer(t, "dina", "MANAGER"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodDelete, "/api/v1/delegations/"+delegationID, h.bearer(t, "mona", "MANAGER"), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestCancelRequest(t *testing.T) {
	h := newAPIHarness(t)
	mgr := domain.RoleManager
	h.seedMember(t, "alice", nil)
	h.seedMember(t, "mona", &mgr)
	h.seedLeavePolicy(t)

	w := h.do(t, http.MethodPost, "/api/v1/requests", h.bearer(t, "alice"), gin.H{
		"module": "LEAVE_REQUEST", "title": "annual leave", "days": 2,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	reqID := decodeBody(t, w)["request"].(map[string]any)["id"].(string)

	// Someone else cannot cancel.
	w = h.do(t, http.MethodPost, "/api/v1/requests/LEAVE_REQUEST/"+reqID+"/cancel", h.bearer(t, "mona", "MANAGER"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = h.do(t, http.MethodPost, "/api/v1/requests/LEAVE_REQUEST/"+reqID+"/cancel", h.bearer(t, "alice"), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}
