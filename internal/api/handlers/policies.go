package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/mohammedrameesp/smepp-approvals/internal/api/middleware"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
	"github.com/mohammedrameesp/smepp-approvals/internal/policy"
)

type policyLevelBody struct {
	LevelOrder   int    `json:"levelOrder" binding:"required"`
	ApproverRole string `json:"approverRole" binding:"required"`
}

type policyBody struct {
	Name      string            `json:"name" binding:"required"`
	Module    string            `json:"module" binding:"required"`
	IsActive  *bool             `json:"isActive"`
	Priority  int               `json:"priority"`
	MinDays   *int              `json:"minDays"`
	MaxDays   *int              `json:"maxDays"`
	MinAmount *decimal.Decimal  `json:"minAmount"`
	MaxAmount *decimal.Decimal  `json:"maxAmount"`
	Levels    []policyLevelBody `json:"levels" binding:"required"`
}

func (b policyBody) toDomain(tenantID, id string, createdAt time.Time) *domain.ApprovalPolicy {
	p := &domain.ApprovalPolicy{
		ID:        id,
		TenantID:  tenantID,
		Name:      b.Name,
		Module:    domain.Module(b.Module),
		IsActive:  true,
		Priority:  b.Priority,
		MinDays:   b.MinDays,
		MaxDays:   b.MaxDays,
		MinAmount: b.MinAmount,
		MaxAmount: b.MaxAmount,
		CreatedAt: createdAt,
	}
	if b.IsActive != nil {
		p.IsActive = *b.IsActive
	}
	for _, l := range b.Levels {
		p.Levels = append(p.Levels, domain.ApprovalLevel{
			LevelOrder:   l.LevelOrder,
			ApproverRole: domain.ApproverRole(l.ApproverRole),
		})
	}
	return p
}

// CreatePolicy handles POST /api/v1/policies.
func (s *Server) CreatePolicy(c *gin.Context) {
	var body policyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid request body"))
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		_ = c.Error(err)
		return
	}
	p := body.toDomain(middleware.GetTenantID(c.Request.Context()), id.String(), time.Now().UTC())
	if err := policy.Validate(p); err != nil {
		_ = c.Error(err)
		return
	}

	if err := s.store.PolicyRepo.Create(c.Request.Context(), p); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// ListPolicies handles GET /api/v1/policies. An optional module query
// parameter narrows the listing.
func (s *Server) ListPolicies(c *gin.Context) {
	module := c.Query("module")
	if module != "" {
		if _, err := domain.ParseModule(module); err != nil {
			_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, err.Error()))
			return
		}
	}

	policies, err := s.store.PolicyRepo.List(c.Request.Context(),
		middleware.GetTenantID(c.Request.Context()), module)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": policies})
}

// GetPolicy handles GET /api/v1/policies/:id.
func (s *Server) GetPolicy(c *gin.Context) {
	p, err := s.store.PolicyRepo.Get(c.Request.Context(),
		middleware.GetTenantID(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if p == nil {
		_ = c.Error(apperrors.NotFound(apperrors.CodePolicyNotFound, "policy not found"))
		return
	}
	c.JSON(http.StatusOK, p)
}

// UpdatePolicy handles PUT /api/v1/policies/:id. Levels are replaced
// wholesale; requests already in flight keep their materialized steps.
func (s *Server) UpdatePolicy(c *gin.Context) {
	var body policyBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid request body"))
		return
	}

	p := body.toDomain(middleware.GetTenantID(c.Request.Context()), c.Param("id"), time.Time{})
	if err := policy.Validate(p); err != nil {
		_ = c.Error(err)
		return
	}

	found, err := s.store.PolicyRepo.Update(c.Request.Context(), p)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !found {
		_ = c.Error(apperrors.NotFound(apperrors.CodePolicyNotFound, "policy not found"))
		return
	}
	c.JSON(http.StatusOK, p)
}

type policyActiveBody struct {
	IsActive *bool `json:"isActive" binding:"required"`
}

// SetPolicyActive handles PATCH /api/v1/policies/:id/active. Deactivating a
// policy stops it matching new submissions without touching in-flight chains.
func (s *Server) SetPolicyActive(c *gin.Context) {
	var body policyActiveBody
	if err := c.ShouldBindJSON(&body); err != nil || body.IsActive == nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "isActive is required"))
		return
	}

	found, err := s.store.PolicyRepo.SetActive(c.Request.Context(),
		middleware.GetTenantID(c.Request.Context()), c.Param("id"), *body.IsActive)
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !found {
		_ = c.Error(apperrors.NotFound(apperrors.CodePolicyNotFound, "policy not found"))
		return
	}
	c.Status(http.StatusNoContent)
}

// DeletePolicy handles DELETE /api/v1/policies/:id.
func (s *Server) DeletePolicy(c *gin.Context) {
	found, err := s.store.PolicyRepo.Delete(c.Request.Context(),
		middleware.GetTenantID(c.Request.Context()), c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if !found {
		_ = c.Error(apperrors.NotFound(apperrors.CodePolicyNotFound, "policy not found"))
		return
	}
	c.Status(http.StatusNoContent)
}
