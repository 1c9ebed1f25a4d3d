package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/mohammedrameesp/smepp-approvals/internal/api/middleware"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
)

type delegationBody struct {
	DelegateeID string    `json:"delegateeId" binding:"required"`
	StartDate   time.Time `json:"startDate" binding:"required"`
	EndDate     time.Time `json:"endDate" binding:"required"`
	Reason      *string   `json:"reason"`
}

// CreateDelegation handles POST /api/v1/delegations. The caller is the
// delegator; overlapping windows for the same delegator are rejected.
func (s *Server) CreateDelegation(c *gin.Context) {
	var body delegationBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid request body"))
		return
	}

	ctx := c.Request.Context()
	delegatorID := middleware.GetUserID(ctx)
	if body.DelegateeID == delegatorID {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "cannot delegate to yourself"))
		return
	}

	id, err := uuid.NewV7()
	if err != nil {
		_ = c.Error(err)
		return
	}
	d := &domain.Delegation{
		ID:          id.String(),
		TenantID:    middleware.GetTenantID(ctx),
		DelegatorID: delegatorID,
		DelegateeID: body.DelegateeID,
		StartDate:   body.StartDate.UTC(),
		EndDate:     body.EndDate.UTC(),
		IsActive:    true,
		Reason:      body.Reason,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.store.DelegationRepo.Create(ctx, d); err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, d)
}

// ListDelegations handles GET /api/v1/delegations: the caller's own
// delegations, newest first.
func (s *Server) ListDelegations(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := s.store.DelegationRepo.List(ctx,
		middleware.GetTenantID(ctx), middleware.GetUserID(ctx))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// DeactivateDelegation handles DELETE /api/v1/delegations/:id. The record is
// kept for audit; only the active flag drops.
func (s *Server) DeactivateDelegation(c *gin.Context) {
	ctx := c.Request.Context()
	tenantID := middleware.GetTenantID(ctx)

	d, err := s.store.DelegationRepo.Get(ctx, tenantID, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	if d == nil {
		_ = c.Error(apperrors.NotFound(apperrors.CodeDelegationNotFound, "delegation not found"))
		return
	}
	if d.DelegatorID != middleware.GetUserID(ctx) {
		_ = c.Error(apperrors.Forbidden(apperrors.CodePermissionDenied, "only the delegator may deactivate a delegation"))
		return
	}

	if _, err := s.store.DelegationRepo.Deactivate(ctx, tenantID, d.ID); err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
