package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/mohammedrameesp/smepp-approvals/internal/api/middleware"
	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
)

type decisionBody struct {
	Action string  `json:"action" binding:"required"`
	Notes  *string `json:"notes"`
}

// DecideStep handles POST /api/v1/steps/:id/decision. The step must be the
// active step of its request and the caller its effective approver.
func (s *Server) DecideStep(c *gin.Context) {
	var body decisionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid request body"))
		return
	}

	ctx := c.Request.Context()
	result, err := s.engine.Process(ctx, approval.ProcessInput{
		TenantID: middleware.GetTenantID(ctx),
		StepID:   c.Param("id"),
		Action:   domain.DecisionAction(body.Action),
		ActorID:  middleware.GetUserID(ctx),
		Notes:    body.Notes,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := gin.H{"requestStatus": result.RequestStatus}
	if result.NextStep != nil {
		resp["nextStep"] = result.NextStep
	}
	c.JSON(http.StatusOK, resp)
}

// PendingApprovals handles GET /api/v1/approvals/pending: the caller's inbox
// of active steps, delegations resolved, each tagged with an urgency tier.
func (s *Server) PendingApprovals(c *gin.Context) {
	ctx := c.Request.Context()
	items, err := s.engine.PendingApprovals(ctx,
		middleware.GetTenantID(ctx), middleware.GetUserID(ctx))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}
