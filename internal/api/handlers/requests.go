package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/mohammedrameesp/smepp-approvals/internal/api/middleware"
	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
)

type submitRequestBody struct {
	Module string           `json:"module" binding:"required"`
	Title  string           `json:"title" binding:"required"`
	Days   *int             `json:"days"`
	Amount *decimal.Decimal `json:"amount"`
}

// SubmitRequest handles POST /api/v1/requests.
func (s *Server) SubmitRequest(c *gin.Context) {
	var body submitRequestBody
	if err := c.ShouldBindJSON(&body); err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, "invalid request body"))
		return
	}

	result, err := s.engine.Submit(c.Request.Context(), approval.SubmitInput{
		TenantID:    middleware.GetTenantID(c.Request.Context()),
		Module:      domain.Module(body.Module),
		RequesterID: middleware.GetUserID(c.Request.Context()),
		Title:       body.Title,
		Days:        body.Days,
		Amount:      body.Amount,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	resp := gin.H{
		"request": result.Request,
		"steps":   result.Steps,
	}
	if result.Policy != nil {
		resp["policyId"] = result.Policy.ID
	}
	c.JSON(http.StatusCreated, resp)
}

// ListMyRequests handles GET /api/v1/requests.
func (s *Server) ListMyRequests(c *gin.Context) {
	ctx := c.Request.Context()
	requests, err := s.store.ListByRequester(ctx,
		middleware.GetTenantID(ctx), middleware.GetUserID(ctx), 0)
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": requests})
}

// GetRequestHistory handles GET /api/v1/requests/:module/:id. The response
// carries the request and its full step trail, decided steps included.
func (s *Server) GetRequestHistory(c *gin.Context) {
	module, err := domain.ParseModule(c.Param("module"))
	if err != nil {
		_ = c.Error(apperrors.BadRequest(apperrors.CodeValidationFailed, err.Error()))
		return
	}

	ctx := c.Request.Context()
	req, steps, err := s.engine.History(ctx, middleware.GetTenantID(ctx), module, c.Param("id"))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"request": req,
		"steps":   steps,
	})
}

// CancelRequest handles POST /api/v1/requests/:module/:id/cancel. Only the
// requester may cancel, and only while no step has been decided.
func (s *Server) CancelRequest(c *gin.Context) {
	ctx := c.Request.Context()
	err := s.engine.Cancel(ctx,
		middleware.GetTenantID(ctx), c.Param("id"), middleware.GetUserID(ctx))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.Status(http.StatusNoContent)
}
