package handlers

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
)

// Remote redemption responds with an envelope instead of bare error bodies:
// the chat gateway renders {valid, error} directly to the end user, so every
// outcome is a well-formed answer rather than a thrown failure.

type remoteErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type remoteRedeemResponse struct {
	Valid         bool                  `json:"valid"`
	Action        domain.DecisionAction `json:"action,omitempty"`
	EntityType    domain.Module         `json:"entityType,omitempty"`
	EntityID      string                `json:"entityId,omitempty"`
	RequestStatus domain.RequestStatus  `json:"requestStatus,omitempty"`
	Error         *remoteErrorBody      `json:"error,omitempty"`
}

// RedeemRemoteAction handles POST /remote-actions/:token. The token string
// is consumed atomically, then the bound decision is applied as the bound
// approver on the entity's active step.
func (s *Server) RedeemRemoteAction(c *gin.Context) {
	ctx := c.Request.Context()
	external := c.Param("token")

	// Collapse duplicate clicks on the same button before touching the
	// database. Correctness does not depend on this claim.
	if s.dedup != nil {
		ok, err := s.dedup.Acquire(ctx, dedupKey(external), s.dedupTTL)
		if err != nil {
			logger.Warn("dedup store unavailable, continuing without claim", zap.Error(err))
		} else if !ok {
			c.JSON(http.StatusConflict, remoteRedeemResponse{
				Valid: false,
				Error: &remoteErrorBody{
					Code:    apperrors.CodeTokenRaceLost,
					Message: "this action is already being processed",
				},
			})
			return
		}
	}

	tok, err := s.tokens.Consume(ctx, external)
	if err != nil {
		s.remoteError(c, err)
		return
	}

	steps, err := s.store.ListSteps(ctx, tok.TenantID, tok.EntityType, tok.EntityID)
	if err != nil {
		s.remoteError(c, err)
		return
	}
	active := approval.ActiveStep(steps)
	if active == nil {
		s.remoteError(c, apperrors.ErrStepNotActivef())
		return
	}

	result, err := s.engine.Process(ctx, approval.ProcessInput{
		TenantID: tok.TenantID,
		StepID:   active.ID,
		Action:   tok.Action,
		ActorID:  tok.ApproverID,
	})
	if err != nil {
		s.remoteError(c, err)
		return
	}

	c.JSON(http.StatusOK, remoteRedeemResponse{
		Valid:         true,
		Action:        tok.Action,
		EntityType:    tok.EntityType,
		EntityID:      tok.EntityID,
		RequestStatus: result.RequestStatus,
	})
}

// ValidateRemoteAction handles GET /remote-actions/:token. Read-only: lets
// the landing page show what the button will do before the user confirms.
func (s *Server) ValidateRemoteAction(c *gin.Context) {
	tok, err := s.tokens.Validate(c.Request.Context(), c.Param("token"))
	if err != nil {
		s.remoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, remoteRedeemResponse{
		Valid:      true,
		Action:     tok.Action,
		EntityType: tok.EntityType,
		EntityID:   tok.EntityID,
	})
}

func (s *Server) remoteError(c *gin.Context, err error) {
	if appErr, ok := apperrors.IsAppError(err); ok {
		c.JSON(appErr.HTTPStatus, remoteRedeemResponse{
			Valid: false,
			Error: &remoteErrorBody{Code: appErr.Code, Message: appErr.Message},
		})
		return
	}
	logger.Error("remote action redemption failed", zap.Error(err))
	c.JSON(http.StatusInternalServerError, remoteRedeemResponse{
		Valid: false,
		Error: &remoteErrorBody{Code: "INTERNAL_ERROR", Message: "An internal error occurred"},
	})
}

// dedupKey hashes the token string so raw credentials never reach Redis.
func dedupKey(external string) string {
	sum := sha256.Sum256([]byte(external))
	return "remote:" + hex.EncodeToString(sum[:8])
}
