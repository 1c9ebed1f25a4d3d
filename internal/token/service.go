package token

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/metrics"
)

// DefaultTTL bounds how long a chat button stays redeemable.
const DefaultTTL = 48 * time.Hour

// DefaultUsedRetention keeps used tokens around for diagnostics before cleanup.
const DefaultUsedRetention = 7 * 24 * time.Hour

// Pair is the approve/reject token pair embedded in one outbound message.
type Pair struct {
	Approve string
	Reject  string
}

// Service issues, validates, and consumes remote action tokens.
type Service struct {
	codec *Codec
	store Store
	ttl   time.Duration
	now   func() time.Time
}

// NewService creates a token service. Non-positive ttl falls back to DefaultTTL.
func NewService(secret []byte, ttl time.Duration, store Store) *Service {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Service{
		codec: NewCodec(secret),
		store: store,
		ttl:   ttl,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a single token bound to (tenant, entity, action, approver).
// Zero ttl uses the service default.
func (s *Service) Issue(
	ctx context.Context,
	tenantID string,
	entityType domain.Module,
	entityID string,
	action domain.DecisionAction,
	approverID string,
	ttl time.Duration,
) (string, error) {
	if ttl <= 0 {
		ttl = s.ttl
	}
	id, err := NewTokenID()
	if err != nil {
		return "", fmt.Errorf("generate token id: %w", err)
	}

	now := s.now()
	tok := domain.RemoteActionToken{
		ID:         id,
		TenantID:   tenantID,
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		ApproverID: approverID,
		ExpiresAt:  now.Add(ttl),
		CreatedAt:  now,
	}
	if err := s.store.Insert(ctx, tok); err != nil {
		return "", err
	}
	return s.codec.Encode(id)
}

// IssuePair creates the approve/reject token pair for one approver prompt.
func (s *Service) IssuePair(
	ctx context.Context,
	tenantID string,
	entityType domain.Module,
	entityID string,
	approverID string,
	ttl time.Duration,
) (Pair, error) {
	approve, err := s.Issue(ctx, tenantID, entityType, entityID, domain.ActionApprove, approverID, ttl)
	if err != nil {
		return Pair{}, fmt.Errorf("issue approve token: %w", err)
	}
	reject, err := s.Issue(ctx, tenantID, entityType, entityID, domain.ActionReject, approverID, ttl)
	if err != nil {
		return Pair{}, fmt.Errorf("issue reject token: %w", err)
	}
	return Pair{Approve: approve, Reject: reject}, nil
}

// Validate is the read-only check: signature, existence, expiry, used state.
// It never mutates the token.
func (s *Service) Validate(ctx context.Context, external string) (*domain.RemoteActionToken, error) {
	return s.lookup(ctx, external, s.now())
}

// Consume atomically redeems the token. The conditional update's affected-row
// count distinguishes the winner of a concurrent double redemption from the
// loser, which receives TOKEN_RACE_LOST (same user-facing effect as
// already-used, distinct for diagnostics).
func (s *Service) Consume(ctx context.Context, external string) (*domain.RemoteActionToken, error) {
	now := s.now()
	tok, err := s.lookup(ctx, external, now)
	if err != nil {
		s.countOutcome(err)
		return nil, err
	}

	ok, err := s.store.Consume(ctx, tok.ID, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// The token was unused moments ago; someone else won the update.
		metrics.TokenRedemptions.WithLabelValues("race_lost").Inc()
		logger.Warn("remote action token lost consume race",
			zap.String("token_id", tok.ID),
			zap.String("entity_type", string(tok.EntityType)),
			zap.String("entity_id", tok.EntityID),
		)
		return nil, apperrors.Conflict(apperrors.CodeTokenRaceLost, "this action was just processed by another request")
	}

	metrics.TokenRedemptions.WithLabelValues("consumed").Inc()
	tok.Used = true
	tok.UsedAt = &now
	return tok, nil
}

// InvalidateForEntity voids every outstanding token for an entity. Called
// whenever the entity's workflow advances through any channel, so a stale
// chat button cannot re-trigger a decision.
func (s *Service) InvalidateForEntity(ctx context.Context, tenantID string, entityType domain.Module, entityID string) error {
	n, err := s.store.InvalidateForEntity(ctx, tenantID, entityType, entityID, s.now())
	if err != nil {
		return err
	}
	if n > 0 {
		logger.Debug("invalidated outstanding remote action tokens",
			zap.String("entity_type", string(entityType)),
			zap.String("entity_id", entityID),
			zap.Int64("count", n),
		)
	}
	return nil
}

// CleanupExpired deletes expired tokens and used tokens older than retention.
func (s *Service) CleanupExpired(ctx context.Context, usedRetention time.Duration) (int64, error) {
	if usedRetention <= 0 {
		usedRetention = DefaultUsedRetention
	}
	return s.store.DeleteExpired(ctx, s.now(), usedRetention)
}

func (s *Service) lookup(ctx context.Context, external string, now time.Time) (*domain.RemoteActionToken, error) {
	id, err := s.codec.Decode(external)
	if err != nil {
		switch {
		case errors.Is(err, ErrSecretMissing):
			return nil, apperrors.Internal(apperrors.CodeTokenInvalid, "token verification is not configured")
		default:
			return nil, apperrors.BadRequest(apperrors.CodeTokenInvalid, "token is malformed or has an invalid signature")
		}
	}

	tok, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if tok == nil {
		return nil, apperrors.NotFound(apperrors.CodeTokenNotFound, "token does not exist")
	}
	if tok.Used {
		return nil, apperrors.Conflict(apperrors.CodeTokenAlreadyUsed, "token has already been used")
	}
	if now.After(tok.ExpiresAt) {
		return nil, apperrors.Gone(apperrors.CodeTokenExpired, "token has expired")
	}
	return tok, nil
}

func (s *Service) countOutcome(err error) {
	appErr, ok := apperrors.IsAppError(err)
	if !ok {
		return
	}
	switch appErr.Code {
	case apperrors.CodeTokenExpired:
		metrics.TokenRedemptions.WithLabelValues("expired").Inc()
	case apperrors.CodeTokenAlreadyUsed:
		metrics.TokenRedemptions.WithLabelValues("already_used").Inc()
	case apperrors.CodeTokenNotFound:
		metrics.TokenRedemptions.WithLabelValues("not_found").Inc()
	case apperrors.CodeTokenInvalid:
		metrics.TokenRedemptions.WithLabelValues("invalid").Inc()
	}
}
