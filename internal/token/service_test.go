package token

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/mohammedrameesp/smepp-approvals/internal/domain"
	apperrors "github.com/mohammedrameesp/smepp-approvals/internal/pkg/errors"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func newTestService() *Service {
	return NewService(testSecret, time.Hour, NewMemoryStore())
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	appErr, ok := apperrors.IsAppError(err)
	require.True(t, ok, "expected AppError, got %v", err)
	require.Equal(t, code, appErr.Code)
}

func TestIssueValidateRoundTrip(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	external, err := svc.Issue(ctx, "t1", domain.ModuleLeaveRequest, "req-1", domain.ActionApprove, "mgr-1", 0)
	require.NoError(t, err)

	tok, err := svc.Validate(ctx, external)
	require.NoError(t, err)
	require.Equal(t, "t1", tok.TenantID)
	require.Equal(t, domain.ModuleLeaveRequest, tok.EntityType)
	require.Equal(t, "req-1", tok.EntityID)
	require.Equal(t, domain.ActionApprove, tok.Action)
	require.Equal(t, "mgr-1", tok.ApproverID)
	require.False(t, tok.Used)

	// Validate is read-only: a second validation still succeeds.
	_, err = svc.Validate(ctx, external)
	require.NoError(t, err)
}

func TestConsumeSingleUse(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	external, err := svc.Issue(ctx, "t1", domain.ModulePurchaseRequest, "req-2", domain.ActionReject, "fin-1", 0)
	require.NoError(t, err)

	tok, err := svc.Consume(ctx, external)
	require.NoError(t, err)
	require.True(t, tok.Used)

	_, err = svc.Consume(ctx, external)
	requireCode(t, err, apperrors.CodeTokenAlreadyUsed)
}

func TestConsumeConcurrentExactlyOneWinner(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	external, err := svc.Issue(ctx, "t1", domain.ModuleAssetRequest, "req-3", domain.ActionApprove, "mgr-2", 0)
	require.NoError(t, err)

	const attempts = 16
	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		wins   int
		losses int
	)
	start := make(chan struct{})
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := svc.Consume(ctx, external)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			losses++
		}()
	}
	close(start)
	wg.Wait()

	require.Equal(t, 1, wins, "exactly one concurrent consume must win")
	require.Equal(t, attempts-1, losses)
}

func TestValidateExpiredToken(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	external, err := svc.Issue(ctx, "t1", domain.ModuleLeaveRequest, "req-4", domain.ActionApprove, "mgr-1", time.Minute)
	require.NoError(t, err)

	// Move the service clock past expiry.
	svc.now = func() time.Time { return time.Now().UTC().Add(2 * time.Minute) }

	_, err = svc.Validate(ctx, external)
	requireCode(t, err, apperrors.CodeTokenExpired)

	_, err = svc.Consume(ctx, external)
	requireCode(t, err, apperrors.CodeTokenExpired)
}

func TestValidateUnknownAndGarbageTokens(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	_, err := svc.Validate(ctx, "complete-garbage")
	requireCode(t, err, apperrors.CodeTokenInvalid)

	// Well-signed but never persisted (minted by codec directly).
	id, err := NewTokenID()
	require.NoError(t, err)
	external, err := NewCodec(testSecret).Encode(id)
	require.NoError(t, err)

	_, err = svc.Validate(ctx, external)
	requireCode(t, err, apperrors.CodeTokenNotFound)
}

func TestIssuePairAndEntityInvalidation(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	pair, err := svc.IssuePair(ctx, "t1", domain.ModuleLeaveRequest, "req-5", "mgr-1", 0)
	require.NoError(t, err)
	require.NotEqual(t, pair.Approve, pair.Reject)

	// Redeem the approve token, then invalidate the entity's remaining tokens
	// as the step processor does after a decision is applied.
	_, err = svc.Consume(ctx, pair.Approve)
	require.NoError(t, err)
	require.NoError(t, svc.InvalidateForEntity(ctx, "t1", domain.ModuleLeaveRequest, "req-5"))

	_, err = svc.Consume(ctx, pair.Reject)
	requireCode(t, err, apperrors.CodeTokenAlreadyUsed)
}

func TestInvalidateForEntityScopesByEntity(t *testing.T) {
	ctx := context.Background()
	svc := newTestService()

	a, err := svc.Issue(ctx, "t1", domain.ModuleLeaveRequest, "req-a", domain.ActionApprove, "mgr-1", 0)
	require.NoError(t, err)
	b, err := svc.Issue(ctx, "t1", domain.ModuleLeaveRequest, "req-b", domain.ActionApprove, "mgr-1", 0)
	require.NoError(t, err)

	require.NoError(t, svc.InvalidateForEntity(ctx, "t1", domain.ModuleLeaveRequest, "req-a"))

	_, err = svc.Validate(ctx, a)
	requireCode(t, err, apperrors.CodeTokenAlreadyUsed)

	_, err = svc.Validate(ctx, b)
	require.NoError(t, err, "tokens of other entities must stay live")
}

func TestCleanupExpired(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	svc := NewService(testSecret, time.Hour, store)

	expired, err := svc.Issue(ctx, "t1", domain.ModuleLeaveRequest, "req-6", domain.ActionApprove, "mgr-1", time.Minute)
	require.NoError(t, err)
	live, err := svc.Issue(ctx, "t1", domain.ModuleLeaveRequest, "req-7", domain.ActionApprove, "mgr-1", time.Hour)
	require.NoError(t, err)

	svc.now = func() time.Time { return time.Now().UTC().Add(10 * time.Minute) }

	n, err := svc.CleanupExpired(ctx, 0)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)

	_, err = svc.Validate(ctx, expired)
	requireCode(t, err, apperrors.CodeTokenNotFound)

	_, err = svc.Validate(ctx, live)
	require.NoError(t, err)
}
