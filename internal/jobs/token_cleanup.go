package jobs

import (
	"context"
	"time"

	"github.com/riverqueue/river"
	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/token"
)

// TokenCleanupArgs is a periodic maintenance job that removes expired remote
// action tokens and used tokens past their retention window.
type TokenCleanupArgs struct{}

// Kind returns the job kind identifier.
func (TokenCleanupArgs) Kind() string { return "token_cleanup" }

// InsertOpts ensures at most one cleanup job per period.
func (TokenCleanupArgs) InsertOpts() river.InsertOpts {
	return river.InsertOpts{
		Queue:       river.QueueDefault,
		MaxAttempts: 1,
		UniqueOpts: river.UniqueOpts{
			ByPeriod: time.Hour,
			ByQueue:  true,
			ByArgs:   true,
		},
	}
}

// TokenCleanupWorker deletes stale token rows.
type TokenCleanupWorker struct {
	river.WorkerDefaults[TokenCleanupArgs]
	tokens    *token.Service
	retention time.Duration
}

// NewTokenCleanupWorker creates a cleanup worker. Non-positive retention
// falls back to the service default.
func NewTokenCleanupWorker(tokens *token.Service, retention time.Duration) *TokenCleanupWorker {
	return &TokenCleanupWorker{tokens: tokens, retention: retention}
}

// Work removes expired and long-used token rows.
func (w *TokenCleanupWorker) Work(ctx context.Context, _ *river.Job[TokenCleanupArgs]) error {
	deleted, err := w.tokens.CleanupExpired(ctx, w.retention)
	if err != nil {
		return err
	}
	logger.Info("remote action token cleanup completed",
		zap.Int64("deleted_rows", deleted),
	)
	return nil
}
