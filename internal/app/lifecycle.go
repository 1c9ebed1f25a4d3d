package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
)

// Start launches background services: the River client begins consuming
// dispatch and cleanup jobs.
func (a *Application) Start(ctx context.Context) error {
	if a.RiverClient != nil {
		if err := a.RiverClient.Start(ctx); err != nil {
			return fmt.Errorf("start river client: %w", err)
		}
		logger.Info("River client started, jobs will now be consumed")
	}
	return nil
}

// Shutdown gracefully stops background services and closes the pool.
func (a *Application) Shutdown() {
	shutdownCtx := context.Background()

	if a.RiverClient != nil {
		if err := a.RiverClient.Stop(shutdownCtx); err != nil {
			logger.Error("failed to stop river client", zap.Error(err))
		} else {
			logger.Info("River client stopped")
		}
	}
	if a.Pools != nil {
		a.Pools.Shutdown()
	}
	if a.Pool != nil {
		a.Pool.Close()
	}
}
