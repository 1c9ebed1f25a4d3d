package worker

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
)

func init() {
	_ = logger.Init("error", "json")
}

func newTestPools(t *testing.T) *Pools {
	t.Helper()
	pools, err := NewPools(context.Background(), PoolConfig{
		GeneralPoolSize:   4,
		MessagingPoolSize: 2,
	})
	if err != nil {
		t.Fatalf("NewPools: %v", err)
	}
	t.Cleanup(pools.Shutdown)
	return pools
}

func TestSubmitRunsTask(t *testing.T) {
	pools := newTestPools(t)

	var wg sync.WaitGroup
	wg.Add(1)
	ran := false
	err := pools.General.Submit(context.Background(), func(ctx context.Context) {
		ran = true
		wg.Done()
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	wg.Wait()
	if !ran {
		t.Fatal("task did not run")
	}
}

func TestSubmitCancelledContext(t *testing.T) {
	pools := newTestPools(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := pools.General.Submit(ctx, func(ctx context.Context) {
		t.Error("task must not run with cancelled context")
	})
	if err == nil {
		t.Fatal("Submit should return the context error")
	}
}

func TestSubmitDetachedRespectsShutdown(t *testing.T) {
	pools, err := NewPools(context.Background(), DefaultPoolConfig())
	if err != nil {
		t.Fatalf("NewPools: %v", err)
	}

	done := make(chan struct{})
	if err := pools.SubmitDetached("messaging", func(ctx context.Context) {
		select {
		case <-ctx.Done():
		case <-time.After(5 * time.Second):
			t.Error("detached task did not observe shutdown")
		}
		close(done)
	}); err != nil {
		t.Fatalf("SubmitDetached: %v", err)
	}

	pools.Shutdown()
	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("detached task did not finish after shutdown")
	}
}

func TestMetricsShape(t *testing.T) {
	pools := newTestPools(t)

	m := pools.Metrics()
	if _, ok := m["general"]; !ok {
		t.Error("metrics missing general pool")
	}
	if _, ok := m["messaging"]; !ok {
		t.Error("metrics missing messaging pool")
	}
}
