// Package app is the composition root: bootstrap wires the pool, queue,
// services, and router; lifecycle starts and stops them.
package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/riverqueue/river"
	"github.com/riverqueue/river/riverdriver/riverpgxv5"
	"go.uber.org/zap"

	"github.com/mohammedrameesp/smepp-approvals/internal/api/handlers"
	"github.com/mohammedrameesp/smepp-approvals/internal/api/middleware"
	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/cache"
	"github.com/mohammedrameesp/smepp-approvals/internal/config"
	"github.com/mohammedrameesp/smepp-approvals/internal/jobs"
	"github.com/mohammedrameesp/smepp-approvals/internal/notification"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/logger"
	"github.com/mohammedrameesp/smepp-approvals/internal/pkg/worker"
	"github.com/mohammedrameesp/smepp-approvals/internal/repository"
	"github.com/mohammedrameesp/smepp-approvals/internal/token"
)

// Application holds composed application dependencies.
type Application struct {
	Config      *config.Config
	Router      *gin.Engine
	Pool        *pgxpool.Pool
	RiverClient *river.Client[pgx.Tx]
	Pools       *worker.Pools
}

// Bootstrap initializes all dependencies with manual DI.
func Bootstrap(ctx context.Context, cfg *config.Config) (*Application, error) {
	pool, err := newPool(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("init database: %w", err)
	}
	if cfg.Database.AutoMigrate {
		if err := autoMigrate(ctx, pool); err != nil {
			pool.Close()
			return nil, fmt.Errorf("auto-migrate: %w", err)
		}
	}

	store := repository.NewStore(pool)
	members := repository.NewMemberRepo(pool)
	tokens := token.NewService([]byte(cfg.Security.TokenSecret), cfg.Token.TTL, token.NewPostgresStore(pool))

	pools, err := worker.NewPools(ctx, worker.PoolConfig{
		GeneralPoolSize:   cfg.Worker.GeneralPoolSize,
		MessagingPoolSize: cfg.Worker.MessagingPoolSize,
	})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init worker pools: %w", err)
	}

	triggers := notification.NewTriggers(newSender(cfg.WhatsApp), pools)

	workers := river.NewWorkers()
	river.AddWorker(workers, jobs.NewApprovalDispatchWorker(store, members, tokens, triggers, cfg.Server.PublicBaseURL))
	river.AddWorker(workers, jobs.NewOutcomeNotifyWorker(store, members, triggers))
	river.AddWorker(workers, jobs.NewTokenCleanupWorker(tokens, cfg.Token.UsedRetention))

	riverClient, err := river.NewClient(riverpgxv5.New(pool), &river.Config{
		Queues: map[string]river.QueueConfig{
			river.QueueDefault: {MaxWorkers: cfg.River.MaxWorkers},
		},
		Workers: workers,
	})
	if err != nil {
		pools.Shutdown()
		pool.Close()
		return nil, fmt.Errorf("init river client: %w", err)
	}
	riverClient.PeriodicJobs().Add(
		river.NewPeriodicJob(
			river.PeriodicInterval(6*time.Hour),
			func() (river.JobArgs, *river.InsertOpts) {
				return jobs.TokenCleanupArgs{}, nil
			},
			&river.PeriodicJobOpts{RunOnStart: true},
		),
	)

	engine := approval.NewEngine(store, store.StepRepo, members, jobs.NewDispatcher(riverClient))
	server := handlers.NewServer(engine, store, tokens, newDedupStore(cfg.Redis), pool)

	jwtCfg := middleware.JWTConfig{
		SigningKey: []byte(cfg.Security.JWTSigningKey),
		Issuer:     "smepp-approvals",
		ExpiresIn:  24 * time.Hour,
	}

	return &Application{
		Config:      cfg,
		Router:      newRouter(cfg, server, jwtCfg),
		Pool:        pool,
		RiverClient: riverClient,
		Pools:       pools,
	}, nil
}

// newSender picks the outbound gateway. No configured URL means messages are
// logged and dropped, which keeps dev and test environments quiet.
func newSender(cfg config.WhatsAppConfig) notification.Sender {
	if cfg.APIURL == "" {
		logger.Info("WhatsApp gateway not configured, outbound messages disabled")
		return notification.NoopSender{}
	}
	return notification.NewWhatsAppSender(cfg.APIURL, cfg.APIKey)
}

// newDedupStore picks the redemption dedup backend. Redis shares claims
// across instances; the fallback map is process-local.
func newDedupStore(cfg config.RedisConfig) cache.Store {
	if cfg.Addr == "" {
		return cache.NewMemoryStore()
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping().Err(); err != nil {
		logger.Warn("Redis unreachable, falling back to in-process dedup",
			zap.String("addr", cfg.Addr), zap.Error(err))
		return cache.NewMemoryStore()
	}
	return cache.NewRedisStore(client, "")
}
