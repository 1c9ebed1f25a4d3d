// Package handlers implements the HTTP handlers of the approvals API.
package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/mohammedrameesp/smepp-approvals/internal/approval"
	"github.com/mohammedrameesp/smepp-approvals/internal/cache"
	"github.com/mohammedrameesp/smepp-approvals/internal/repository"
	"github.com/mohammedrameesp/smepp-approvals/internal/token"
)

// Server holds handler dependencies. Routes are registered by the app router.
type Server struct {
	engine *approval.Engine
	store  *repository.Store
	tokens *token.Service
	dedup  cache.Store
	pool   *pgxpool.Pool

	// dedupTTL bounds how long an in-flight remote redemption suppresses an
	// identical retry. Purely a duplicate-click shield; single-use semantics
	// are enforced by the token store.
	dedupTTL time.Duration
}

// NewServer creates the handler set.
func NewServer(
	engine *approval.Engine,
	store *repository.Store,
	tokens *token.Service,
	dedup cache.Store,
	pool *pgxpool.Pool,
) *Server {
	return &Server{
		engine:   engine,
		store:    store,
		tokens:   tokens,
		dedup:    dedup,
		pool:     pool,
		dedupTTL: 10 * time.Second,
	}
}

// Healthz handles GET /healthz. It pings the database so load balancers stop
// routing to an instance that lost its pool.
func (s *Server) Healthz(c *gin.Context) {
	if s.pool != nil {
		if err := s.pool.Ping(c.Request.Context()); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"status": "degraded",
				"reason": "database unreachable",
			})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
