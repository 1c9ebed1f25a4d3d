package app

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mohammedrameesp/smepp-approvals/internal/api/handlers"
	"github.com/mohammedrameesp/smepp-approvals/internal/api/middleware"
	"github.com/mohammedrameesp/smepp-approvals/internal/config"
)

func newRouter(cfg *config.Config, server *handlers.Server, jwtCfg middleware.JWTConfig) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.RequestID(), middleware.ErrorHandler())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "PUT", "PATCH", "DELETE"},
		AllowHeaders:  []string{"Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposeHeaders: []string{middleware.RequestIDHeader},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", server.Healthz)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Remote action links arrive from chat clients without bearer auth.
	// Redemption carries its own signed credential; the bucket keeps token
	// guessing impractical.
	remote := router.Group("/remote-actions")
	remote.Use(middleware.RateLimit(middleware.NewRateLimiter(
		cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst)))
	remote.GET("/:token", server.ValidateRemoteAction)
	remote.POST("/:token", server.RedeemRemoteAction)

	api := router.Group("/api/v1", middleware.JWTAuth(jwtCfg))

	api.POST("/requests", server.SubmitRequest)
	api.GET("/requests", server.ListMyRequests)
	api.GET("/requests/:module/:id", server.GetRequestHistory)
	api.POST("/requests/:module/:id/cancel", server.CancelRequest)

	api.POST("/steps/:id/decision", server.DecideStep)
	api.GET("/approvals/pending", server.PendingApprovals)

	policies := api.Group("/policies", middleware.RequireCapability(middleware.CapabilityManagePolicies))
	policies.POST("", server.CreatePolicy)
	policies.GET("", server.ListPolicies)
	policies.GET("/:id", server.GetPolicy)
	policies.PUT("/:id", server.UpdatePolicy)
	policies.PATCH("/:id/active", server.SetPolicyActive)
	policies.DELETE("/:id", server.DeletePolicy)

	delegations := api.Group("/delegations", middleware.RequireCapability(middleware.CapabilityManageDelegations))
	delegations.POST("", server.CreateDelegation)
	delegations.GET("", server.ListDelegations)
	delegations.DELETE("/:id", server.DeactivateDelegation)

	return router
}
