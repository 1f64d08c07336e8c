package app

import (
	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"

	"ridebot/internal/handler"
	"ridebot/internal/middleware"
	internalRedis "ridebot/internal/redis"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	WebhookHandler *handler.WebhookHandler
	RideHandler    *handler.RideHandler
	DedupStore     internalRedis.DedupStoreInterface
	NewRelicApp    *newrelic.Application
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(gin.Logger())
	router.Use(middleware.RequestID())

	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// Inbound conversation webhook. Deduplicated: the transport
	// redelivers webhooks, and a redelivered message must not replay
	// its ride transition.
	webhook := router.Group("/webhook")
	webhook.Use(middleware.DedupMiddleware(deps.DedupStore))
	{
		webhook.POST("/whatsapp", deps.WebhookHandler.Inbound)
	}

	// Operational read surface.
	v1 := router.Group("/v1")
	{
		v1.GET("/rides/:id", deps.RideHandler.GetRide)
	}

	return router
}
