package router

import (
	"log/slog"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"

	"github.com/polkiloo/offramp/internal/metrics"
	"github.com/polkiloo/offramp/internal/server/http/handlers"
	"github.com/polkiloo/offramp/internal/server/http/middleware"
)

// Setup configures gin router with handlers and middleware.
func Setup(facade handlers.SettlementFacade, health handlers.HealthChecker, registry *metrics.Registry, logger *slog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()

	engine.Use(gin.Recovery())
	engine.Use(middleware.RequestLogger(logger))
	engine.Use(middleware.LimitRequestBody(middleware.MaxRequestBody))
	engine.Use(gzip.Gzip(gzip.DefaultCompression))

	orderHandler := handlers.NewOrderHandler(facade)
	healthHandler := handlers.NewHealthHandler(health)

	engine.GET("/healthz", healthHandler.Check)
	engine.GET("/metrics", gin.WrapH(registry.Handler()))

	orders := engine.Group("/api/orders")
	orders.POST("", orderHandler.Create)
	orders.GET("/:id", orderHandler.Get)
	orders.GET("/:id/history", orderHandler.History)
	orders.POST("/:id/proof", orderHandler.Proof)
	orders.POST("/:id/payout", orderHandler.Payout)
	orders.POST("/:id/sync", orderHandler.Sync)

	return engine
}
