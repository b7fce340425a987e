// Package http wires the gin route tree and the HTTP server.
package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/aduanet/hs-classify/internal/infrastructure/monitoring/logging"
	"github.com/aduanet/hs-classify/internal/interfaces/http/handlers"
	"github.com/aduanet/hs-classify/internal/interfaces/http/middleware"
)

// RouterConfig aggregates the handler and middleware dependencies for
// the complete route tree.
type RouterConfig struct {
	ClassifyHandler *handlers.ClassifyHandler
	CatalogHandler  *handlers.CatalogHandler
	HealthHandler   *handlers.HealthHandler

	// MetricsHandler serves GET /metrics when set.
	MetricsHandler http.Handler

	// HTTPMetrics observes per-route request counts and latency.
	HTTPMetrics middleware.HTTPMetrics

	Logger logging.Logger
}

// NewRouter builds the complete gin engine.
func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	if cfg.Logger != nil {
		r.Use(middleware.RequestLogging(cfg.Logger, middleware.DefaultLoggingConfig()))
	}
	if cfg.HTTPMetrics != nil {
		r.Use(middleware.Metrics(cfg.HTTPMetrics))
	}

	if cfg.HealthHandler != nil {
		r.GET("/healthz", cfg.HealthHandler.Liveness)
		r.GET("/readyz", cfg.HealthHandler.Readiness)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(cfg.MetricsHandler))
	}

	api := r.Group("/api/v1")

	if cfg.ClassifyHandler != nil {
		api.POST("/classify", cfg.ClassifyHandler.Classify)
		api.POST("/classify/explain", cfg.ClassifyHandler.Explain)
	}

	if cfg.CatalogHandler != nil {
		catalog := api.Group("/catalog")
		catalog.GET("/chapters", cfg.CatalogHandler.Chapters)
		catalog.GET("/codes/:code", cfg.CatalogHandler.Get)
		catalog.GET("/codes/:code/children", cfg.CatalogHandler.Children)
		catalog.GET("/version", cfg.CatalogHandler.Version)
		catalog.POST("/ingest", cfg.CatalogHandler.Ingest)
	}

	return r
}
