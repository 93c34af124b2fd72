package router

import (
	"context"
	"net/http"

	"github.com/gin-contrib/pprof"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"basegraph.app/pulse/internal/http/handler"
)

// HealthCheck reports whether a dependency is reachable.
type HealthCheck func(ctx context.Context) error

type RouterConfig struct {
	Metrics     handler.MetricsService
	DeadLetters handler.DeadLetterLister
	Health      HealthCheck
	// Profiling mounts the pprof handlers under /debug/pprof.
	Profiling bool
}

func SetupRoutes(router *gin.Engine, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		if cfg.Health != nil {
			if err := cfg.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	metricsHandler := handler.NewMetricsHandler(cfg.Metrics)
	metrics := router.Group("/metrics")
	MetricsRouter(metrics, metricsHandler)
	metrics.GET("/prometheus", gin.WrapH(promhttp.Handler()))

	VisualizationRouter(router.Group("/visualization"), metricsHandler)
	VisualizationRouter(router.Group("/visualisation"), metricsHandler)

	if cfg.DeadLetters != nil {
		AdminRouter(router.Group("/admin"), handler.NewDeadLetterHandler(cfg.DeadLetters))
	}

	if cfg.Profiling {
		pprof.Register(router)
	}
}
