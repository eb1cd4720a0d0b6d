// Package httpserver serves the admin endpoints next to the gRPC API.
package httpserver

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/robuust/reverserelations/internal/entities"
	"github.com/robuust/reverserelations/internal/infrastructure/logger"
	"github.com/robuust/reverserelations/internal/infrastructure/metrics"
)

// HealthChecker reports whether a dependency is usable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// StatsSource provides the in-process request and resolver counters
type StatsSource interface {
	Stats() *metrics.Stats
}

// NewRouter returns the admin router exposing /healthz, /metrics, /stats and /field-types
func NewRouter(health HealthChecker, gatherer prometheus.Gatherer, stats StatsSource, log logger.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		if err := health.HealthCheck(c.Request.Context()); err != nil {
			log.WarnWithContext(c.Request.Context(), "health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))

	router.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, stats.Stats())
	})

	router.GET("/field-types", func(c *gin.Context) {
		types := entities.FieldTypes()
		out := make([]gin.H, 0, len(types))
		for _, ft := range types {
			out = append(out, gin.H{
				"name":        ft.Name,
				"displayName": ft.DisplayName,
				"kind":        ft.Kind.Name,
				"reverse":     ft.Reverse,
			})
		}
		c.JSON(http.StatusOK, out)
	})

	return router
}
