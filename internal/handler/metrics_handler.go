package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/vtu-tools/college-erp-api/internal/service"
)

// MetricsHandler exposes the scrape and liveness endpoints.
type MetricsHandler struct {
	metrics *service.MetricsService
}

func NewMetricsHandler(metrics *service.MetricsService) *MetricsHandler {
	return &MetricsHandler{metrics: metrics}
}

// Prometheus serves the registry scrape output.
func (h *MetricsHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.Handler().ServeHTTP(c.Writer, c.Request)
}

// Health answers liveness checks; readiness with a database ping is wired
// separately at /ready.
func (h *MetricsHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "college-erp-api"})
}
