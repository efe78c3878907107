package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/vtu-tools/college-erp-api/internal/service"
)

// Metrics records per-route request counts and latency. The route template
// keeps label cardinality flat; raw paths carry student USNs and subject ids.
func Metrics(metricsSvc *service.MetricsService) gin.HandlerFunc {
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
