package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"disasterwatch/api/internal/metrics"
)

// Metrics records request counts and latency labelled by route pattern,
// so unmatched paths share a single "unmatched" series.
func Metrics(collector *metrics.Collector) gin.HandlerFunc {
	return func(c *gin.Context) {
		if collector == nil {
			c.Next()
			return
		}

		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		collector.ObserveRequest(route, c.Request.Method, c.Writer.Status(), time.Since(start).Seconds())
	}
}
