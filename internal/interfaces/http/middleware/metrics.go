package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

// HTTPMetrics receives per-request observations.
type HTTPMetrics interface {
	ObserveHTTPRequest(method, path string, status int, elapsed time.Duration)
}

// Metrics records request counts and latency per route. The templated
// route path is used as the label so path parameters do not blow up
// cardinality; unmatched routes are grouped under "unmatched".
func Metrics(metrics HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
