package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/velocab/ridecore/pkg/metrics"
)

// Metrics records request duration per (method, route, status). The route
// template is used rather than the raw path so ride IDs don't explode the
// label cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		metrics.HTTPRequestDuration.WithLabelValues(
			c.Request.Method,
			route,
			strconv.Itoa(c.Writer.Status()),
		).Observe(time.Since(start).Seconds())
	}
}
