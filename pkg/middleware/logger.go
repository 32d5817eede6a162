package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/velocab/ridecore/pkg/logger"
	"go.uber.org/zap"
)

// RequestLogger logs each HTTP request with latency and status. Location
// ping requests are logged at debug level to keep the hot path out of the
// info stream.
func RequestLogger(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		fields := []zap.Field{
			zap.String("service", serviceName),
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
			zap.Int("response_size", c.Writer.Size()),
		}

		reqLogger := logger.WithContext(c.Request.Context())

		switch {
		case len(c.Errors) > 0:
			fields = append(fields, zap.String("errors", c.Errors.String()))
			reqLogger.Error("request completed with errors", fields...)
		case isHotPath(path):
			reqLogger.Debug("request completed", fields...)
		default:
			reqLogger.Info("request completed", fields...)
		}
	}
}

func isHotPath(path string) bool {
	// POST /api/v1/drivers/:id/location arrives at fleet ping frequency.
	return len(path) > 9 && path[len(path)-9:] == "/location"
}
