package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/timeout"
	"github.com/gin-gonic/gin"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/logger"
	"go.uber.org/zap"
)

// RequestTimeout caps each handler at the configured duration and answers
// with the 504 envelope when it expires before the handler responds.
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return timeout.New(
		timeout.WithTimeout(d),
		timeout.WithHandler(func(c *gin.Context) {
			c.Next()
		}),
		timeout.WithResponse(func(c *gin.Context) {
			logger.WithContext(c.Request.Context()).Warn("request timeout",
				zap.String("path", c.Request.URL.Path),
				zap.String("method", c.Request.Method),
				zap.Duration("timeout", d),
			)

			c.JSON(http.StatusGatewayTimeout, common.Response{
				Success: false,
				Error: &common.ErrorInfo{
					Code:      http.StatusGatewayTimeout,
					ErrorCode: "TIMEOUT",
					Message:   "request took too long to process",
					Retryable: true,
				},
			})
		}),
	)
}
