package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/getsentry/sentry-go"
	sentrygin "github.com/getsentry/sentry-go/gin"
	"github.com/gin-gonic/gin"
	"github.com/velocab/ridecore/pkg/common"
	"github.com/velocab/ridecore/pkg/logger"
	"go.uber.org/zap"
)

// SentryMiddleware attaches a Sentry hub to each request so downstream
// handlers and the recovery middleware can report with request context.
func SentryMiddleware() gin.HandlerFunc {
	return sentrygin.New(sentrygin.Options{
		Repanic:         true,
		WaitForDelivery: false,
		Timeout:         2 * time.Second,
	})
}

// RecoveryWithSentry recovers from handler panics, reports them to Sentry
// with the request attached, and answers with the standard 500 envelope.
func RecoveryWithSentry() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				hub := sentrygin.GetHubFromContext(c)
				if hub == nil {
					hub = sentry.CurrentHub().Clone()
				}

				hub.Scope().SetRequest(c.Request)
				hub.Scope().SetContext("panic", map[string]interface{}{
					"value":      fmt.Sprintf("%v", r),
					"stacktrace": string(debug.Stack()),
				})
				hub.Scope().SetTag("correlation_id", GetCorrelationID(c))
				hub.Recover(r)

				logger.WithContext(c.Request.Context()).Error("panic recovered",
					zap.Any("panic", r),
					zap.String("path", c.Request.URL.Path),
					zap.String("stack", string(debug.Stack())),
				)

				if !c.Writer.Written() {
					c.AbortWithStatusJSON(http.StatusInternalServerError, common.Response{
						Success: false,
						Error: &common.ErrorInfo{
							Code:      http.StatusInternalServerError,
							ErrorCode: "INTERNAL",
							Message:   "internal server error",
						},
					})
				} else {
					c.Abort()
				}
			}
		}()

		c.Next()
	}
}
