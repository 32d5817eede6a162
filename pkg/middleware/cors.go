package middleware

import (
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORS builds the cross-origin policy from a comma-separated origin list.
// An empty list falls back to the local development frontend.
func CORS(origins string) gin.HandlerFunc {
	corsConfig := cors.DefaultConfig()

	if origins != "" {
		parts := strings.Split(origins, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		corsConfig.AllowOrigins = parts
	} else {
		corsConfig.AllowOrigins = []string{"http://localhost:3000"}
	}

	corsConfig.AllowMethods = []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization", CorrelationIDHeader}
	corsConfig.ExposeHeaders = []string{CorrelationIDHeader}
	corsConfig.AllowCredentials = true
	corsConfig.MaxAge = 12 * time.Hour

	return cors.New(corsConfig)
}
