package middleware

import (
	"github.com/gin-gonic/gin"
)

// getClientIP keys the per-client rate limiter. X-Forwarded-For and X-Real-IP
// only count when the immediate hop is in the engine's trusted proxies
// (TRUSTED_PROXIES); otherwise the socket address is used, so a client cannot
// pick a fresh bucket by setting a header.
func getClientIP(c *gin.Context) string {
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
