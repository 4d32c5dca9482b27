package handlers

import (
	"net/http"

	"rentflow/utils"

	"github.com/gin-gonic/gin"
)

// HealthHandler reports the last dependency probe. It answers 503 once a
// probe has run and found Mongo or Redis down.
func HealthHandler(c *gin.Context) {
	status := utils.GetHealthStatus()
	if !status.CheckedAt.IsZero() && !status.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": status})
}
