package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func Health(tracker Tracker) gin.HandlerFunc {
	return func(c *gin.Context) {
		snap := tracker.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":      "ok",
			"phase":       snap.Phase,
			"is_tracking": snap.IsTracking,
		})
	}
}
