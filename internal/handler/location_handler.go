package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nearby/internal/middleware"
	"nearby/internal/tracking"
)

// Tracker is the part of tracking.Tracker the HTTP layer drives.
type Tracker interface {
	Start(ctx context.Context)
	Stop()
	Snapshot() tracking.Snapshot
}

// PositionSharer records and withdraws a person's shared position.
type PositionSharer interface {
	SharePosition(ctx context.Context, id, name string, lat, lng float64) error
	ForgetPosition(ctx context.Context, id string) error
}

type LocationHandler struct {
	tracker Tracker
	sharer  PositionSharer
	// runCtx outlives requests; tracking started over HTTP runs until Stop or shutdown.
	runCtx context.Context
}

func NewLocationHandler(runCtx context.Context, tracker Tracker, sharer PositionSharer) *LocationHandler {
	return &LocationHandler{tracker: tracker, sharer: sharer, runCtx: runCtx}
}

// GetState returns the tracker snapshot: coords, error, isTracking, lastUpdated,
// permissionStatus, phase and timeSinceUpdate.
func (h *LocationHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

func (h *LocationHandler) StartTracking(c *gin.Context) {
	h.tracker.Start(h.runCtx)
	c.JSON(http.StatusAccepted, h.tracker.Snapshot())
}

func (h *LocationHandler) StopTracking(c *gin.Context) {
	h.tracker.Stop()
	c.JSON(http.StatusOK, h.tracker.Snapshot())
}

// SharePosition stores the caller's own position (fuzzed) in the people directory.
func (h *LocationHandler) SharePosition(c *gin.Context) {
	var req struct {
		Latitude    *float64 `json:"latitude" binding:"required"`
		Longitude   *float64 `json:"longitude" binding:"required"`
		DisplayName string   `json:"display_name" binding:"max=100"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	err := h.sharer.SharePosition(c.Request.Context(), callerID(c), req.DisplayName, *req.Latitude, *req.Longitude)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ClearPosition withdraws the caller's shared position. Clearing twice is not an error.
func (h *LocationHandler) ClearPosition(c *gin.Context) {
	if err := h.sharer.ForgetPosition(c.Request.Context(), callerID(c)); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to clear position"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "cleared"})
}

func callerID(c *gin.Context) string {
	return strconv.FormatUint(uint64(middleware.GetUserID(c)), 10)
}
