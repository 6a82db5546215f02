package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nearby/internal/service"
)

type NearbyFinder interface {
	Nearby(ctx context.Context, q service.NearbyQuery) (*service.NearbyResult, error)
}

type NearbyHandler struct {
	finder NearbyFinder
}

func NewNearbyHandler(finder NearbyFinder) *NearbyHandler {
	return &NearbyHandler{finder: finder}
}

// List returns people around the device, nearest first, with formatted distance,
// proximity progress/label and, when width and height are given, map pixels.
func (h *NearbyHandler) List(c *gin.Context) {
	var q service.NearbyQuery
	var err error
	if q.RadiusMiles, err = floatQuery(c, "radius_miles"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid radius_miles"})
		return
	}
	if q.Width, err = floatQuery(c, "width"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid width"})
		return
	}
	if q.Height, err = floatQuery(c, "height"); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid height"})
		return
	}
	q.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	if q.Limit <= 0 || q.Limit > 200 {
		q.Limit = 50
	}

	res, err := h.finder.Nearby(c.Request.Context(), q)
	if errors.Is(err, service.ErrNoFix) {
		c.JSON(http.StatusConflict, gin.H{"error": "location not available yet"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "nearby lookup failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}

// floatQuery returns 0 for a missing parameter and an error for a malformed or negative one.
func floatQuery(c *gin.Context, key string) (float64, error) {
	s := c.Query(key)
	if s == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if v < 0 {
		return 0, errors.New("negative")
	}
	return v, nil
}
