package handler

import (
	"math"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"nearby/pkg/location"
)

// DistanceHandler computes great-circle distances, either between two given points or from
// the device's last known position.
type DistanceHandler struct {
	tracker Tracker
}

func NewDistanceHandler(tracker Tracker) *DistanceHandler {
	return &DistanceHandler{tracker: tracker}
}

// GetDistance answers GET /distance?from_lat=&from_lng=&to_lat=&to_lng=. Both points are
// required; the device position is never used here.
func (h *DistanceHandler) GetDistance(c *gin.Context) {
	from, ok := pointQuery(c, "from_lat", "from_lng")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from_lat and from_lng are required"})
		return
	}
	to, ok := pointQuery(c, "to_lat", "to_lng")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_lat and to_lng are required"})
		return
	}
	writeDistance(c, from, to)
}

// GetDistanceFromDevice answers GET /location/distance?to_lat=&to_lng= from the device's
// last known position.
func (h *DistanceHandler) GetDistanceFromDevice(c *gin.Context) {
	to, ok := pointQuery(c, "to_lat", "to_lng")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "to_lat and to_lng are required"})
		return
	}
	snap := h.tracker.Snapshot()
	if snap.Coords == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "location not available yet"})
		return
	}
	writeDistance(c, snap.Coords.Point(), to)
}

func writeDistance(c *gin.Context, from, to location.Point) {
	miles := location.HaversineMiles(from.Lat, from.Lng, to.Lat, to.Lng)
	km := location.HaversineKm(from.Lat, from.Lng, to.Lat, to.Lng)
	c.JSON(http.StatusOK, gin.H{
		"distance_miles": math.Round(miles*100) / 100,
		"distance_km":    math.Round(km*100) / 100,
		"distance":       location.FormatDistance(miles),
	})
}

func pointQuery(c *gin.Context, latKey, lngKey string) (location.Point, bool) {
	lat, err1 := strconv.ParseFloat(c.Query(latKey), 64)
	lng, err2 := strconv.ParseFloat(c.Query(lngKey), 64)
	if err1 != nil || err2 != nil {
		return location.Point{}, false
	}
	if location.ValidateLatLng(lat, lng) != nil {
		return location.Point{}, false
	}
	return location.Point{Lat: lat, Lng: lng}, true
}
