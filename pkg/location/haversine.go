package location

import (
	"fmt"
	"math"
)

const (
	// EarthRadiusMiles is the Earth radius used for user-facing distances.
	EarthRadiusMiles = 3958.8
	// EarthRadiusKm is the Earth radius in kilometers for Haversine.
	EarthRadiusKm = 6371.0
)

// Point is a latitude/longitude pair in degrees.
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ToRadians converts degrees to radians.
func ToRadians(degrees float64) float64 {
	return degrees * math.Pi / 180
}

// ValidateLatLng reports an error when lat/lng fall outside [-90, 90] / [-180, 180].
// Out of range values are never clamped.
func ValidateLatLng(lat, lng float64) error {
	if math.IsNaN(lat) || lat < -90 || lat > 90 {
		return fmt.Errorf("latitude %v out of range [-90, 90]", lat)
	}
	if math.IsNaN(lng) || lng < -180 || lng > 180 {
		return fmt.Errorf("longitude %v out of range [-180, 180]", lng)
	}
	return nil
}

// HaversineMiles returns the great-circle distance in miles between two points (degrees).
// Inputs are not validated; callers holding untrusted values use ValidateLatLng first.
func HaversineMiles(lat1, lng1, lat2, lng2 float64) float64 {
	return haversine(lat1, lng1, lat2, lng2, EarthRadiusMiles)
}

// HaversineKm returns distance in km between two points (lat/lng in degrees).
func HaversineKm(lat1, lng1, lat2, lng2 float64) float64 {
	return haversine(lat1, lng1, lat2, lng2, EarthRadiusKm)
}

func haversine(lat1, lng1, lat2, lng2, radius float64) float64 {
	φ1, φ2 := ToRadians(lat1), ToRadians(lat2)
	Δφ := ToRadians(lat2 - lat1)
	Δλ := ToRadians(lng2 - lng1)
	a := math.Sin(Δφ/2)*math.Sin(Δφ/2) +
		math.Cos(φ1)*math.Cos(φ2)*math.Sin(Δλ/2)*math.Sin(Δλ/2)
	// rounding can push a a hair past 1 for antipodal points
	a = math.Min(1, math.Max(0, a))
	c := 2 * math.Atan2(math.Sqrt(a), math.Sqrt(1-a))
	return radius * c
}

// FuzzMeters converts a metre offset to an approximate degree offset.
// Used to obfuscate exact location for map display.
func FuzzMeters(meters float64) float64 {
	// ~111km per degree at equator; 1m ≈ 1/111000 degree
	return meters / 111000.0
}
