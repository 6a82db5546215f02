package location

import (
	"math"
	"strconv"
)

// FormatDistance renders a distance in miles as "<value> miles away",
// rounded half away from zero to one decimal.
func FormatDistance(miles float64) string {
	return FormatDistanceUnit(miles, "miles")
}

// FormatDistanceUnit is FormatDistance with a caller supplied unit label.
func FormatDistanceUnit(distance float64, unit string) string {
	rounded := math.Round(distance*10) / 10
	return strconv.FormatFloat(rounded, 'f', 1, 64) + " " + unit + " away"
}
