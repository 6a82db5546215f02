package location

// ProjectionSpanDeg is the angular extent (±0.05°) mapped onto the full canvas.
const ProjectionSpanDeg = 0.1

// Pixel is a position on a width x height canvas, origin top-left.
type Pixel struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// ProjectToPixels places lat/lon on a canvas centred on centerLat/centerLon.
// It is a linear approximation for schematic placement inside a ±0.05° box, not a map projection.
func ProjectToPixels(lat, lon, centerLat, centerLon, width, height float64) Pixel {
	x := (lon-centerLon)/ProjectionSpanDeg*width + width/2
	y := height/2 - (lat-centerLat)/ProjectionSpanDeg*height
	return Pixel{X: x, Y: y}
}
