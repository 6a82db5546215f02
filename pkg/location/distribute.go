package location

import (
	"math"
	"math/rand"
)

// Entity is a remote person (or anything else) shown around the local user.
// Position is nil when upstream data carries no coordinates.
type Entity struct {
	ID        string `json:"id"`
	Name      string `json:"name,omitempty"`
	Position  *Point `json:"position,omitempty"`
	Synthetic bool   `json:"synthetic,omitempty"` // Position came from DistributeAroundCenter
}

// DistributeAroundCenter gives every entity without a position a random point within
// radius degrees of center. Angle and offset are both uniform, so points bunch toward
// the centre (not area-uniform). Entities that already have a position are returned as is.
// The input slice is left untouched. A nil rng uses the math/rand global source.
func DistributeAroundCenter(entities []Entity, center Point, radius float64, rng *rand.Rand) []Entity {
	float := rand.Float64
	if rng != nil {
		float = rng.Float64
	}
	out := make([]Entity, len(entities))
	for i, e := range entities {
		if e.Position != nil {
			out[i] = e
			continue
		}
		angle := float() * 2 * math.Pi
		offset := float() * radius
		e.Position = &Point{
			Lat: center.Lat + offset*math.Cos(angle),
			Lng: center.Lng + offset*math.Sin(angle),
		}
		e.Synthetic = true
		out[i] = e
	}
	return out
}
