package proximity

import (
	"math"
	"math/rand"
	"sort"

	"nearby/pkg/location"
)

// Band names how much of the search radius separates someone from the local user.
type Band string

const (
	BandVeryClose  Band = "Very Close"
	BandNearby     Band = "Nearby"
	BandWithinArea Band = "Within Area"
	BandFar        Band = "Far (within range)"
)

// bands is ordered by descending floor; the first floor a progress value reaches wins.
var bands = []struct {
	floor float64
	band  Band
}{
	{75, BandVeryClose},
	{50, BandNearby},
	{25, BandWithinArea},
}

// Progress is the share of the search radius left between someone and the local user, as
// a percentage: 100 at the center, 0 at or beyond the edge or for a non-positive radius.
func Progress(distanceMiles, radiusMiles float64) float64 {
	if radiusMiles <= 0 || distanceMiles >= radiusMiles {
		return 0
	}
	return math.Min(100, math.Max(0, 100*(radiusMiles-distanceMiles)/radiusMiles))
}

// Label buckets a Progress value. Nobody left at the edge gets no label.
func Label(progress float64) Band {
	for _, b := range bands {
		if progress >= b.floor {
			return b.band
		}
	}
	if progress > 0 {
		return BandFar
	}
	return ""
}

// Options controls Annotate.
type Options struct {
	RadiusMiles float64 // used for Progress/Label; <= 0 leaves them empty
	SpreadDeg   float64 // disk radius for entities that arrive without coordinates
	Width       float64 // canvas size for pixel placement; zero skips projection
	Height      float64
	Rand        *rand.Rand
}

// Result is one entity with its distance from the local user. Not persisted.
type Result struct {
	Entity        location.Entity `json:"entity"`
	DistanceMiles float64         `json:"distance_miles"`
	Distance      string          `json:"distance"`
	Progress      float64         `json:"proximity_progress"`
	Label         Band            `json:"proximity_label,omitempty"`
	Pixel         *location.Pixel `json:"pixel,omitempty"`
}

// Annotate computes the distance from center to every entity, nearest first.
// Entities without coordinates are first placed with DistributeAroundCenter so that every
// result has something to render; such placements are marked Synthetic and are not real.
func Annotate(center location.Point, entities []location.Entity, opts Options) []Result {
	placed := location.DistributeAroundCenter(entities, center, opts.SpreadDeg, opts.Rand)
	out := make([]Result, 0, len(placed))
	for _, e := range placed {
		d := location.HaversineMiles(center.Lat, center.Lng, e.Position.Lat, e.Position.Lng)
		r := Result{
			Entity:        e,
			DistanceMiles: d,
			Distance:      location.FormatDistance(d),
		}
		if opts.RadiusMiles > 0 {
			p := Progress(d, opts.RadiusMiles)
			r.Progress = math.Round(p*10) / 10
			r.Label = Label(p)
		}
		if opts.Width > 0 && opts.Height > 0 {
			px := location.ProjectToPixels(e.Position.Lat, e.Position.Lng, center.Lat, center.Lng, opts.Width, opts.Height)
			r.Pixel = &px
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].DistanceMiles < out[j].DistanceMiles
	})
	return out
}
