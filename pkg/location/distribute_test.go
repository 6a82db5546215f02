package location

import (
	"math"
	"math/rand"
	"testing"
)

func TestDistributeAroundCenter(t *testing.T) {
	known := &Point{Lat: 40.73, Lng: -73.99}
	in := []Entity{
		{ID: "a", Position: known},
		{ID: "b"},
		{ID: "c"},
	}
	center := Point{Lat: 40.7128, Lng: -74.0060}
	const radius = 0.02

	out := DistributeAroundCenter(in, center, radius, rand.New(rand.NewSource(7)))

	if len(out) != len(in) {
		t.Fatalf("got %d entities, want %d", len(out), len(in))
	}
	if out[0].Position != known || out[0].Synthetic {
		t.Errorf("entity with coordinates was changed: %+v", out[0])
	}
	if *known != (Point{Lat: 40.73, Lng: -73.99}) {
		t.Errorf("known position mutated: %+v", *known)
	}
	for _, e := range out[1:] {
		if e.Position == nil {
			t.Fatalf("entity %s left without position", e.ID)
		}
		if !e.Synthetic {
			t.Errorf("entity %s not flagged synthetic", e.ID)
		}
		d := math.Hypot(e.Position.Lat-center.Lat, e.Position.Lng-center.Lng)
		if d > radius {
			t.Errorf("entity %s placed %v deg from center, radius %v", e.ID, d, radius)
		}
	}
	if in[1].Position != nil || in[2].Position != nil {
		t.Error("input slice was mutated")
	}
}

func TestDistributeAroundCenterStaysInRadius(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	center := Point{Lat: -33.8688, Lng: 151.2093}
	entities := make([]Entity, 1000)
	for _, e := range DistributeAroundCenter(entities, center, 0.05, rng) {
		if d := math.Hypot(e.Position.Lat-center.Lat, e.Position.Lng-center.Lng); d > 0.05 {
			t.Fatalf("point %v deg from center exceeds radius", d)
		}
	}
}

func TestDistributeAroundCenterNilRand(t *testing.T) {
	out := DistributeAroundCenter([]Entity{{ID: "x"}}, Point{}, 0.01, nil)
	if out[0].Position == nil {
		t.Fatal("expected a synthetic position")
	}
}
