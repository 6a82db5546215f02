package service

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"nearby/config"
	"nearby/internal/repository"
	"nearby/internal/tracking"
	"nearby/pkg/location"
)

type staticLocator struct{ snap tracking.Snapshot }

func (l staticLocator) Snapshot() tracking.Snapshot { return l.snap }

type memDirectory struct {
	entities  []location.Entity
	err       error
	gotRadius float64
	tracked   map[string]location.Point
	names     map[string]string
	forgotten []string
}

func (d *memDirectory) ListAround(_ context.Context, _ location.Point, radiusKm float64, _ int) ([]location.Entity, error) {
	d.gotRadius = radiusKm
	return d.entities, d.err
}

func (d *memDirectory) Track(_ context.Context, id, name string, lat, lng float64) error {
	if d.tracked == nil {
		d.tracked = make(map[string]location.Point)
		d.names = make(map[string]string)
	}
	d.tracked[id] = location.Point{Lat: lat, Lng: lng}
	d.names[id] = name
	return d.err
}

func (d *memDirectory) Forget(_ context.Context, id string) error {
	d.forgotten = append(d.forgotten, id)
	return d.err
}

func locationConfig() config.LocationConfig {
	return config.LocationConfig{NearbyRadiusMiles: 5, SpreadDeg: 0.05}
}

func fixAt(lat, lng float64) staticLocator {
	return staticLocator{snap: tracking.Snapshot{State: tracking.State{
		Coords:     &tracking.Coordinates{Latitude: lat, Longitude: lng},
		IsTracking: true,
		Phase:      tracking.PhaseTracking,
	}}}
}

func TestNearbyWithoutFix(t *testing.T) {
	s := NewNearbyService(staticLocator{}, &memDirectory{}, locationConfig(), nil)
	if _, err := s.Nearby(context.Background(), NearbyQuery{}); !errors.Is(err, ErrNoFix) {
		t.Errorf("err = %v, want ErrNoFix", err)
	}
}

func TestNearby(t *testing.T) {
	dir := &memDirectory{entities: []location.Entity{
		{ID: "far", Position: &location.Point{Lat: 40.7580, Lng: -73.9855}},
		{ID: "near", Position: &location.Point{Lat: 40.7138, Lng: -74.0060}},
		{ID: "unknown"},
	}}
	s := NewNearbyService(fixAt(40.7128, -74.0060), dir, locationConfig(), nil)
	s.rng = rand.New(rand.NewSource(1))

	res, err := s.Nearby(context.Background(), NearbyQuery{Width: 400, Height: 300})
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(dir.gotRadius-5*kmPerMile) > 1e-9 {
		t.Errorf("directory radius = %v km", dir.gotRadius)
	}
	if len(res.People) != 3 {
		t.Fatalf("people = %d", len(res.People))
	}
	if res.People[0].Entity.ID != "near" {
		t.Errorf("nearest = %s, want near", res.People[0].Entity.ID)
	}
	if res.People[0].Distance != "0.1 miles away" {
		t.Errorf("distance = %q", res.People[0].Distance)
	}
	for i := 1; i < len(res.People); i++ {
		if res.People[i].DistanceMiles < res.People[i-1].DistanceMiles {
			t.Error("results not sorted by distance")
		}
	}
	for _, p := range res.People {
		if p.Entity.ID == "unknown" && !p.Entity.Synthetic {
			t.Error("placed entity not marked synthetic")
		}
		if p.Pixel == nil {
			t.Errorf("%s: missing pixel", p.Entity.ID)
		}
	}
	if res.Center.Lat != 40.7128 || !res.Tracking.IsTracking {
		t.Errorf("center/tracking = %+v / %+v", res.Center, res.Tracking)
	}
}

func TestNearbyRadiusOverrideAndError(t *testing.T) {
	dir := &memDirectory{err: errors.New("redis down")}
	s := NewNearbyService(fixAt(0, 0), dir, locationConfig(), nil)
	if _, err := s.Nearby(context.Background(), NearbyQuery{RadiusMiles: 1}); err == nil {
		t.Fatal("expected directory error")
	}
	if math.Abs(dir.gotRadius-kmPerMile) > 1e-9 {
		t.Errorf("radius = %v km, want %v", dir.gotRadius, kmPerMile)
	}
}

func TestSharePositionFuzzes(t *testing.T) {
	dir := &memDirectory{}
	s := NewNearbyService(staticLocator{}, dir, locationConfig(), nil)
	s.rng = rand.New(rand.NewSource(7))

	if err := s.SharePosition(context.Background(), "42", "Ada", 10, 20); err != nil {
		t.Fatal(err)
	}
	if dir.names["42"] != "Ada" {
		t.Errorf("name = %q", dir.names["42"])
	}
	got := dir.tracked["42"]
	maxOffset := location.FuzzMeters(100)
	if math.Abs(got.Lat-10) > maxOffset || math.Abs(got.Lng-20) > maxOffset {
		t.Errorf("fuzzed position %+v too far from 10,20", got)
	}
	if got.Lat == 10 && got.Lng == 20 {
		t.Error("position stored without fuzz")
	}

	if err := s.SharePosition(context.Background(), "42", "", 100, 0); err == nil {
		t.Error("expected validation error")
	}
}

func TestForgetPosition(t *testing.T) {
	dir := &memDirectory{}
	s := NewNearbyService(staticLocator{}, dir, locationConfig(), nil)
	if err := s.ForgetPosition(context.Background(), "42"); err != nil {
		t.Fatal(err)
	}
	if len(dir.forgotten) != 1 || dir.forgotten[0] != "42" {
		t.Errorf("forgotten = %v", dir.forgotten)
	}

	dir.err = errors.New("redis down")
	if err := s.ForgetPosition(context.Background(), "42"); err == nil {
		t.Error("expected directory error")
	}
}

func newGeoDirectory(t *testing.T) *repository.GeoDirectory {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	return repository.NewGeoDirectory(rdb)
}

func findPerson(res *NearbyResult, id string) (location.Entity, float64, bool) {
	for _, p := range res.People {
		if p.Entity.ID == id {
			return p.Entity, p.DistanceMiles, true
		}
	}
	return location.Entity{}, 0, false
}

func TestShareThenNearbyWithGeoDirectory(t *testing.T) {
	ctx := context.Background()
	s := NewNearbyService(fixAt(40.7128, -74.0060), newGeoDirectory(t), locationConfig(), nil)
	s.rng = rand.New(rand.NewSource(11))

	if err := s.SharePosition(ctx, "42", "Ada", 40.7138, -74.0060); err != nil {
		t.Fatal(err)
	}
	if err := s.SharePosition(ctx, "43", "Grace", 34.0522, -118.2437); err != nil {
		t.Fatal(err)
	}

	res, err := s.Nearby(ctx, NearbyQuery{Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	ada, miles, ok := findPerson(res, "42")
	if !ok {
		t.Fatalf("shared person missing from nearby: %+v", res.People)
	}
	if ada.Name != "Ada" || ada.Synthetic || ada.Position == nil {
		t.Errorf("ada = %+v", ada)
	}
	if miles > 0.2 {
		t.Errorf("ada is %.3f miles away, want under 0.2", miles)
	}
	if _, _, ok := findPerson(res, "43"); ok {
		t.Error("person outside the radius returned")
	}

	if err := s.ForgetPosition(ctx, "42"); err != nil {
		t.Fatal(err)
	}
	res, err = s.Nearby(ctx, NearbyQuery{Limit: 50})
	if err != nil {
		t.Fatal(err)
	}
	ada, _, ok = findPerson(res, "42")
	if !ok || !ada.Synthetic || ada.Name != "Ada" {
		t.Errorf("after forget ada = %+v (found %v), want synthetic placement", ada, ok)
	}
}
