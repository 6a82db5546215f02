package service

import (
	"context"
	"errors"
	"math/rand"

	"go.uber.org/zap"

	"nearby/config"
	"nearby/internal/tracking"
	"nearby/pkg/location"
	"nearby/pkg/proximity"
)

const kmPerMile = 1.609344

// ErrNoFix is returned by Nearby while the tracker has never produced coordinates.
var ErrNoFix = errors.New("no position fix yet")

// Directory lists people around a point and records their shared positions.
// repository.PeopleRepository and repository.GeoDirectory implement it.
type Directory interface {
	ListAround(ctx context.Context, center location.Point, radiusKm float64, limit int) ([]location.Entity, error)
	// Track stores id's position, adding id to the directory if needed. An empty name
	// keeps the stored one.
	Track(ctx context.Context, id, name string, lat, lng float64) error
	// Forget drops id's position; id stays listed and is placed synthetically.
	Forget(ctx context.Context, id string) error
}

// Locator is the read side of the tracker.
type Locator interface {
	Snapshot() tracking.Snapshot
}

type NearbyQuery struct {
	RadiusMiles float64
	Limit       int
	Width       float64
	Height      float64
}

type NearbyResult struct {
	Center   location.Point     `json:"center"`
	Tracking tracking.Snapshot  `json:"tracking"`
	People   []proximity.Result `json:"people"`
}

type NearbyService struct {
	locator    Locator
	dir        Directory
	cfg        config.LocationConfig
	fuzzMeters float64
	rng        *rand.Rand
	logger     *zap.Logger
}

func NewNearbyService(locator Locator, dir Directory, cfg config.LocationConfig, logger *zap.Logger) *NearbyService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NearbyService{locator: locator, dir: dir, cfg: cfg, fuzzMeters: 100, logger: logger}
}

// Nearby lists people around the device's last known position, nearest first. People the
// directory has no position for are placed randomly within the configured spread and
// marked synthetic.
func (s *NearbyService) Nearby(ctx context.Context, q NearbyQuery) (*NearbyResult, error) {
	snap := s.locator.Snapshot()
	if snap.Coords == nil {
		return nil, ErrNoFix
	}
	center := snap.Coords.Point()

	radius := q.RadiusMiles
	if radius <= 0 {
		radius = s.cfg.NearbyRadiusMiles
	}
	entities, err := s.dir.ListAround(ctx, center, radius*kmPerMile, q.Limit)
	if err != nil {
		s.logger.Error("directory listing failed", zap.Error(err))
		return nil, err
	}

	people := proximity.Annotate(center, entities, proximity.Options{
		RadiusMiles: radius,
		SpreadDeg:   s.cfg.SpreadDeg,
		Width:       q.Width,
		Height:      q.Height,
		Rand:        s.rng,
	})
	return &NearbyResult{Center: center, Tracking: snap, People: people}, nil
}

// SharePosition records a person's position with up to fuzzMeters of random offset on
// each axis so the exact location is never stored.
func (s *NearbyService) SharePosition(ctx context.Context, id, name string, lat, lng float64) error {
	if err := location.ValidateLatLng(lat, lng); err != nil {
		return err
	}
	lat += location.FuzzMeters(s.fuzzMeters * (2*s.float64() - 1))
	lng += location.FuzzMeters(s.fuzzMeters * (2*s.float64() - 1))
	lat = clamp(lat, -90, 90)
	lng = clamp(lng, -180, 180)
	if err := s.dir.Track(ctx, id, name, lat, lng); err != nil {
		s.logger.Error("share position failed", zap.String("person", id), zap.Error(err))
		return err
	}
	return nil
}

// ForgetPosition withdraws a person's shared position.
func (s *NearbyService) ForgetPosition(ctx context.Context, id string) error {
	if err := s.dir.Forget(ctx, id); err != nil {
		s.logger.Error("forget position failed", zap.String("person", id), zap.Error(err))
		return err
	}
	return nil
}

func (s *NearbyService) float64() float64 {
	if s.rng != nil {
		return s.rng.Float64()
	}
	return rand.Float64()
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
