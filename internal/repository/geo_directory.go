package repository

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"nearby/pkg/location"
)

const (
	KeyPeople      = "people"
	KeyPeopleNames = "people:names"
	GeoKeyPeople   = "geo:people"
)

// GeoDirectory is the Redis-backed people directory. Membership lives in a set, display
// names in a hash and positions in a geo index; a member missing from the geo index has no
// known position.
type GeoDirectory struct {
	rdb *redis.Client
}

func NewGeoDirectory(rdb *redis.Client) *GeoDirectory {
	return &GeoDirectory{rdb: rdb}
}

// Track records id's position and makes id a member of the directory. A non-empty name
// replaces the stored display name.
func (d *GeoDirectory) Track(ctx context.Context, id, name string, lat, lng float64) error {
	if err := location.ValidateLatLng(lat, lng); err != nil {
		return err
	}
	pipe := d.rdb.TxPipeline()
	pipe.SAdd(ctx, KeyPeople, id)
	if name != "" {
		pipe.HSet(ctx, KeyPeopleNames, id, name)
	}
	pipe.GeoAdd(ctx, GeoKeyPeople, &redis.GeoLocation{
		Name:      id,
		Latitude:  lat,
		Longitude: lng,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to track %s: %w", id, err)
	}
	return nil
}

// Forget drops id's position. The member stays listed without one.
func (d *GeoDirectory) Forget(ctx context.Context, id string) error {
	if err := d.rdb.ZRem(ctx, GeoKeyPeople, id).Err(); err != nil {
		return fmt.Errorf("failed to remove %s from geo index: %w", id, err)
	}
	return nil
}

// ListAround returns members within radiusKm of center plus members with no position.
func (d *GeoDirectory) ListAround(ctx context.Context, center location.Point, radiusKm float64, limit int) ([]location.Entity, error) {
	ids, err := d.rdb.SMembers(ctx, KeyPeople).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	if len(ids) == 0 {
		return []location.Entity{}, nil
	}
	positions, err := d.rdb.GeoPos(ctx, GeoKeyPeople, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read positions: %w", err)
	}
	names, err := d.rdb.HMGet(ctx, KeyPeopleNames, ids...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read names: %w", err)
	}

	out := make([]location.Entity, 0, len(ids))
	for i, id := range ids {
		e := location.Entity{ID: id}
		if name, ok := names[i].(string); ok {
			e.Name = name
		}
		if pos := positions[i]; pos != nil {
			e.Position = &location.Point{Lat: pos.Latitude, Lng: pos.Longitude}
			if !inRadius(center, *e.Position, radiusKm) {
				continue
			}
		}
		out = append(out, e)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
