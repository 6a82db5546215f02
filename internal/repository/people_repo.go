package repository

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"nearby/internal/models"
	"nearby/pkg/location"
)

// kmPerDegree slightly underestimates one degree of latitude, so boxes err on the large side.
const kmPerDegree = 111.0

// PeopleRepository is the MySQL-backed people directory.
type PeopleRepository struct {
	db *gorm.DB
}

func NewPeopleRepository(db *gorm.DB) *PeopleRepository {
	return &PeopleRepository{db: db}
}

// Track upserts the position of the person whose decimal id is given, creating the row on
// first share. A non-empty name also replaces the display name.
func (r *PeopleRepository) Track(ctx context.Context, id, name string, lat, lng float64) error {
	pid, err := parsePersonID(id)
	if err != nil {
		return err
	}
	if err := location.ValidateLatLng(lat, lng); err != nil {
		return err
	}
	now := time.Now()
	p := models.Person{
		ID:            pid,
		DisplayName:   name,
		Latitude:      &lat,
		Longitude:     &lng,
		LastUpdatedAt: &now,
	}
	columns := []string{"latitude", "longitude", "accuracy_meters", "last_updated_at", "updated_at"}
	if name != "" {
		columns = append(columns, "display_name")
	}
	err = r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns(columns),
	}).Create(&p).Error
	if err != nil {
		return fmt.Errorf("failed to track person %d: %w", pid, err)
	}
	return nil
}

// Forget clears a person's position; they are placed synthetically again.
func (r *PeopleRepository) Forget(ctx context.Context, id string) error {
	pid, err := parsePersonID(id)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Person{}).Where("id = ?", pid).Updates(map[string]any{
		"latitude":        nil,
		"longitude":       nil,
		"accuracy_meters": nil,
	}).Error
}

// ListAround returns visible people within radiusKm of center plus everyone without a
// position. The bounding box narrows the query; rows in its corners are dropped here.
func (r *PeopleRepository) ListAround(ctx context.Context, center location.Point, radiusKm float64, limit int) ([]location.Entity, error) {
	if limit <= 0 {
		limit = 50
	}
	box := boundingBox(center, radiusKm)

	var rows []models.Person
	err := r.db.WithContext(ctx).
		Where("is_location_visible = ?", true).
		Where("(latitude BETWEEN ? AND ? AND longitude BETWEEN ? AND ?) OR latitude IS NULL OR longitude IS NULL",
			box.latMin, box.latMax, box.lngMin, box.lngMax).
		Order("last_updated_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return withinRadius(peopleToEntities(rows), center, radiusKm), nil
}

func parsePersonID(id string) (uint, error) {
	n, err := strconv.ParseUint(id, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid person id %q: %w", id, err)
	}
	return uint(n), nil
}

type bbox struct {
	latMin, latMax, lngMin, lngMax float64
}

// boundingBox covers every point within radiusKm of center. Longitude spans widen by
// 1/cos(lat); when the circle reaches a pole or crosses the antimeridian the box takes the
// whole longitude range.
func boundingBox(center location.Point, radiusKm float64) bbox {
	dLat := radiusKm / kmPerDegree
	b := bbox{
		latMin: center.Lat - dLat,
		latMax: center.Lat + dLat,
		lngMin: -180,
		lngMax: 180,
	}
	if b.latMin <= -90 || b.latMax >= 90 {
		return b
	}
	dLng := dLat / math.Cos(location.ToRadians(center.Lat))
	if center.Lng-dLng < -180 || center.Lng+dLng > 180 {
		return b
	}
	b.lngMin, b.lngMax = center.Lng-dLng, center.Lng+dLng
	return b
}

func inRadius(center, p location.Point, radiusKm float64) bool {
	return location.HaversineKm(center.Lat, center.Lng, p.Lat, p.Lng) <= radiusKm
}

// withinRadius keeps entities without a position and those inside radiusKm.
func withinRadius(entities []location.Entity, center location.Point, radiusKm float64) []location.Entity {
	out := entities[:0]
	for _, e := range entities {
		if e.Position == nil || inRadius(center, *e.Position, radiusKm) {
			out = append(out, e)
		}
	}
	return out
}

func peopleToEntities(rows []models.Person) []location.Entity {
	out := make([]location.Entity, 0, len(rows))
	for _, p := range rows {
		e := location.Entity{ID: strconv.FormatUint(uint64(p.ID), 10), Name: p.DisplayName}
		if p.Latitude != nil && p.Longitude != nil {
			e.Position = &location.Point{Lat: *p.Latitude, Lng: *p.Longitude}
		}
		out = append(out, e)
	}
	return out
}
