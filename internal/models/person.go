package models

import (
	"time"

	"gorm.io/gorm"
)

// Person is someone the nearby search can return. Latitude/Longitude are NULL until
// the person shares a position; such rows are placed synthetically around the searcher.
type Person struct {
	ID                uint           `gorm:"primaryKey" json:"id"`
	DisplayName       string         `gorm:"size:100;not null" json:"display_name"`
	Latitude          *float64       `gorm:"type:decimal(10,8);index:idx_people_lat_lng" json:"-"`
	Longitude         *float64       `gorm:"type:decimal(11,8);index:idx_people_lat_lng" json:"-"`
	AccuracyMeters    *float64       `gorm:"type:decimal(8,2)" json:"accuracy_meters,omitempty"`
	IsLocationVisible bool           `gorm:"default:true" json:"is_location_visible"`
	LastUpdatedAt     *time.Time     `gorm:"index" json:"last_updated_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
	UpdatedAt         time.Time      `json:"updated_at"`
	DeletedAt         gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Person) TableName() string {
	return "people"
}
