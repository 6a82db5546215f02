// Package tracking owns the device's live location state. It merges a one-shot fetch, a
// continuous watch and a forced refresh timer from a LocationProvider into one State, and
// follows the runtime's location permission through a PermissionProvider.
package tracking

import (
	"fmt"

	"nearby/pkg/location"
)

// Coordinates is a single position reading. Readings replace each other; they are never
// mutated in place.
type Coordinates struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`  // metres
	Timestamp int64    `json:"timestamp,omitempty"` // epoch ms, 0 when the provider gave none
}

// Validate rejects readings outside the valid latitude/longitude range.
func (c Coordinates) Validate() error {
	if err := location.ValidateLatLng(c.Latitude, c.Longitude); err != nil {
		return fmt.Errorf("invalid reading: %w", err)
	}
	return nil
}

// Point drops accuracy and timestamp.
func (c Coordinates) Point() location.Point {
	return location.Point{Lat: c.Latitude, Lng: c.Longitude}
}

// ErrorKind classifies a tracking failure. The zero value means no error.
type ErrorKind string

const (
	ErrorNone                ErrorKind = ""
	ErrorPermissionDenied    ErrorKind = "PermissionDenied"
	ErrorPositionUnavailable ErrorKind = "PositionUnavailable"
	ErrorTimeout             ErrorKind = "Timeout"
	ErrorUnsupported         ErrorKind = "Unsupported"
)

// PermissionState mirrors the runtime's location permission. The zero value means unknown.
type PermissionState string

const (
	PermissionUnknown PermissionState = ""
	PermissionGranted PermissionState = "granted"
	PermissionDenied  PermissionState = "denied"
	PermissionPrompt  PermissionState = "prompt"
)

// Phase is the tracker's lifecycle position:
//
//	Idle -> Acquiring -> Tracking <-> Degraded(kind) -> Stopped
type Phase string

const (
	PhaseIdle      Phase = "idle"
	PhaseAcquiring Phase = "acquiring"
	PhaseTracking  Phase = "tracking"
	PhaseDegraded  Phase = "degraded"
	PhaseStopped   Phase = "stopped"
)

// State is the tracker's merged view. Coords survive later failures.
type State struct {
	Coords           *Coordinates    `json:"coords"`
	Error            string          `json:"error,omitempty"`
	ErrorKind        ErrorKind       `json:"errorKind,omitempty"`
	IsTracking       bool            `json:"isTracking"`
	LastUpdated      int64           `json:"lastUpdated,omitempty"` // epoch ms, 0 when never updated
	PermissionStatus PermissionState `json:"permissionStatus,omitempty"`
	Phase            Phase           `json:"phase"`
}

// Snapshot is a read-only copy of State plus values derived at read time.
type Snapshot struct {
	State
	TimeSinceUpdate *int64 `json:"timeSinceUpdate"` // whole seconds, nil when never updated
}

func (s State) clone() State {
	if s.Coords != nil {
		c := *s.Coords
		if c.Accuracy != nil {
			acc := *c.Accuracy
			c.Accuracy = &acc
		}
		s.Coords = &c
	}
	return s
}
