package tracking

import (
	"context"
	"sync"
	"time"
)

// WatchID identifies a continuous watch registered with a LocationProvider.
type WatchID int64

// LocationProvider is the platform capability that produces position readings.
// A nil LocationProvider means the platform has no location capability.
type LocationProvider interface {
	// CurrentPosition blocks until one reading is available, opts.Timeout elapses
	// or ctx is done. Cached readings no older than opts.MaxAge may be returned.
	CurrentPosition(ctx context.Context, opts PositionOptions) (Coordinates, error)
	// WatchPosition calls onPosition for every new reading and onError for every failure
	// until ClearWatch is called with the returned id.
	WatchPosition(opts PositionOptions, onPosition func(Coordinates), onError func(error)) (WatchID, error)
	ClearWatch(id WatchID)
}

// PermissionStatus is the result of a permission query.
type PermissionStatus interface {
	State() PermissionState
	// OnChange registers fn for later state changes; the returned func unregisters it.
	OnChange(fn func(PermissionState)) (cancel func())
}

// PermissionProvider queries the runtime's location permission.
type PermissionProvider interface {
	QueryLocationPermission(ctx context.Context) (PermissionStatus, error)
}

// Scheduler runs fn every d until the returned stop func is called.
type Scheduler interface {
	Every(d time.Duration, fn func()) (stop func())
}

// TickerScheduler is the default Scheduler backed by time.Ticker.
type TickerScheduler struct{}

func (TickerScheduler) Every(d time.Duration, fn func()) func() {
	ticker := time.NewTicker(d)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case <-ticker.C:
				fn()
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			ticker.Stop()
			close(done)
		})
	}
}
