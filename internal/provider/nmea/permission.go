package nmea

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sys/unix"

	"nearby/internal/tracking"
)

// DevicePermission answers permission queries by checking read/write access to the GPS
// device node: granted when accessible, denied on EACCES/EPERM, prompt while the device
// is absent or in any other state.
type DevicePermission struct {
	Path string
	Poll time.Duration

	access func(path string, mode uint32) error
}

func NewDevicePermission(path string, poll time.Duration) *DevicePermission {
	if poll <= 0 {
		poll = 2 * time.Second
	}
	return &DevicePermission{Path: path, Poll: poll, access: unix.Access}
}

func (d *DevicePermission) check() tracking.PermissionState {
	err := d.access(d.Path, unix.R_OK|unix.W_OK)
	switch {
	case err == nil:
		return tracking.PermissionGranted
	case errors.Is(err, unix.EACCES), errors.Is(err, unix.EPERM):
		return tracking.PermissionDenied
	default:
		return tracking.PermissionPrompt
	}
}

func (d *DevicePermission) QueryLocationPermission(ctx context.Context) (tracking.PermissionStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &deviceStatus{dev: d, state: d.check()}, nil
}

type deviceStatus struct {
	dev *DevicePermission

	mu    sync.Mutex
	state tracking.PermissionState
}

func (s *deviceStatus) State() tracking.PermissionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// OnChange polls the device every Poll and calls fn when the state differs from the
// last one seen.
func (s *deviceStatus) OnChange(fn func(tracking.PermissionState)) func() {
	ticker := time.NewTicker(s.dev.Poll)
	done := make(chan struct{})
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				next := s.dev.check()
				s.mu.Lock()
				changed := next != s.state
				s.state = next
				s.mu.Unlock()
				if changed {
					fn(next)
				}
			}
		}
	}()
	var once sync.Once
	return func() { once.Do(func() { close(done) }) }
}
