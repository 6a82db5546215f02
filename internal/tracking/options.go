package tracking

import "time"

// Options configure a Tracker.
type Options struct {
	// HighAccuracy asks the provider for its most precise (slower, costlier) fix.
	HighAccuracy bool
	// MaxAge is the oldest cached reading the provider may return for fetch/watch.
	MaxAge time.Duration
	// Timeout is the per-request deadline after which a Timeout error fires.
	Timeout time.Duration
	// UpdateInterval is the period of the forced, cache-disabled refresh.
	UpdateInterval time.Duration
}

// DefaultOptions returns HighAccuracy on, 10s max age, 15s timeout, 10s refresh.
func DefaultOptions() Options {
	return Options{
		HighAccuracy:   true,
		MaxAge:         10 * time.Second,
		Timeout:        15 * time.Second,
		UpdateInterval: 10 * time.Second,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.MaxAge < 0 {
		o.MaxAge = 0
	}
	if o.Timeout <= 0 {
		o.Timeout = d.Timeout
	}
	if o.UpdateInterval <= 0 {
		o.UpdateInterval = d.UpdateInterval
	}
	return o
}

// PositionOptions is what a single provider request carries.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	MaxAge       time.Duration
}

func (o Options) request() PositionOptions {
	return PositionOptions{HighAccuracy: o.HighAccuracy, Timeout: o.Timeout, MaxAge: o.MaxAge}
}

func (o Options) forcedRefresh() PositionOptions {
	r := o.request()
	r.MaxAge = 0
	return r
}
