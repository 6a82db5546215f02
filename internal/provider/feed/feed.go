// Package feed turns a push stream of readings into a tracking.LocationProvider. Device
// drivers (serial NMEA, MQTT) Publish readings and Fail errors; the feed caches the latest
// reading for MaxAge lookups, fans out to watchers and wakes one-shot waiters.
package feed

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"nearby/internal/tracking"
)

// ErrClosed is wrapped into the PositionUnavailable error returned after Close.
var ErrClosed = errors.New("feed closed")

type watch struct {
	onPosition func(tracking.Coordinates)
	onError    func(error)
}

type result struct {
	coords tracking.Coordinates
	err    error
}

type Option func(*Feed)

func WithClock(now func() time.Time) Option {
	return func(f *Feed) { f.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(f *Feed) { f.logger = l }
}

type Feed struct {
	now    func() time.Time
	logger *zap.Logger

	mu       sync.Mutex
	last     *tracking.Coordinates
	lastAt   time.Time
	watchers map[tracking.WatchID]watch
	nextID   tracking.WatchID
	waiters  map[int]chan result
	nextWait int
	closed   bool
}

func New(opts ...Option) *Feed {
	f := &Feed{
		now:      time.Now,
		logger:   zap.NewNop(),
		watchers: make(map[tracking.WatchID]watch),
		waiters:  make(map[int]chan result),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

// Publish records c as the latest reading and hands it to every watcher and waiter.
// A zero Timestamp is stamped with the feed's clock.
func (f *Feed) Publish(c tracking.Coordinates) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if c.Timestamp == 0 {
		c.Timestamp = f.now().UnixMilli()
	}
	cached := c
	f.last, f.lastAt = &cached, f.now()
	watchers, waiters := f.takeLocked()
	f.mu.Unlock()

	for _, ch := range waiters {
		ch <- result{coords: c}
	}
	for _, w := range watchers {
		w.onPosition(c)
	}
}

// Fail reports err to every watcher and to pending one-shot requests. The cached
// reading is kept.
func (f *Feed) Fail(err error) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	watchers, waiters := f.takeLocked()
	f.mu.Unlock()

	f.logger.Debug("feed failure", zap.Error(err), zap.Int("watchers", len(watchers)))
	for _, ch := range waiters {
		ch <- result{err: err}
	}
	for _, w := range watchers {
		w.onError(err)
	}
}

// takeLocked copies the watchers and drains the waiters. Requires f.mu.
func (f *Feed) takeLocked() ([]watch, []chan result) {
	watchers := make([]watch, 0, len(f.watchers))
	for _, w := range f.watchers {
		watchers = append(watchers, w)
	}
	waiters := make([]chan result, 0, len(f.waiters))
	for id, ch := range f.waiters {
		waiters = append(waiters, ch)
		delete(f.waiters, id)
	}
	return watchers, waiters
}

// CurrentPosition returns the cached reading when it is no older than opts.MaxAge,
// otherwise it waits for the next Publish or Fail. Hitting opts.Timeout yields a
// Timeout PositionError.
func (f *Feed) CurrentPosition(ctx context.Context, opts tracking.PositionOptions) (tracking.Coordinates, error) {
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return tracking.Coordinates{}, tracking.NewPositionError(tracking.CodePositionUnavailable, ErrClosed)
	}
	if f.last != nil && opts.MaxAge > 0 && f.now().Sub(f.lastAt) <= opts.MaxAge {
		c := *f.last
		f.mu.Unlock()
		return c, nil
	}
	id := f.nextWait
	f.nextWait++
	ch := make(chan result, 1)
	f.waiters[id] = ch
	f.mu.Unlock()

	select {
	case r := <-ch:
		return r.coords, r.err
	case <-ctx.Done():
		f.mu.Lock()
		delete(f.waiters, id)
		f.mu.Unlock()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return tracking.Coordinates{}, tracking.NewPositionError(tracking.CodeTimeout, ctx.Err())
		}
		return tracking.Coordinates{}, ctx.Err()
	}
}

func (f *Feed) WatchPosition(_ tracking.PositionOptions, onPosition func(tracking.Coordinates), onError func(error)) (tracking.WatchID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, tracking.NewPositionError(tracking.CodePositionUnavailable, ErrClosed)
	}
	f.nextID++
	f.watchers[f.nextID] = watch{onPosition: onPosition, onError: onError}
	f.logger.Debug("watch added", zap.Int64("watch_id", int64(f.nextID)))
	return f.nextID, nil
}

func (f *Feed) ClearWatch(id tracking.WatchID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.watchers, id)
}

// Watchers reports the number of live watches.
func (f *Feed) Watchers() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.watchers)
}

// Close fails pending one-shot requests and rejects new ones. Watchers are left for their
// owners to clear.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	waiters := make([]chan result, 0, len(f.waiters))
	for id, ch := range f.waiters {
		waiters = append(waiters, ch)
		delete(f.waiters, id)
	}
	f.mu.Unlock()

	err := tracking.NewPositionError(tracking.CodePositionUnavailable, ErrClosed)
	for _, ch := range waiters {
		ch <- result{err: err}
	}
}
