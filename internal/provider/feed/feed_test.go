package feed

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"nearby/internal/tracking"
)

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

var nairobi = tracking.Coordinates{Latitude: -1.2921, Longitude: 36.8219, Timestamp: 1700000000000}

func waitForWaiter(t *testing.T, f *Feed) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		n := len(f.waiters)
		f.mu.Unlock()
		if n > 0 {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("no waiter registered")
}

func TestCurrentPositionUsesCacheWithinMaxAge(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	f := New(WithClock(clk.Now))
	f.Publish(nairobi)
	clk.Advance(5 * time.Second)

	got, err := f.CurrentPosition(context.Background(), tracking.PositionOptions{MaxAge: 10 * time.Second, Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	if got != nairobi {
		t.Errorf("got %+v, want cached %+v", got, nairobi)
	}
}

func TestCurrentPositionZeroMaxAgeWaitsForFreshReading(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	f := New(WithClock(clk.Now))
	f.Publish(nairobi)

	fresh := tracking.Coordinates{Latitude: -1.30, Longitude: 36.80, Timestamp: 1700000001000}
	done := make(chan tracking.Coordinates, 1)
	go func() {
		c, err := f.CurrentPosition(context.Background(), tracking.PositionOptions{MaxAge: 0, Timeout: time.Second})
		if err != nil {
			t.Error(err)
		}
		done <- c
	}()
	waitForWaiter(t, f)
	f.Publish(fresh)

	if got := <-done; got != fresh {
		t.Errorf("got %+v, want %+v", got, fresh)
	}
}

func TestCurrentPositionTimeout(t *testing.T) {
	f := New()
	_, err := f.CurrentPosition(context.Background(), tracking.PositionOptions{Timeout: 5 * time.Millisecond})
	kind, msg := tracking.Classify(err)
	if kind != tracking.ErrorTimeout || msg != tracking.MsgTimeout {
		t.Errorf("Classify(%v) = %q, %q", err, kind, msg)
	}
}

func TestCurrentPositionCancelled(t *testing.T) {
	f := New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.CurrentPosition(ctx, tracking.PositionOptions{Timeout: time.Second})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestPublishStampsMissingTimestamp(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	f := New(WithClock(clk.Now))
	var got tracking.Coordinates
	if _, err := f.WatchPosition(tracking.PositionOptions{}, func(c tracking.Coordinates) { got = c }, nil); err != nil {
		t.Fatal(err)
	}
	f.Publish(tracking.Coordinates{Latitude: 1, Longitude: 2})
	if got.Timestamp != clk.Now().UnixMilli() {
		t.Errorf("timestamp = %d, want %d", got.Timestamp, clk.Now().UnixMilli())
	}
}

func TestFailReachesWatchersAndWaiters(t *testing.T) {
	clk := &clock{now: time.Unix(1700000000, 0)}
	f := New(WithClock(clk.Now))
	f.Publish(nairobi)

	var watchErr error
	id, _ := f.WatchPosition(tracking.PositionOptions{}, func(tracking.Coordinates) {}, func(err error) { watchErr = err })

	boom := tracking.NewPositionError(tracking.CodePositionUnavailable, nil)
	errc := make(chan error, 1)
	go func() {
		_, err := f.CurrentPosition(context.Background(), tracking.PositionOptions{Timeout: time.Second})
		errc <- err
	}()
	waitForWaiter(t, f)
	f.Fail(boom)

	if err := <-errc; !errors.Is(err, boom) {
		t.Errorf("waiter err = %v", err)
	}
	if !errors.Is(watchErr, boom) {
		t.Errorf("watcher err = %v", watchErr)
	}

	// the cache survives failures
	got, err := f.CurrentPosition(context.Background(), tracking.PositionOptions{MaxAge: time.Minute, Timeout: time.Second})
	if err != nil || got != nairobi {
		t.Errorf("cache after failure = %+v, %v", got, err)
	}

	f.ClearWatch(id)
	if f.Watchers() != 0 {
		t.Errorf("watchers = %d after ClearWatch", f.Watchers())
	}
}

func TestClearWatchStopsDelivery(t *testing.T) {
	f := New()
	calls := 0
	id, _ := f.WatchPosition(tracking.PositionOptions{}, func(tracking.Coordinates) { calls++ }, func(error) {})
	f.Publish(nairobi)
	f.ClearWatch(id)
	f.Publish(nairobi)
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestClose(t *testing.T) {
	f := New()
	errc := make(chan error, 1)
	go func() {
		_, err := f.CurrentPosition(context.Background(), tracking.PositionOptions{Timeout: time.Second})
		errc <- err
	}()
	waitForWaiter(t, f)
	f.Close()

	if err := <-errc; !errors.Is(err, ErrClosed) {
		t.Errorf("pending request err = %v", err)
	}
	if _, err := f.WatchPosition(tracking.PositionOptions{}, nil, nil); !errors.Is(err, ErrClosed) {
		t.Errorf("watch after close err = %v", err)
	}
	f.Close()
}

func TestFeedDrivesTracker(t *testing.T) {
	f := New()
	tr := tracking.NewTracker(f, tracking.DefaultOptions())
	tr.Start(context.Background())
	defer tr.Stop()

	waitForWaiter(t, f)
	f.Publish(nairobi)

	snap := tr.Snapshot()
	if snap.Coords == nil || *snap.Coords != nairobi || snap.Phase != tracking.PhaseTracking {
		t.Fatalf("snapshot = %+v", snap)
	}
	f.Fail(tracking.NewPositionError(tracking.CodePermissionDenied, nil))
	if snap := tr.Snapshot(); snap.ErrorKind != tracking.ErrorPermissionDenied || snap.Coords == nil {
		t.Errorf("after failure = %+v", snap)
	}

	tr.Stop()
	if f.Watchers() != 0 {
		t.Errorf("watch left open after Stop")
	}
}
