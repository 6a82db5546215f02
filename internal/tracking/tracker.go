package tracking

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Observer receives tracker events, e.g. for metrics. Calls happen with the tracker's
// state lock held and must not call back into the Tracker.
type Observer interface {
	ObserveFix(trigger Trigger)
	ObserveFailure(trigger Trigger, kind ErrorKind)
	ObserveState(s State)
}

// Option customises a Tracker.
type Option func(*Tracker)

// WithPermissions sets the permission provider. Without one the permission status stays unknown.
func WithPermissions(p PermissionProvider) Option {
	return func(t *Tracker) { t.permissions = p }
}

// WithScheduler replaces the ticker used for forced refreshes.
func WithScheduler(s Scheduler) Option {
	return func(t *Tracker) { t.scheduler = s }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

func WithObserver(o Observer) Option {
	return func(t *Tracker) { t.observer = o }
}

// Tracker is the single entry point for the device's location state. It owns State and
// is safe for concurrent use; all mutation is serialised by one mutex.
type Tracker struct {
	provider    LocationProvider
	permissions PermissionProvider
	scheduler   Scheduler
	opts        Options
	now         func() time.Time
	logger      *zap.Logger
	observer    Observer

	// lifecycle serialises Start and Stop; callbacks only take mu.
	lifecycle sync.Mutex

	mu        sync.Mutex
	state     State
	active    bool
	gen       uint64
	session   string
	mux       *Multiplexer
	monitor   *PermissionMonitor
	stopWatch func() bool
	subs      map[int]chan Snapshot
	nextSub   int
}

// NewTracker builds an idle tracker. A nil provider means the platform cannot locate at all;
// Start then reports Unsupported.
func NewTracker(provider LocationProvider, opts Options, options ...Option) *Tracker {
	t := &Tracker{
		provider:  provider,
		scheduler: TickerScheduler{},
		opts:      opts.withDefaults(),
		now:       time.Now,
		logger:    zap.NewNop(),
		state:     State{Phase: PhaseIdle},
		subs:      make(map[int]chan Snapshot),
	}
	for _, o := range options {
		o(t)
	}
	return t
}

// Start activates tracking: one-shot fetch, continuous watch, forced refresh timer and
// permission monitor. It returns immediately; results arrive through Snapshot/Subscribe.
// Cancelling ctx has the same effect as Stop. Start on an active tracker is a no-op.
func (t *Tracker) Start(ctx context.Context) {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()

	t.mu.Lock()
	if t.active {
		t.mu.Unlock()
		return
	}
	t.active = true
	t.gen++
	gen := t.gen
	t.session = uuid.NewString()
	log := t.logger.With(zap.String("session", t.session))

	if t.provider == nil {
		t.state = State{
			Error:     MsgUnsupported,
			ErrorKind: ErrorUnsupported,
			Phase:     PhaseDegraded,
		}
		t.publishLocked()
		t.mu.Unlock()
		t.stopWatch = context.AfterFunc(ctx, func() { t.stopGeneration(gen) })
		log.Warn("location tracking unsupported: no provider")
		return
	}

	t.state = State{IsTracking: true, Phase: PhaseAcquiring}
	mux := NewMultiplexer(t.provider, t.scheduler, t.opts,
		func(tr Trigger, c Coordinates) { t.handleFix(gen, tr, c) },
		func(tr Trigger, err error) { t.handleError(gen, tr, err) },
		log,
	)
	monitor := NewPermissionMonitor(t.permissions, log)
	t.mux, t.monitor = mux, monitor
	t.publishLocked()
	t.mu.Unlock()

	log.Info("location tracking started",
		zap.Bool("high_accuracy", t.opts.HighAccuracy),
		zap.Duration("max_age", t.opts.MaxAge),
		zap.Duration("timeout", t.opts.Timeout),
		zap.Duration("update_interval", t.opts.UpdateInterval),
	)
	mux.Start(ctx)
	monitor.Start(ctx, func(s PermissionState) { t.handlePermission(gen, s) })
	t.stopWatch = context.AfterFunc(ctx, func() { t.stopGeneration(gen) })
}

// Stop releases the watch, the refresh timer and the permission subscription and marks
// tracking inactive. The last known coordinates stay readable. Stop is idempotent.
func (t *Tracker) Stop() {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.stopLocked()
}

func (t *Tracker) stopGeneration(gen uint64) {
	t.lifecycle.Lock()
	defer t.lifecycle.Unlock()
	t.mu.Lock()
	current := t.gen == gen
	t.mu.Unlock()
	if current {
		t.stopLocked()
	}
}

// stopLocked requires t.lifecycle.
func (t *Tracker) stopLocked() {
	t.mu.Lock()
	if !t.active {
		t.mu.Unlock()
		return
	}
	t.active = false
	t.gen++ // late callbacks from the old activation are dropped
	mux, monitor, stopWatch := t.mux, t.monitor, t.stopWatch
	t.mux, t.monitor, t.stopWatch = nil, nil, nil
	t.state.IsTracking = false
	t.state.Phase = PhaseStopped
	session := t.session
	t.publishLocked()
	t.mu.Unlock()

	if stopWatch != nil {
		stopWatch()
	}
	if mux != nil {
		mux.Stop()
	}
	if monitor != nil {
		monitor.Stop()
	}
	t.logger.Info("location tracking stopped", zap.String("session", session))
}

// Run starts the tracker and blocks until ctx is done, then stops it.
func (t *Tracker) Run(ctx context.Context) error {
	t.Start(ctx)
	<-ctx.Done()
	t.Stop()
	return nil
}

// Snapshot returns a copy of the current state with TimeSinceUpdate computed now.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// Subscribe returns a channel that always holds the most recent snapshot (older
// unread snapshots are replaced) and a cancel func that closes it.
func (t *Tracker) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 1)
	t.mu.Lock()
	id := t.nextSub
	t.nextSub++
	t.subs[id] = ch
	ch <- t.snapshotLocked()
	t.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			t.mu.Lock()
			delete(t.subs, id)
			close(ch)
			t.mu.Unlock()
		})
	}
}

// handleFix applies a successful reading from any trigger.
//
// Known limitation: readings are applied in callback completion order. A forced refresh
// that returns an older reading after a newer watch update still overwrites it; payload
// timestamps are deliberately not compared.
func (t *Tracker) handleFix(gen uint64, trigger Trigger, c Coordinates) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || !t.active {
		return
	}
	coords := c
	t.state.Coords = &coords
	t.state.Error = ""
	t.state.ErrorKind = ErrorNone
	t.state.IsTracking = true
	t.state.LastUpdated = t.now().UnixMilli()
	t.state.Phase = PhaseTracking
	if t.observer != nil {
		t.observer.ObserveFix(trigger)
	}
	t.logger.Debug("position fix",
		zap.String("session", t.session),
		zap.String("trigger", string(trigger)),
		zap.Float64("lat", c.Latitude),
		zap.Float64("lng", c.Longitude),
	)
	t.publishLocked()
}

// handleError records a failure but keeps the last good coordinates.
func (t *Tracker) handleError(gen uint64, trigger Trigger, err error) {
	kind, msg := Classify(err)
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || !t.active {
		return
	}
	t.state.Error = msg
	t.state.ErrorKind = kind
	t.state.IsTracking = false
	t.state.Phase = PhaseDegraded
	if t.observer != nil {
		t.observer.ObserveFailure(trigger, kind)
	}
	t.logger.Warn("position error",
		zap.String("session", t.session),
		zap.String("trigger", string(trigger)),
		zap.String("kind", string(kind)),
		zap.Error(err),
	)
	t.publishLocked()
}

func (t *Tracker) handlePermission(gen uint64, s PermissionState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen || !t.active {
		return
	}
	t.state.PermissionStatus = s
	t.publishLocked()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{State: t.state.clone()}
	if t.state.LastUpdated != 0 {
		elapsed := t.now().UnixMilli() - t.state.LastUpdated
		secs := int64(math.Floor(float64(elapsed) / 1000))
		snap.TimeSinceUpdate = &secs
	}
	return snap
}

// publishLocked requires t.mu.
func (t *Tracker) publishLocked() {
	if t.observer != nil {
		t.observer.ObserveState(t.state)
	}
	if len(t.subs) == 0 {
		return
	}
	snap := t.snapshotLocked()
	for _, ch := range t.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
