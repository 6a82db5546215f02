package tracking

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Trigger names the source of a reading.
type Trigger string

const (
	TriggerOneShot Trigger = "oneshot"
	TriggerWatch   Trigger = "watch"
	TriggerRefresh Trigger = "refresh"
)

// Multiplexer drives the three position triggers against one provider and funnels every
// outcome into a single success handler and a single error handler:
//
//   - a one-shot fetch when started,
//   - a continuous watch,
//   - a forced refresh every UpdateInterval with MaxAge 0.
//
// There is no ordering between triggers; whichever handler call happens last wins.
type Multiplexer struct {
	provider  LocationProvider
	scheduler Scheduler
	opts      Options
	onFix     func(Trigger, Coordinates)
	onErr     func(Trigger, error)
	logger    *zap.Logger

	mu        sync.Mutex
	running   bool
	cancel    context.CancelFunc
	watchID   WatchID
	watching  bool
	stopTimer func()
}

func NewMultiplexer(
	provider LocationProvider,
	scheduler Scheduler,
	opts Options,
	onFix func(Trigger, Coordinates),
	onErr func(Trigger, error),
	logger *zap.Logger,
) *Multiplexer {
	if scheduler == nil {
		scheduler = TickerScheduler{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Multiplexer{
		provider:  provider,
		scheduler: scheduler,
		opts:      opts.withDefaults(),
		onFix:     onFix,
		onErr:     onErr,
		logger:    logger,
	}
}

// Start launches all three triggers. Calling Start on a running multiplexer is a no-op.
func (m *Multiplexer) Start(ctx context.Context) {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return
	}
	m.running = true
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel

	go m.fetch(ctx, TriggerOneShot, m.opts.request())

	id, watchErr := m.provider.WatchPosition(m.opts.request(),
		func(c Coordinates) {
			if ctx.Err() == nil {
				m.deliver(TriggerWatch, c)
			}
		},
		func(err error) {
			if ctx.Err() == nil {
				m.onErr(TriggerWatch, err)
			}
		},
	)
	if watchErr == nil {
		m.watchID, m.watching = id, true
	}

	refresh := m.opts.forcedRefresh()
	m.stopTimer = m.scheduler.Every(m.opts.UpdateInterval, func() {
		m.fetch(ctx, TriggerRefresh, refresh)
	})
	m.mu.Unlock()

	if watchErr != nil {
		m.logger.Warn("watch not started", zap.Error(watchErr))
		m.onErr(TriggerWatch, watchErr)
	}
}

// Stop clears the watch, stops the refresh timer and cancels outstanding fetches.
// Fetches the provider cannot abort finish in the background and are discarded.
func (m *Multiplexer) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, stopTimer := m.cancel, m.stopTimer
	watching, id := m.watching, m.watchID
	m.cancel, m.stopTimer, m.watching = nil, nil, false
	m.mu.Unlock()

	cancel()
	if stopTimer != nil {
		stopTimer()
	}
	if watching {
		m.provider.ClearWatch(id)
		m.logger.Debug("watch cleared", zap.Int64("watch_id", int64(id)))
	}
}

func (m *Multiplexer) fetch(ctx context.Context, trigger Trigger, opts PositionOptions) {
	reqCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	c, err := m.provider.CurrentPosition(reqCtx, opts)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		m.onErr(trigger, err)
		return
	}
	m.deliver(trigger, c)
}

// deliver rejects out-of-range readings as provider failures instead of clamping them.
func (m *Multiplexer) deliver(trigger Trigger, c Coordinates) {
	if err := c.Validate(); err != nil {
		m.onErr(trigger, NewPositionError(CodePositionUnavailable, err))
		return
	}
	m.onFix(trigger, c)
}
