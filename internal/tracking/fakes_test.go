package tracking

import (
	"context"
	"sync"
	"testing"
	"time"
)

type fetchResult struct {
	coords Coordinates
	err    error
}

type fetchCall struct {
	opts PositionOptions
}

type watcher struct {
	onPosition func(Coordinates)
	onError    func(error)
}

// fakeProvider scripts one-shot results and lets tests drive watch callbacks.
type fakeProvider struct {
	mu          sync.Mutex
	results     chan fetchResult
	calls       []fetchCall
	inflight    int
	watchers    map[WatchID]watcher
	nextID      WatchID
	watchOpens  int
	watchCloses int
	watchErr    error
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		results:  make(chan fetchResult, 16),
		watchers: make(map[WatchID]watcher),
	}
}

func (p *fakeProvider) CurrentPosition(ctx context.Context, opts PositionOptions) (Coordinates, error) {
	p.mu.Lock()
	p.calls = append(p.calls, fetchCall{opts: opts})
	p.inflight++
	p.mu.Unlock()
	defer func() {
		p.mu.Lock()
		p.inflight--
		p.mu.Unlock()
	}()
	select {
	case r := <-p.results:
		return r.coords, r.err
	case <-ctx.Done():
		return Coordinates{}, ctx.Err()
	}
}

func (p *fakeProvider) WatchPosition(opts PositionOptions, onPosition func(Coordinates), onError func(error)) (WatchID, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.watchErr != nil {
		return 0, p.watchErr
	}
	p.nextID++
	p.watchers[p.nextID] = watcher{onPosition: onPosition, onError: onError}
	p.watchOpens++
	return p.nextID, nil
}

func (p *fakeProvider) ClearWatch(id WatchID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.watchers[id]; ok {
		delete(p.watchers, id)
		p.watchCloses++
	}
}

func (p *fakeProvider) resolve(c Coordinates) { p.results <- fetchResult{coords: c} }

func (p *fakeProvider) reject(err error) { p.results <- fetchResult{err: err} }

func (p *fakeProvider) emit(c Coordinates) {
	for _, w := range p.activeWatchers() {
		w.onPosition(c)
	}
}

func (p *fakeProvider) fail(err error) {
	for _, w := range p.activeWatchers() {
		w.onError(err)
	}
}

func (p *fakeProvider) activeWatchers() []watcher {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]watcher, 0, len(p.watchers))
	for _, w := range p.watchers {
		out = append(out, w)
	}
	return out
}

func (p *fakeProvider) counts() (opens, closes, inflight int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.watchOpens, p.watchCloses, p.inflight
}

func (p *fakeProvider) fetchCalls() []fetchCall {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]fetchCall(nil), p.calls...)
}

// fakeScheduler records timers; tick runs every live timer synchronously.
type fakeScheduler struct {
	mu     sync.Mutex
	timers map[int]func()
	period []time.Duration
	next   int
	opens  int
	closes int
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{timers: make(map[int]func())}
}

func (s *fakeScheduler) Every(d time.Duration, fn func()) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.next
	s.next++
	s.timers[id] = fn
	s.period = append(s.period, d)
	s.opens++
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if _, ok := s.timers[id]; ok {
			delete(s.timers, id)
			s.closes++
		}
	}
}

func (s *fakeScheduler) tick() {
	s.mu.Lock()
	fns := make([]func(), 0, len(s.timers))
	for _, fn := range s.timers {
		fns = append(fns, fn)
	}
	s.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

func (s *fakeScheduler) counts() (opens, closes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.opens, s.closes
}

// fakePermissions answers queries with a status whose state tests can change.
type fakePermissions struct {
	mu          sync.Mutex
	state       PermissionState
	err         error
	handlers    map[int]func(PermissionState)
	next        int
	subscribes  int
	unsubscribe int
	block       chan struct{}
}

func newFakePermissions(initial PermissionState) *fakePermissions {
	return &fakePermissions{state: initial, handlers: make(map[int]func(PermissionState))}
}

func (f *fakePermissions) QueryLocationPermission(ctx context.Context) (PermissionStatus, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.err != nil {
		return nil, f.err
	}
	return f, nil
}

func (f *fakePermissions) State() PermissionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

func (f *fakePermissions) OnChange(fn func(PermissionState)) func() {
	f.mu.Lock()
	defer f.mu.Unlock()
	id := f.next
	f.next++
	f.handlers[id] = fn
	f.subscribes++
	return func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if _, ok := f.handlers[id]; ok {
			delete(f.handlers, id)
			f.unsubscribe++
		}
	}
}

func (f *fakePermissions) set(s PermissionState) {
	f.mu.Lock()
	f.state = s
	hs := make([]func(PermissionState), 0, len(f.handlers))
	for _, h := range f.handlers {
		hs = append(hs, h)
	}
	f.mu.Unlock()
	for _, h := range hs {
		h(s)
	}
}

func (f *fakePermissions) counts() (subs, unsubs int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.subscribes, f.unsubscribe
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
