package tracking

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// PermissionMonitor reports the location permission state once from a query and then on
// every change. A nil provider, or one answering ErrPermissionQueryUnsupported, never
// reports anything. A monitor is single use: Start once, Stop once.
type PermissionMonitor struct {
	provider PermissionProvider
	logger   *zap.Logger

	mu        sync.Mutex
	stopped   bool
	cancel    context.CancelFunc
	unsubFunc func()
}

func NewPermissionMonitor(provider PermissionProvider, logger *zap.Logger) *PermissionMonitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PermissionMonitor{provider: provider, logger: logger}
}

// Start runs the query in the background and calls onChange with the initial state and
// every later change until Stop.
func (m *PermissionMonitor) Start(ctx context.Context, onChange func(PermissionState)) {
	if m.provider == nil {
		return
	}
	ctx, cancel := context.WithCancel(ctx)
	m.mu.Lock()
	if m.stopped {
		m.mu.Unlock()
		cancel()
		return
	}
	m.cancel = cancel
	m.mu.Unlock()

	go m.query(ctx, onChange)
}

func (m *PermissionMonitor) query(ctx context.Context, onChange func(PermissionState)) {
	status, err := m.provider.QueryLocationPermission(ctx)
	if err != nil {
		if !errors.Is(err, ErrPermissionQueryUnsupported) && ctx.Err() == nil {
			m.logger.Warn("permission query failed", zap.Error(err))
		}
		return
	}

	// The initial state and later changes are delivered under m.mu, initial state first.
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return
	}
	m.unsubFunc = status.OnChange(func(s PermissionState) {
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.stopped {
			return
		}
		m.logger.Debug("permission changed", zap.String("state", string(s)))
		onChange(s)
	})
	onChange(status.State())
}

// Stop releases the change subscription. It is safe to call before the query returns.
func (m *PermissionMonitor) Stop() {
	m.mu.Lock()
	m.stopped = true
	cancel, unsub := m.cancel, m.unsubFunc
	m.cancel, m.unsubFunc = nil, nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if unsub != nil {
		unsub()
	}
}
