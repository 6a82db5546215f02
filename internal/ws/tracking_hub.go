package ws

import (
	"context"
	"encoding/json"
	"sync"

	"go.uber.org/zap"

	"nearby/internal/tracking"
)

// StateMessage is what location-state subscribers receive.
type StateMessage struct {
	Type  string            `json:"type"`
	State tracking.Snapshot `json:"state"`
}

// TrackingHub streams tracker snapshots to WebSocket clients. New clients get the latest
// snapshot immediately.
type TrackingHub struct {
	*Hub
	logger *zap.Logger

	mu   sync.RWMutex
	last []byte
}

func NewTrackingHub(logger *zap.Logger) *TrackingHub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TrackingHub{Hub: NewHub(), logger: logger}
}

// Run broadcasts every snapshot from updates until ctx is done or updates is closed.
func (t *TrackingHub) Run(ctx context.Context, updates <-chan tracking.Snapshot) {
	for {
		select {
		case <-ctx.Done():
			return
		case snap, ok := <-updates:
			if !ok {
				return
			}
			t.Publish(snap)
		}
	}
}

func (t *TrackingHub) Publish(snap tracking.Snapshot) {
	data, err := json.Marshal(StateMessage{Type: "location_state", State: snap})
	if err != nil {
		t.logger.Error("marshal snapshot", zap.Error(err))
		return
	}
	t.mu.Lock()
	t.last = data
	t.mu.Unlock()
	t.broadcastRaw(data)
}

// Join registers c and queues the latest snapshot for it.
func (t *TrackingHub) Join(c *Client) {
	t.Register(c)
	t.mu.RLock()
	last := t.last
	t.mu.RUnlock()
	if last != nil {
		c.trySend(last)
	}
	t.logger.Debug("ws client joined", zap.String("client", c.ID), zap.Uint("user_id", c.UserID))
}
