package ws

import (
	"sync"

	"github.com/google/uuid"
)

// Client represents a single WebSocket connection with user context.
type Client struct {
	ID     string
	UserID uint
	Role   string
	Send   chan []byte
	Hub    *Hub // set so Close() can unregister
	mu     sync.Mutex
	closed bool
}

func NewClient(userID uint, role string) *Client {
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		Send:   make(chan []byte, 16),
	}
}

func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	if c.Hub != nil {
		c.Hub.unregister(c)
	}
	close(c.Send)
}

// trySend drops the message when the client is slow or already closed.
func (c *Client) trySend(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	select {
	case c.Send <- data:
	default:
	}
}

// Hub maintains the set of active clients and broadcasts to them.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]struct{}
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]struct{})}
}

func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c.Hub = h
	h.clients[c] = struct{}{}
}

func (h *Hub) unregister(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, c)
}

func (h *Hub) broadcastRaw(data []byte) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()
	for _, c := range clients {
		c.trySend(data)
	}
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
