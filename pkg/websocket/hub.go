package websocket

import (
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/velocab/ridecore/pkg/logger"
)

// Upgrader is the shared HTTP-to-websocket upgrader.
var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Browser clients connect from the app origin; cross-origin policy is
	// enforced by the CORS layer in front of the upgrade.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub tracks live clients and runs their disconnect hooks exactly once.
type Hub struct {
	mu      sync.Mutex
	clients map[*Client]func()
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*Client]func())}
}

// Register adds a client with its disconnect hook. The hook runs when the
// client unregisters or the hub closes, whichever comes first.
func (h *Hub) Register(c *Client, onDisconnect func()) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		if onDisconnect != nil {
			onDisconnect()
		}
		close(c.sendCh)
		return
	}
	h.clients[c] = onDisconnect
	count := len(h.clients)
	h.mu.Unlock()

	logger.Debug("websocket client registered",
		zap.String("client_id", c.ID),
		zap.Int("clients", count),
	)
}

// Unregister removes a client, runs its disconnect hook and closes its send
// channel. Safe to call multiple times.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	onDisconnect, ok := h.clients[c]
	if ok {
		delete(h.clients, c)
	}
	count := len(h.clients)
	h.mu.Unlock()

	if !ok {
		return
	}

	if onDisconnect != nil {
		onDisconnect()
	}
	close(c.sendCh)

	logger.Debug("websocket client unregistered",
		zap.String("client_id", c.ID),
		zap.Int("clients", count),
	)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close unregisters every client.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	clients := make(map[*Client]func(), len(h.clients))
	for c, hook := range h.clients {
		clients[c] = hook
	}
	h.clients = make(map[*Client]func())
	h.mu.Unlock()

	for c, hook := range clients {
		if hook != nil {
			hook()
		}
		close(c.sendCh)
	}
}
