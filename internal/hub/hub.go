package hub

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/JeevanLal1/ProChat/internal/config"
	"github.com/JeevanLal1/ProChat/pkg/log"
)

// Hub is the table of live connection handles. Delivery is fire-and-forget:
// a full buffer or an unknown connection id drops the frame for that
// connection only.
type Hub struct {
	clients map[string]*Client // connID -> client
	mu      sync.RWMutex
	config  config.WebSocketConfig
	closing bool
}

func NewHub(cfg config.WebSocketConfig) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		config:  cfg,
	}
}

func (h *Hub) Config() config.WebSocketConfig {
	return h.config
}

// Add registers client. It returns false once the hub is shutting down.
func (h *Hub) Add(client *Client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closing {
		return false
	}
	h.clients[client.ID] = client
	l := log.L()
	l.Debug().Str(log.FieldConnID, client.ID).Msg("client registered")
	return true
}

// Remove drops connID and closes its send buffer, which lets the write pump
// send a close frame and exit.
func (h *Hub) Remove(connID string) bool {
	h.mu.Lock()
	client, ok := h.clients[connID]
	if ok {
		delete(h.clients, connID)
		close(client.Send)
	}
	h.mu.Unlock()

	if ok {
		l := log.L()
		l.Debug().Str(log.FieldConnID, connID).Msg("client unregistered")
	}
	return ok
}

func (h *Hub) Get(connID string) (*Client, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	c, ok := h.clients[connID]
	return c, ok
}

func (h *Hub) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Send queues data on connID. Remove closes Send under the write lock, so
// holding the read lock here keeps the channel open for the send.
func (h *Hub) Send(connID string, data []byte) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	client, ok := h.clients[connID]
	if !ok {
		return false
	}
	return h.enqueue(client, data)
}

func (h *Hub) enqueue(client *Client, data []byte) bool {
	select {
	case client.Send <- data:
		return true
	default:
		l := log.L()
		l.Warn().Str(log.FieldConnID, client.ID).Msg("send buffer full, dropping frame")
		return false
	}
}

// SendMany queues data on each listed connection and returns the number of
// successful enqueues.
func (h *Hub) SendMany(connIDs []string, data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, id := range connIDs {
		if client, ok := h.clients[id]; ok && h.enqueue(client, data) {
			sent++
		}
	}
	return sent
}

// Broadcast queues data on every live connection.
func (h *Hub) Broadcast(data []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, client := range h.clients {
		if h.enqueue(client, data) {
			sent++
		}
	}
	return sent
}

// SendJSON marshals message and queues it on connID.
func (h *Hub) SendJSON(connID string, message any) error {
	data, err := json.Marshal(message)
	if err != nil {
		return err
	}
	h.Send(connID, data)
	return nil
}

// Shutdown stops accepting clients and runs closeFn for each live
// connection, then closes the underlying sockets. It stops early when ctx
// expires.
func (h *Hub) Shutdown(ctx context.Context, closeFn func(*Client)) error {
	h.mu.Lock()
	h.closing = true
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()

	l := log.L()
	l.Info().Int("clients", len(clients)).Msg("shutting down hub")

	for _, c := range clients {
		if err := ctx.Err(); err != nil {
			return err
		}
		closeFn(c)
		h.Remove(c.ID)
		c.CloseConn()
	}
	return nil
}
