package websocket

import (
	"encoding/json"
	"log/slog"
	"sync"
)

// Hub maintains the registry of live connections, at most one per user.
// A newer handshake for the same user silently replaces the older
// connection (last-connect-wins).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client // user id -> connection
	logger  *slog.Logger
}

// NewHub creates a new Hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients: make(map[string]*Client),
		logger:  logger,
	}
}

// Register adds a client under its user id, replacing and closing any
// existing connection for that user.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	if old, ok := h.clients[c.userID]; ok && old != c {
		close(old.send)
		h.logger.Info("connection replaced", "user_id", c.userID)
	}
	h.clients[c.userID] = c
	h.mu.Unlock()
}

// Unregister removes a client's registry entry, but only if the entry
// still points at this client; a replaced connection must not evict its
// replacement on close.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	if cur, ok := h.clients[c.userID]; ok && cur == c {
		delete(h.clients, c.userID)
		close(c.send)
	}
	h.mu.Unlock()
}

// SendToUser delivers a message to the user's live connection. Returns
// false without error when the user has no registered connection.
// Delivery is fire-and-forget: a full send buffer drops the payload.
func (h *Hub) SendToUser(userID string, msg Message) bool {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal message", "error", err)
		return false
	}

	// The lock is held across enqueue so a concurrent Register cannot close
	// the send channel between lookup and send.
	h.mu.RLock()
	defer h.mu.RUnlock()

	c, ok := h.clients[userID]
	if !ok {
		return false
	}
	c.enqueue(data)
	return true
}

// SendToUsers delivers a message to each listed user and returns the number
// of users that had a live connection.
func (h *Hub) SendToUsers(userIDs []string, msg Message) int {
	sent := 0
	for _, id := range userIDs {
		if h.SendToUser(id, msg) {
			sent++
		}
	}
	return sent
}

// Broadcast sends a message to every registered connection and returns the
// delivery count.
func (h *Hub) Broadcast(msg Message) int {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("marshal broadcast", "error", err)
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	sent := 0
	for _, c := range h.clients {
		c.enqueue(data)
		sent++
	}
	return sent
}

// ClientCount returns the number of registered connections.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// IsConnected reports whether the user has a registered connection.
func (h *Hub) IsConnected(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	_, ok := h.clients[userID]
	return ok
}
