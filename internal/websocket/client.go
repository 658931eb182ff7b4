package websocket

import (
	"context"
	"log/slog"
	"time"

	ws "github.com/coder/websocket"
)

const (
	sendBufferSize = 16
	pingInterval   = 30 * time.Second
)

// Client represents a single authenticated WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *ws.Conn
	userID string
	send   chan []byte
	logger *slog.Logger
}

// NewClient creates a Client for the given verified user id.
func NewClient(hub *Hub, conn *ws.Conn, userID string, logger *slog.Logger) *Client {
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBufferSize),
		logger: logger,
	}
}

// enqueue hands a payload to the write pump without blocking; payloads are
// dropped when the buffer is full. Callers must hold the hub lock.
func (c *Client) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
		// Client buffer full — drop message to avoid blocking
	}
}

// Run registers the client, starts the write pump, and runs the read pump.
// It blocks until the connection is closed, then unregisters.
func (c *Client) Run(ctx context.Context) {
	c.hub.Register(c)
	defer c.hub.Unregister(c)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	go c.writePump(ctx)
	c.readPump(ctx)
}

// readPump reads incoming messages until the connection closes. Pings get a
// pong; every other type is logged and ignored.
func (c *Client) readPump(ctx context.Context) {
	for {
		_, data, err := c.conn.Read(ctx)
		if err != nil {
			return
		}

		msg, rawType := decodeInbound(data)
		switch msg.Type {
		case KindPing:
			c.hub.SendToUser(c.userID, newPongMessage(time.Now()))
		default:
			c.logger.Debug("ignoring message", "user_id", c.userID, "type", rawType)
		}
	}
}

// writePump drains the send channel and writes messages to the WebSocket.
// It also sends periodic pings to detect stale connections.
func (c *Client) writePump(ctx context.Context) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				// Hub closed the channel — connection replaced or unregistered
				c.conn.Close(ws.StatusNormalClosure, "connection replaced")
				return
			}
			if err := c.conn.Write(ctx, ws.MessageText, msg); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.Ping(ctx); err != nil {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}
