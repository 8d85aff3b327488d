// Package ws pushes live counting traffic over WebSocket: debounced scanner
// input from handheld terminals and notifications addressed to operators.
package ws

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	stocktakingapp "github.com/wms/stocktaking/internal/application/stocktaking"
	"go.uber.org/zap"
)

var _ stocktakingapp.Notifier = (*Hub)(nil)

const writeWait = 5 * time.Second

// Message types sent to clients
const (
	TypeReady        = "ready"
	TypeNotification = "notification"
	TypeLocation     = "location"
	TypeScanResult   = "scan_result"
	TypeError        = "error"
)

// Outbound is the envelope of every server message
type Outbound struct {
	Type  string        `json:"type"`
	Data  any           `json:"data,omitempty"`
	Error *ErrorPayload `json:"error,omitempty"`
}

// ErrorPayload mirrors the HTTP error body
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// client is one connected terminal. Writes are serialized by mu since
// gorilla connections support a single concurrent writer.
type client struct {
	conn   *websocket.Conn
	userID uuid.UUID
	roles  []string
	mu     sync.Mutex
}

func (c *client) send(msg Outbound) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return c.conn.WriteJSON(msg)
}

func (c *client) ping() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait))
}

// accepts reports whether recipient addresses this client
func (c *client) accepts(recipient string) bool {
	switch {
	case recipient == stocktakingapp.RecipientBroadcast:
		return true
	case strings.HasPrefix(recipient, "user:"):
		return recipient == stocktakingapp.UserRecipient(c.userID)
	case strings.HasPrefix(recipient, "role:"):
		return slices.Contains(c.roles, strings.TrimPrefix(recipient, "role:"))
	}
	return false
}

// Hub tracks connected clients and routes notifications to them
type Hub struct {
	mu      sync.RWMutex
	clients map[*client]struct{}
	logger  *zap.Logger
}

// NewHub creates a new Hub
func NewHub(logger *zap.Logger) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{clients: make(map[*client]struct{}), logger: logger}
}

func (h *Hub) register(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	total := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug("ws client connected",
		zap.String("user_id", c.userID.String()),
		zap.Int("clients", total),
	)
}

func (h *Hub) unregister(c *client) {
	h.mu.Lock()
	_, ok := h.clients[c]
	delete(h.clients, c)
	h.mu.Unlock()
	if ok {
		_ = c.conn.Close()
		h.logger.Debug("ws client disconnected", zap.String("user_id", c.userID.String()))
	}
}

// Clients returns the number of connected clients
func (h *Hub) Clients() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Notify delivers n to every client it addresses. Clients that cannot be
// written to are dropped; delivery never fails the caller.
func (h *Hub) Notify(_ context.Context, n stocktakingapp.Notification) error {
	h.mu.RLock()
	targets := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		if c.accepts(n.Recipient) {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	msg := Outbound{Type: TypeNotification, Data: n}
	for _, c := range targets {
		if err := c.send(msg); err != nil {
			h.logger.Warn("ws notification dropped",
				zap.String("user_id", c.userID.String()),
				zap.Error(err),
			)
			h.unregister(c)
		}
	}
	return nil
}

// Close disconnects every client
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.Unlock()
	for _, c := range clients {
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutdown"),
			time.Now().Add(writeWait))
		h.unregister(c)
	}
}
