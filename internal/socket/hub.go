// internal/socket/hub.go
package socket

import (
	"sync"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// OrgRoom names the room every authenticated member of an organisation
// subscribes to.
func OrgRoom(orgID string) string { return "org:" + orgID }

// OrderRoom names the public per-order room used by the unauthenticated
// mobile quick-update view. Subscribers of this room only ever see events for
// that single order.
func OrderRoom(orderID string) string { return "order:" + orderID }

// Conn is the write side of a subscriber connection.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

// wsConn serializes writes to a gorilla connection; the hub may publish from
// several goroutines at once.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

// NewConn wraps a gorilla connection for registration with the Hub.
func NewConn(c *websocket.Conn) Conn { return &wsConn{conn: c} }

func (c *wsConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

func (c *wsConn) Close() error { return c.conn.Close() }

// Hub fans events out to subscribers grouped by room. Delivery is
// fire-and-forget and at-most-once: a subscriber connected before the event
// receives it, a late subscriber does not, and nothing is retried or replayed.
type Hub struct {
	mu     sync.RWMutex
	rooms  map[string]map[Conn]bool
	logger *zap.Logger
}

// NewHub creates an empty Hub.
func NewHub(logger *zap.Logger) *Hub {
	return &Hub{
		rooms:  make(map[string]map[Conn]bool),
		logger: logger,
	}
}

// Join registers a connection under a room.
func (h *Hub) Join(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[Conn]bool)
	}
	h.rooms[room][c] = true
	h.logger.Debug("socket joined", zap.String("room", room))
}

// Leave removes a connection from a room, dropping the room when empty.
func (h *Hub) Leave(room string, c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.rooms[room]; ok {
		delete(subs, c)
		if len(subs) == 0 {
			delete(h.rooms, room)
		}
		h.logger.Debug("socket left", zap.String("room", room))
	}
}

// Publish delivers an event to every subscriber of the organisation's room
// and, because every payload references an order, to the public per-order
// room as well. A failed write is logged and the event is dropped for that
// subscriber only.
func (h *Hub) Publish(t EventType, payload Payload, orgID string) {
	env, err := NewEnvelope(t, payload)
	if err != nil {
		h.logger.Error("publish: bad event", zap.Error(err))
		return
	}
	h.broadcast(OrgRoom(orgID), env)
	if orderID := payload.EventOrderID(); orderID != "" {
		h.broadcast(OrderRoom(orderID), env)
	}
}

func (h *Hub) broadcast(room string, env Envelope) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[room] {
		if err := c.WriteJSON(env); err != nil {
			h.logger.Warn("socket write failed",
				zap.String("room", room),
				zap.String("event", string(env.Type)),
				zap.Error(err))
		}
	}
}
