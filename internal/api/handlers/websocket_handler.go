// internal/api/handlers/websocket_handler.go
package handlers

import (
	"net/http"
	"time"

	"commande-track-api-server/internal/auth"
	"commande-track-api-server/internal/socket"
	"commande-track-api-server/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Maximum wait for a message (or ping) from the client.
const pongWait = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type WebSocketHandler struct {
	Hub    *socket.Hub
	Store  *store.OrganisationStore
	Secret []byte
	Logger *zap.Logger
}

// ServeWs subscribes an authenticated member to their organisation's room.
// The browser websocket API cannot set headers, so the JWT travels as a query
// parameter.
func (h *WebSocketHandler) ServeWs(c *gin.Context) {
	tokenString := c.Query("token")
	if tokenString == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Token is required"})
		return
	}

	claims, err := auth.ParseJWT(h.Secret, tokenString)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	room := socket.OrgRoom(claims.OrgID)
	h.serve(conn, room)
}

// ServeOrderWs subscribes an unauthenticated mobile view to one order's
// public room. The subscriber never sees any other order's traffic.
func (h *WebSocketHandler) ServeOrderWs(c *gin.Context) {
	orderID := c.Param("id")
	if _, err := primitive.ObjectIDFromHex(orderID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid order id"})
		return
	}
	// Subscribing to a non-existent order is a 404, not an open channel.
	if _, _, err := h.Store.FindOrderAnyOrg(c.Request.Context(), orderID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Order not found"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.Logger.Warn("failed to upgrade connection", zap.Error(err))
		return
	}

	h.serve(conn, socket.OrderRoom(orderID))
}

func (h *WebSocketHandler) serve(raw *websocket.Conn, room string) {
	conn := socket.NewConn(raw)
	h.Hub.Join(room, conn)
	defer func() {
		h.Hub.Leave(room, conn)
		conn.Close()
	}()

	raw.SetReadDeadline(time.Now().Add(pongWait))
	// A client PING extends the deadline; gorilla answers with PONG itself.
	raw.SetPingHandler(func(string) error {
		raw.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		if _, _, err := raw.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.Logger.Debug("unexpected socket close", zap.String("room", room), zap.Error(err))
			}
			break
		}
	}
}
