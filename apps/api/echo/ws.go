package echoapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/kikundi/core"
	"github.com/trezcool/kikundi/core/chat"
	"github.com/trezcool/kikundi/core/session"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = 30 * time.Second
)

// real-time event types
const (
	EventSessionScheduled = "session.scheduled"
	EventSessionUpdated   = "session.updated"
	EventSessionRSVP      = "session.rsvp"
	EventMessagePosted    = "chat.message"
	EventMessagePinned    = "chat.pin"
	EventReactionToggled  = "chat.reaction"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true }, // auth is handled by the JWT middleware
}

// Envelope wraps all messages pushed to connected clients.
type Envelope struct {
	Type      string                 `json:"type"`
	Data      map[string]interface{} `json:"data"`
	Timestamp int64                  `json:"timestamp"`
}

type wsClient struct {
	userID string
	conn   *websocket.Conn
	send   chan []byte
	hub    *Hub
}

// Hub maintains the set of connected clients and pushes real-time events to
// them. Events are fanned out to every connection; clients filter on the
// group_id carried in the envelope data.
type Hub struct {
	logger core.Logger

	clients    map[*wsClient]struct{}
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
}

func NewHub(logger core.Logger) *Hub {
	hub := &Hub{
		logger:     logger,
		clients:    make(map[*wsClient]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
	}
	go hub.run()
	return hub
}

func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = struct{}{}

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// send buffer full, drop the connection
					close(client.send)
					delete(h.clients, client)
				}
			}
		}
	}
}

// Serve upgrades the request to a WebSocket connection and registers it with
// the hub. The connection only receives events; incoming frames are discarded.
func (h *Hub) Serve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	conn, err := upgrader.Upgrade(ctx.Response(), ctx.Request(), nil)
	if err != nil {
		return errors.Wrap(err, "upgrading connection")
	}

	client := &wsClient{
		userID: claims.Subject,
		conn:   conn,
		send:   make(chan []byte, 256),
		hub:    h,
	}
	h.register <- client

	go client.writePump()
	go client.readPump()
	return nil
}

func (h *Hub) publish(event string, data map[string]interface{}) {
	if h == nil {
		return
	}
	bytes, err := json.Marshal(Envelope{
		Type:      event,
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
	if err != nil {
		h.logger.Error("failed to marshal event", err)
		return
	}
	h.broadcast <- bytes
}

func (h *Hub) NotifySessionCreated(sess session.Session) {
	h.publish(EventSessionScheduled, map[string]interface{}{
		"group_id": sess.GroupID,
		"session":  sess,
	})
}

func (h *Hub) NotifySessionUpdated(sess session.Session) {
	h.publish(EventSessionUpdated, map[string]interface{}{
		"group_id": sess.GroupID,
		"session":  sess,
	})
}

func (h *Hub) NotifySessionRSVP(sess session.Session, userID, status string) {
	h.publish(EventSessionRSVP, map[string]interface{}{
		"group_id":   sess.GroupID,
		"session_id": sess.ID,
		"user_id":    userID,
		"status":     status,
	})
}

func (h *Hub) NotifyMessagePosted(msg chat.Message) {
	h.publish(EventMessagePosted, map[string]interface{}{
		"group_id": msg.GroupID,
		"message":  msg,
	})
}

func (h *Hub) NotifyMessagePinned(msg chat.Message) {
	h.publish(EventMessagePinned, map[string]interface{}{
		"group_id":   msg.GroupID,
		"message_id": msg.ID,
		"pinned":     msg.Pinned,
	})
}

func (h *Hub) NotifyReactionToggled(msg chat.Message, emoji, userID string) {
	h.publish(EventReactionToggled, map[string]interface{}{
		"group_id":   msg.GroupID,
		"message_id": msg.ID,
		"emoji":      emoji,
		"user_id":    userID,
		"reactions":  msg.Reactions,
	})
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Debug("read error", err)
			}
			break
		}
	}
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(wsPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
