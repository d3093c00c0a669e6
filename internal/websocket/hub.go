package websocket

import (
	"context"
	"net/http"
	"sync"
	"time"

	"procurement/internal/middleware"
	"procurement/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are enforced by the CORS layer in front of the API
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Client is one connection subscribed to a single RFP room
type Client struct {
	Hub   *Hub
	Conn  *websocket.Conn
	Send  chan []byte
	RFPID string
	Actor model.Actor
}

// RoomGuard reports whether actor may watch the RFP room.
type RoomGuard func(ctx context.Context, actor model.Actor, rfpID string) error

type roomMessage struct {
	rfpID   string
	owner   *uuid.UUID // vendor the payload belongs to; nil for the whole room
	payload []byte
}

// reaches reports whether client may receive msg. Vendor data only goes to buyers
// and to that vendor's own users.
func (msg roomMessage) reaches(client *Client) bool {
	return msg.owner == nil || client.Actor.CanActFor(*msg.owner)
}

// Hub fans out quotation updates to the clients watching an RFP
type Hub struct {
	rooms      map[string]map[*Client]struct{}
	broadcast  chan roomMessage
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex
	logger     zerolog.Logger
}

func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		rooms:      make(map[string]map[*Client]struct{}),
		broadcast:  make(chan roomMessage, sendBuffer),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With().Str("component", "ws_hub").Logger(),
	}
}

// Run is the dispatch loop. It returns after Stop.
func (h *Hub) Run() {
	for {
		select {
		case <-h.done:
			h.closeAll()
			return
		case client := <-h.register:
			h.mu.Lock()
			room, ok := h.rooms[client.RFPID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.RFPID] = room
			}
			room[client] = struct{}{}
			h.mu.Unlock()
			h.logger.Debug().Str("rfp_id", client.RFPID).Str("user_id", client.Actor.ID).Msg("client joined")
		case client := <-h.unregister:
			h.mu.Lock()
			h.remove(client)
			h.mu.Unlock()
			h.logger.Debug().Str("rfp_id", client.RFPID).Str("user_id", client.Actor.ID).Msg("client left")
		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.rooms[msg.rfpID] {
				if !msg.reaches(client) {
					continue
				}
				select {
				case client.Send <- msg.payload:
				default:
					// slow consumer
					h.remove(client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Stop ends Run and closes every connection.
func (h *Hub) Stop() {
	close(h.done)
}

// remove must be called with mu held
func (h *Hub) remove(client *Client) {
	room, ok := h.rooms[client.RFPID]
	if !ok {
		return
	}
	if _, ok := room[client]; !ok {
		return
	}
	delete(room, client)
	close(client.Send)
	if len(room) == 0 {
		delete(h.rooms, client.RFPID)
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, room := range h.rooms {
		for client := range room {
			h.remove(client)
		}
	}
}

// BroadcastToRFP queues message for every client in the RFP room. It never blocks the caller.
func (h *Hub) BroadcastToRFP(rfpID string, message []byte) {
	h.enqueue(roomMessage{rfpID: rfpID, payload: message})
}

// BroadcastVendorUpdate queues message for the buyers in the RFP room and the users of
// vendorID. Competing vendors in the same room do not receive it.
func (h *Hub) BroadcastVendorUpdate(rfpID string, vendorID uuid.UUID, message []byte) {
	h.enqueue(roomMessage{rfpID: rfpID, owner: &vendorID, payload: message})
}

func (h *Hub) enqueue(msg roomMessage) {
	select {
	case h.broadcast <- msg:
	default:
		h.logger.Warn().Str("rfp_id", msg.rfpID).Msg("broadcast queue full, dropping message")
	}
}

// ClientCount returns the number of clients in an RFP room.
func (h *Hub) ClientCount(rfpID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[rfpID])
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			// One JSON document per frame
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only drains control frames; clients never push data.
func (c *Client) readPump() {
	defer func() {
		select {
		case c.Hub.unregister <- c:
		case <-c.Hub.done:
		}
		_ = c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Hub.logger.Warn().Err(err).Str("rfp_id", c.RFPID).Msg("websocket read failed")
			}
			return
		}
	}
}

// ServeWs upgrades GET /ws?rfp_id=&token= into a room subscription
func ServeWs(hub *Hub, c *gin.Context, auth *middleware.Auth, guard RoomGuard) {
	rfpID := c.Query("rfp_id")
	if _, err := uuid.Parse(rfpID); err != nil {
		c.AbortWithStatus(http.StatusBadRequest)
		return
	}

	tokenString := c.Query("token")
	if tokenString == "" {
		hub.logger.Info().Msg("websocket rejected: missing token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	actor, err := auth.ParseToken(tokenString)
	if err != nil {
		hub.logger.Info().Err(err).Msg("websocket rejected: invalid token")
		c.AbortWithStatus(http.StatusUnauthorized)
		return
	}
	switch actor.Role {
	case model.RoleAdmin, model.RoleManager, model.RoleVendor:
	default:
		c.AbortWithStatus(http.StatusForbidden)
		return
	}
	if guard != nil {
		if err := guard(c.Request.Context(), actor, rfpID); err != nil {
			hub.logger.Info().Err(err).Str("rfp_id", rfpID).Str("user_id", actor.ID).Msg("websocket rejected: room access denied")
			c.AbortWithStatus(http.StatusForbidden)
			return
		}
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		hub.logger.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}
	client := &Client{Hub: hub, Conn: conn, Send: make(chan []byte, sendBuffer), RFPID: rfpID, Actor: actor}
	select {
	case hub.register <- client:
	case <-hub.done:
		_ = conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}
