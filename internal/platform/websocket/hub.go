// Package websocket pushes live events to signed-in staff. Each connection is
// bound to the identity that opened it and receives events for its own user
// topic and for each of its roles.
package websocket

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	gorillawebsocket "github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/ayurclinic/clinic/internal/platform/auth"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	sendBuffer = 64
)

// Event is one message pushed to a client.
type Event struct {
	Type      string          `json:"type"`
	Topic     string          `json:"topic"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

func UserTopic(userID string) string { return "user:" + userID }
func RoleTopic(role string) string   { return "role:" + role }

// Client is a single connection. Send is closed by the hub on Unregister.
type Client struct {
	ID     string
	UserID string
	Topics []string
	Send   chan []byte
}

func newClient(userID string, roles []string) *Client {
	topics := []string{UserTopic(userID)}
	for _, r := range roles {
		topics = append(topics, RoleTopic(r))
	}
	return &Client{
		ID:     uuid.New().String(),
		UserID: userID,
		Topics: topics,
		Send:   make(chan []byte, sendBuffer),
	}
}

// Hub tracks clients by topic. A client whose buffer is full misses the
// event; the stored notification is still there on the next poll.
type Hub struct {
	mu      sync.RWMutex
	clients map[string]map[*Client]struct{} // topic -> clients
	all     map[*Client]struct{}
	logger  zerolog.Logger
}

func NewHub() *Hub {
	return &Hub{
		clients: make(map[string]map[*Client]struct{}),
		all:     make(map[*Client]struct{}),
		logger:  zerolog.Nop(),
	}
}

func (h *Hub) SetLogger(l zerolog.Logger) { h.logger = l.With().Str("component", "websocket").Logger() }

func (h *Hub) Register(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.all[client] = struct{}{}
	for _, topic := range client.Topics {
		if h.clients[topic] == nil {
			h.clients[topic] = make(map[*Client]struct{})
		}
		h.clients[topic][client] = struct{}{}
	}
}

// Unregister removes client from every topic and closes its Send channel.
// Calling it twice is safe.
func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.all[client]; !ok {
		return
	}
	for _, topic := range client.Topics {
		if subscribers, ok := h.clients[topic]; ok {
			delete(subscribers, client)
			if len(subscribers) == 0 {
				delete(h.clients, topic)
			}
		}
	}
	delete(h.all, client)
	close(client.Send)
}

// Broadcast sends event to every client on its topic and returns how many
// accepted it.
func (h *Hub) Broadcast(event Event) int {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Str("type", event.Type).Msg("marshal event")
		return 0
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	delivered := 0
	for client := range h.clients[event.Topic] {
		select {
		case client.Send <- data:
			delivered++
		default:
			h.logger.Warn().Str("client_id", client.ID).Str("type", event.Type).Msg("client buffer full, event dropped")
		}
	}
	return delivered
}

// PublishToUser pushes payload to every open connection of userID.
func (h *Hub) PublishToUser(_ context.Context, userID, eventType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	h.Broadcast(Event{
		Type:      eventType,
		Topic:     UserTopic(userID),
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
	return nil
}

func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.all)
}

func (h *Hub) TopicCount(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients[topic])
}

// ---------------------------------------------------------------------------
// Handler
// ---------------------------------------------------------------------------

// Handler upgrades authenticated requests to WebSocket connections.
type Handler struct {
	hub      *Hub
	upgrader gorillawebsocket.Upgrader
}

// NewHandler accepts browser connections only from allowedOrigins. A "*"
// entry allows any origin. Requests without an Origin header are always
// accepted.
func NewHandler(hub *Hub, allowedOrigins []string) *Handler {
	return &Handler{
		hub: hub,
		upgrader: gorillawebsocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				return origin == "" || slices.Contains(allowedOrigins, "*") || slices.Contains(allowedOrigins, origin)
			},
		},
	}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/ws", h.Connect)
}

func (h *Handler) Connect(c echo.Context) error {
	ctx := c.Request().Context()
	userID := auth.UserIDFromContext(ctx)
	if userID == "" {
		return echo.NewHTTPError(http.StatusUnauthorized, "authentication required")
	}

	ws, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		return nil
	}

	client := newClient(userID, auth.RolesFromContext(ctx))
	h.hub.Register(client)
	h.hub.logger.Debug().Str("client_id", client.ID).Str("user_id", userID).Msg("client connected")

	go h.writePump(client, ws)
	go h.readPump(client, ws)
	return nil
}

// readPump only watches for close and pong frames; clients do not send
// commands.
func (h *Handler) readPump(client *Client, ws *gorillawebsocket.Conn) {
	defer func() {
		h.hub.Unregister(client)
		ws.Close()
	}()

	ws.SetReadLimit(512)
	_ = ws.SetReadDeadline(time.Now().Add(pongWait))
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Handler) writePump(client *Client, ws *gorillawebsocket.Conn) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		ws.Close()
	}()

	for {
		select {
		case message, ok := <-client.Send:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = ws.WriteMessage(gorillawebsocket.CloseMessage, []byte{})
				return
			}
			if err := ws.WriteMessage(gorillawebsocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := ws.WriteMessage(gorillawebsocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
