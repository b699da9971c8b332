// Package notify pushes store changes to websocket clients.
//
// A client connects, sends {"token": "<jwt>"} within authTimeout, and then
// receives {"type": ..., "data": ...} messages for every change.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"sprayDispatch/internal/logging"
	"sprayDispatch/internal/store"
)

const (
	authTimeout    = 5 * time.Second
	pingInterval   = 30 * time.Second
	pongWait       = 60 * time.Second
	maxMessageSize = 8192
	writeWait      = 10 * time.Second
)

// Message types.
const (
	TypeBookingUpdated  = "booking_updated"
	TypeOperatorUpdated = "operator_updated"
	TypeLoggedOut       = "operator_logged_out"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// AuthFunc validates the first-message token and returns the subject.
type AuthFunc func(token string) (subject string, err error)

// Message is the envelope sent to clients.
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data,omitempty"`
}

// Client is one websocket connection.
type Client struct {
	ID      string
	Subject string
	conn    *websocket.Conn
	send    chan []byte
	hub     *Hub
}

// outbound is one queued broadcast. When disconnect is set every client is
// sent msg and then closed.
type outbound struct {
	msg        []byte
	disconnect bool
}

// Hub tracks connected clients and fans messages out to them.
type Hub struct {
	clients    map[string]*Client
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	broadcast  chan outbound
	authFunc   AuthFunc
	log        *slog.Logger
	done       chan struct{}
}

func NewHub(authFunc AuthFunc, log *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client, 10),
		unregister: make(chan *Client, 10),
		broadcast:  make(chan outbound, 256),
		authFunc:   authFunc,
		log:        logging.OrDiscard(log),
		done:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until ctx is done, then
// disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for id, c := range h.clients {
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			h.log.Info("hub_stopped")
			return

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.log.Info("ws_client_registered", slog.String("client_id", c.ID), slog.String("subject", c.Subject))

		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.send)
			}
			h.mu.Unlock()
			h.log.Info("ws_client_unregistered", slog.String("client_id", c.ID))

		case out := <-h.broadcast:
			h.mu.Lock()
			for id, c := range h.clients {
				select {
				case c.send <- out.msg:
					if !out.disconnect {
						continue
					}
				default:
					// Slow consumer.
					h.log.Warn("ws_client_evicted", slog.String("client_id", id))
				}
				close(c.send)
				delete(h.clients, id)
			}
			h.mu.Unlock()
			if out.disconnect {
				h.log.Info("ws_clients_disconnected")
			}
		}
	}
}

// ClientCount returns the number of registered clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast queues msg for every client; it drops the message when the queue is full.
func (h *Hub) Broadcast(msg []byte) {
	select {
	case h.broadcast <- outbound{msg: msg}:
	default:
		h.log.Error("ws_broadcast_dropped")
	}
}

// disconnectAll queues msg as the last message for every client and then
// closes them. Unlike Broadcast it waits for queue space.
func (h *Hub) disconnectAll(msg []byte) {
	select {
	case h.broadcast <- outbound{msg: msg, disconnect: true}:
	case <-h.done:
	}
}

// BroadcastJSON marshals v and broadcasts it.
func (h *Hub) BroadcastJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	h.Broadcast(b)
	return nil
}

// PublishChange is a store subscriber that forwards changes to clients.
// A logout ends every connection, since their tokens no longer name the
// signed-in operator.
func (h *Hub) PublishChange(c store.Change) {
	var msg Message
	switch {
	case c.Kind == store.ChangeBooking && c.Booking != nil:
		msg = Message{Type: TypeBookingUpdated, Data: BookingPayload{
			Booking:        *c.Booking,
			PreviousStatus: string(c.PreviousStatus),
			At:             c.At,
		}}
	case c.Kind == store.ChangeOperator && c.Operator != nil:
		msg = Message{Type: TypeOperatorUpdated, Data: c.Operator}
	case c.Kind == store.ChangeOperator:
		b, err := json.Marshal(Message{Type: TypeLoggedOut})
		if err != nil {
			h.log.Error("ws_marshal_failed", slog.String("error", err.Error()))
			return
		}
		h.disconnectAll(b)
		return
	default:
		return
	}
	if err := h.BroadcastJSON(msg); err != nil {
		h.log.Error("ws_marshal_failed", slog.String("error", err.Error()))
	}
}

// ServeWS upgrades the request and authenticates the connection with its
// first message.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("ws_upgrade_failed", slog.String("error", err.Error()))
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(authTimeout))
	var authMsg struct {
		Token string `json:"token"`
	}
	if err := conn.ReadJSON(&authMsg); err != nil {
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseProtocolError, "auth timeout"))
		_ = conn.Close()
		h.log.Warn("ws_auth_failed", slog.String("error", err.Error()))
		return
	}
	subject, err := h.authFunc(authMsg.Token)
	if err != nil {
		_ = conn.WriteJSON(map[string]string{"error": "invalid token"})
		_ = conn.Close()
		h.log.Warn("ws_auth_invalid_token", slog.String("error", err.Error()))
		return
	}

	c := &Client{
		ID:      uuid.NewString(),
		Subject: subject,
		conn:    conn,
		send:    make(chan []byte, 64),
		hub:     h,
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	// Acknowledge before the write pump owns the connection.
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(map[string]string{"status": "authenticated", "client_id": c.ID}); err != nil {
		_ = conn.Close()
		return
	}
	select {
	case h.register <- c:
	case <-h.done:
		_ = conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		_ = c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	for {
		// Clients only talk during auth; anything else just keeps the read deadline fresh.
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("ws_read_error", slog.String("client_id", c.ID), slog.String("error", err.Error()))
			}
			return
		}
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
