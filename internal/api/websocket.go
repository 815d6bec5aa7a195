package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/uozi-tech/billing-sdk-go/internal/infrastructure/logging"
)

// Message types on the key event stream.
const (
	WSTypeEvent = "event"
	WSTypePing  = "ping"
	WSTypePong  = "pong"
	WSTypeError = "error"

	// ChannelKeyStatus carries key status changes. Keys are masked.
	ChannelKeyStatus = "keys.status_changed"

	wsSendBufferSize = 64
	wsPingInterval   = 30 * time.Second
	wsPongTimeout    = 10 * time.Second
	wsMaxMessageSize = 512
)

// WSMessage is one frame on the key event stream.
type WSMessage struct {
	Type      string `json:"type"`
	ID        string `json:"id,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`
	Payload   any    `json:"payload,omitempty"`
}

// keyEvent is the payload of a ChannelKeyStatus event.
type keyEvent struct {
	Key    string `json:"key"`
	Status string `json:"status"`
	Reason string `json:"reason,omitempty"`
}

// Hub pushes key events to every connected websocket client. The stream is
// read-only: clients receive every event and may only send pings.
type Hub struct {
	logger *logging.Logger

	mu      sync.Mutex
	clients map[*wsClient]struct{}
	closed  bool
}

// wsClient is one websocket connection. send is closed by the hub, under
// its lock, when the client is removed.
type wsClient struct {
	conn    *websocket.Conn
	send    chan []byte
	subject string
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  512,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

// NewHub creates an empty hub.
func NewHub(logger *logging.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*wsClient]struct{}),
	}
}

// Run blocks until ctx is cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) {
	<-ctx.Done()
	h.closeAll()
}

// add registers c. It reports false once the hub has shut down.
func (h *Hub) add(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	h.logger.Debug("websocket client connected", "clients", len(h.clients), "subject", c.subject)
	return true
}

// remove unregisters c. Safe to call more than once.
func (h *Hub) remove(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
	h.logger.Debug("websocket client disconnected", "clients", len(h.clients), "subject", c.subject)
}

// Broadcast sends an event to every client. A client whose buffer is full
// misses the event.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := json.Marshal(WSMessage{
		Type:      WSTypeEvent,
		EventType: eventType,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   payload,
	})
	if err != nil {
		h.logger.Error("failed to marshal websocket event", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			h.logger.Warn("websocket client too slow, event dropped", "event_type", eventType, "subject", c.subject)
		}
	}
}

// reply queues msg for c alone, if c is still registered.
func (h *Hub) reply(c *wsClient, msg WSMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// closeAll removes every client and refuses new ones. Each writer sends a
// close frame and shuts its connection when its channel closes.
func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// handleWebSocket upgrades the connection. Authentication happens in
// authMiddleware before the upgrade.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	subject, _ := r.Context().Value(ctxKeySubject).(string)
	c := &wsClient{
		conn:    conn,
		send:    make(chan []byte, wsSendBufferSize),
		subject: subject,
	}
	if !s.hub.add(c) {
		conn.Close()
		return
	}

	go c.writeLoop()
	go c.readLoop(s.hub)
}

// readLoop answers pings and watches for the peer going away.
func (c *wsClient) readLoop(h *Hub) {
	defer func() {
		h.remove(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(wsMaxMessageSize)
	extend := func() error {
		return c.conn.SetReadDeadline(time.Now().Add(wsPingInterval + wsPongTimeout))
	}
	_ = extend()
	c.conn.SetPongHandler(func(string) error { return extend() })

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read error", "error", err, "subject", c.subject)
			}
			return
		}
		_ = extend()

		var msg WSMessage
		switch {
		case json.Unmarshal(data, &msg) != nil:
			h.reply(c, WSMessage{Type: WSTypeError, Payload: map[string]string{"message": "invalid JSON message"}})
		case msg.Type == WSTypePing:
			h.reply(c, WSMessage{Type: WSTypePong, ID: msg.ID})
		default:
			h.reply(c, WSMessage{Type: WSTypeError, ID: msg.ID, Payload: map[string]string{"message": "stream is read-only"}})
		}
	}
}

// writeLoop drains send onto the connection and keeps it alive with pings.
func (c *wsClient) writeLoop() {
	ticker := time.NewTicker(wsPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(wsPongTimeout))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsPongTimeout)); err != nil {
				return
			}
		}
	}
}
