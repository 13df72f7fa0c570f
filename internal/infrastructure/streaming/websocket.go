package streaming

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/rolfea/book-buddy/internal/application"
	"github.com/rolfea/book-buddy/internal/domain"
)

const (
	writeWait  = 5 * time.Second
	sendBuffer = 16
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // The UI may be served from another origin
	},
}

// Message is the envelope pushed to WebSocket clients
type Message struct {
	Type   string                `json:"type"` // "status" or "scan"
	Event  *domain.ScanEvent     `json:"event,omitempty"`
	Status *domain.ScannerStatus `json:"status,omitempty"`
}

// StatusFunc returns the current scanner state for newly connected clients
type StatusFunc func() domain.ScannerStatus

// EventHub pushes scan events to every connected WebSocket client.
// A client that falls behind is disconnected instead of slowing the scanner.
type EventHub struct {
	status StatusFunc
	logger application.Logger

	mutex   sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

type client struct {
	conn *websocket.Conn
	send chan []byte
	once sync.Once
}

// NewEventHub creates a hub
func NewEventHub(status StatusFunc, logger application.Logger) *EventHub {
	return &EventHub{
		status:  status,
		logger:  logger,
		clients: make(map[*client]struct{}),
	}
}

// HandleEvent broadcasts a scan event. It never blocks.
func (h *EventHub) HandleEvent(event domain.ScanEvent) {
	h.Broadcast(Message{Type: "scan", Event: &event})
}

// Broadcast sends msg to every client
func (h *EventHub) Broadcast(msg Message) {
	payload, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error("Error encoding %s message: %v", msg.Type, err)
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()

	for c := range h.clients {
		select {
		case c.send <- payload:
		default:
			h.logger.Warn("WebSocket client %s too slow, disconnecting", c.conn.RemoteAddr())
			h.drop(c)
		}
	}
}

// Clients returns the number of connected clients
func (h *EventHub) Clients() int {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return len(h.clients)
}

// ServeHTTP upgrades the request and registers the client
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("WebSocket upgrade failed: %v", err)
		return
	}

	c := &client{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}

	if h.status != nil {
		status := h.status()
		if payload, err := json.Marshal(Message{Type: "status", Status: &status}); err == nil {
			c.send <- payload
		}
	}

	h.mutex.Lock()
	if h.closed {
		h.mutex.Unlock()
		conn.Close()
		return
	}
	h.clients[c] = struct{}{}
	h.mutex.Unlock()

	h.logger.Info("WebSocket client connected: %s", conn.RemoteAddr())

	go h.writeLoop(c)
	h.readLoop(c)
}

// Close disconnects every client
func (h *EventHub) Close() {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	h.closed = true
	for c := range h.clients {
		h.drop(c)
	}
}

// drop unregisters c. Called with the mutex held.
func (h *EventHub) drop(c *client) {
	delete(h.clients, c)
	c.once.Do(func() { close(c.send) })
}

// readLoop discards client messages and notices disconnects
func (h *EventHub) readLoop(c *client) {
	defer func() {
		h.mutex.Lock()
		h.drop(c)
		h.mutex.Unlock()
		h.logger.Info("WebSocket client disconnected: %s", c.conn.RemoteAddr())
	}()

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *EventHub) writeLoop(c *client) {
	defer c.conn.Close()

	for payload := range c.send {
		c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Debug("WebSocket write failed: %v", err)
			return
		}
	}

	c.conn.SetWriteDeadline(time.Now().Add(writeWait))
	c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
}
