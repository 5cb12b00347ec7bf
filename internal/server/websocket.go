package server

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/conneroisu/sitepress/internal/logging"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Send pings to peer with this period.
	pingPeriod = 30 * time.Second

	// Messages queued per client before it is dropped as too slow.
	sendBuffer = 16
)

// Message types sent to browsers.
const (
	MessageReload = "reload"
	MessageError  = "error"
)

// Message is the JSON payload pushed to live-reload clients.
type Message struct {
	Type  string `json:"type"`
	Token string `json:"token,omitempty"`
	// HTML carries the error overlay for MessageError.
	HTML string `json:"html,omitempty"`
}

type client struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks live-reload websocket clients and broadcasts build results to
// them.
type Hub struct {
	mu             sync.RWMutex
	clients        map[*client]struct{}
	originPatterns []string
	logger         logging.Logger
}

// NewHub creates a hub. Connections are accepted from the same origin and
// from any host matching originPatterns.
func NewHub(originPatterns []string, logger logging.Logger) *Hub {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &Hub{
		clients:        make(map[*client]struct{}),
		originPatterns: originPatterns,
		logger:         logger.WithComponent("livereload"),
	}
}

// ServeHTTP upgrades the request and serves the client until it
// disconnects.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		h.logger.Warn(r.Context(), err, "WebSocket upgrade failed", "remote", r.RemoteAddr)
		return
	}

	c := &client{conn: conn, send: make(chan []byte, sendBuffer)}
	h.add(c)
	defer h.remove(c)

	h.writePump(r.Context(), c)
}

func (h *Hub) add(c *client) {
	h.mu.Lock()
	h.clients[c] = struct{}{}
	n := len(h.clients)
	h.mu.Unlock()
	h.logger.Debug(context.Background(), "Client connected", "clients", n)
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	delete(h.clients, c)
	n := len(h.clients)
	h.mu.Unlock()
	c.conn.Close(websocket.StatusNormalClosure, "")
	h.logger.Debug(context.Background(), "Client disconnected", "clients", n)
}

// writePump forwards queued messages and pings until the peer goes away.
// Clients never send anything meaningful, so reads are discarded.
func (h *Hub) writePump(ctx context.Context, c *client) {
	ctx = c.conn.CloseRead(ctx)

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-c.send:
			wctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Write(wctx, websocket.MessageText, msg)
			cancel()
			if err != nil {
				return
			}
		case <-ticker.C:
			pctx, cancel := context.WithTimeout(ctx, writeWait)
			err := c.conn.Ping(pctx)
			cancel()
			if err != nil {
				return
			}
		}
	}
}

// Broadcast queues msg for every client. A client whose queue is full is
// disconnected.
func (h *Hub) Broadcast(msg Message) {
	data, err := json.Marshal(msg)
	if err != nil {
		h.logger.Error(context.Background(), err, "Failed to encode live-reload message")
		return
	}

	h.mu.RLock()
	var slow []*client
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			slow = append(slow, c)
		}
	}
	n := len(h.clients)
	h.mu.RUnlock()

	for _, c := range slow {
		c.conn.Close(websocket.StatusPolicyViolation, "client too slow")
	}
	h.logger.Debug(context.Background(), "Broadcast message", "type", msg.Type, "clients", n)
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.RLock()
	clients := make([]*client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.mu.RUnlock()

	for _, c := range clients {
		c.conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
}
