package transport

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

const (
	socketBufferSize  = 1024
	messageBufferSize = 8
	writeWait         = time.Second
)

// WebSocket serves reports as binary messages to every connected websocket
// client. It is an http.Handler; mount it on the status server.
type WebSocket struct {
	upgrader websocket.Upgrader
	pending  pending

	mu      sync.RWMutex
	clients map[*wsClient]struct{}
	closed  bool
}

type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func NewWebSocket() *WebSocket {
	return &WebSocket{
		upgrader: websocket.Upgrader{
			ReadBufferSize:  socketBufferSize,
			WriteBufferSize: socketBufferSize,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		clients: make(map[*wsClient]struct{}),
	}
}

func (h *WebSocket) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.WithError(err).Warn("websocket: upgrade failed")
		return
	}
	c := &wsClient{conn: conn, send: make(chan []byte, messageBufferSize)}
	if !h.join(c) {
		_ = conn.Close()
		return
	}
	log.WithField("remote", r.RemoteAddr).Info("websocket: peer connected")

	go c.write()
	c.read()

	h.leave(c)
	log.WithField("remote", r.RemoteAddr).Info("websocket: peer disconnected")
}

func (h *WebSocket) join(c *wsClient) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *WebSocket) leave(c *wsClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

// read drains and discards client messages until the connection fails.
func (c *wsClient) read() {
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (c *wsClient) write() {
	defer c.conn.Close()
	for msg := range c.send {
		_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.conn.WriteMessage(websocket.BinaryMessage, msg); err != nil {
			return
		}
	}
	_ = c.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
}

func (h *WebSocket) SetReport(b []byte) { h.pending.set(b) }

// Notify queues the report for every client. A client whose queue is full
// misses this report.
func (h *WebSocket) Notify() error {
	msg := h.pending.message()
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.closed {
		return h.pending.record(ErrClosed)
	}
	if msg == nil {
		return nil
	}
	for c := range h.clients {
		select {
		case c.send <- msg:
		default:
		}
	}
	return h.pending.record(nil)
}

func (h *WebSocket) PeerConnected() bool { return h.Peers() > 0 }

func (h *WebSocket) Peers() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (h *WebSocket) Stats() Stats {
	s := h.pending.stats("websocket")
	s.Peers = h.Peers()
	s.Connected = s.Peers > 0
	return s
}

// Close disconnects every client and rejects new ones.
func (h *WebSocket) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return nil
	}
	h.closed = true
	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
	return nil
}
