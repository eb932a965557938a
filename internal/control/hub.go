package control

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/Faultbox/mirror-viewer/internal/logger"
	"github.com/Faultbox/mirror-viewer/internal/viewer"
)

const (
	writeWait      = 5 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 4096
	sendBuffer     = 16
)

// Message is the JSON frame exchanged over the WebSocket.
type Message struct {
	Type   string         `json:"type"`
	Path   string         `json:"path,omitempty"`
	Token  uint64         `json:"token,omitempty"`
	Error  string         `json:"error,omitempty"`
	Status *viewer.Status `json:"status,omitempty"`
}

// Message types.
const (
	TypeChangeTexture    = "changeTexture"
	TypeAccepted         = "accepted"
	TypeTextureUpdated   = "textureUpdated"
	TypeTextureDiscarded = "textureDiscarded"
	TypeModelLoaded      = "modelLoaded"
	TypeScreenshotSaved  = "screenshotSaved"
	TypeStatus           = "status"
	TypeError            = "error"
)

func eventMessage(e viewer.Event) Message {
	m := Message{Path: e.Path, Token: e.Token}
	switch e.Type {
	case viewer.EventTextureUpdated:
		m.Type = TypeTextureUpdated
	case viewer.EventTextureDiscarded:
		m.Type = TypeTextureDiscarded
	case viewer.EventModelLoaded:
		m.Type = TypeModelLoaded
	case viewer.EventScreenshotSaved:
		m.Type = TypeScreenshotSaved
	default:
		m.Type = TypeError
	}
	if e.Err != nil {
		m.Error = e.Err.Error()
	}
	return m
}

type client struct {
	conn *websocket.Conn
	send chan Message
}

// Hub tracks connected WebSocket clients and fans messages out to them.
type Hub struct {
	mu      sync.Mutex
	clients map[*client]struct{}
	closed  bool
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{clients: make(map[*client]struct{})}
}

// Len returns the number of connected clients.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues m for every client without blocking. Clients whose queue
// is full are disconnected.
func (h *Hub) Broadcast(m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		select {
		case c.send <- m:
		default:
			logger.Warn("dropping slow websocket client", zap.String("remote", c.conn.RemoteAddr().String()))
			h.removeLocked(c)
		}
	}
}

func (h *Hub) add(c *client) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.clients[c] = struct{}{}
	return true
}

func (h *Hub) remove(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	close(c.send)
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	for c := range h.clients {
		h.removeLocked(c)
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Any origin may connect; the slider page can be served from anywhere.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	c := &client{conn: conn, send: make(chan Message, sendBuffer)}
	if !s.hub.add(c) {
		conn.Close()
		return
	}
	logger.Debug("websocket client connected", zap.String("remote", conn.RemoteAddr().String()))

	status := s.viewer.Status()
	s.hub.reply(c, Message{Type: TypeStatus, Status: &status})

	go c.writePump()
	s.readPump(c)
}

// readPump handles client requests until the connection fails.
func (s *Server) readPump(c *client) {
	defer func() {
		s.hub.remove(c)
		c.conn.Close()
		logger.Debug("websocket client disconnected", zap.String("remote", c.conn.RemoteAddr().String()))
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var m Message
		if err := c.conn.ReadJSON(&m); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				logger.Warn("websocket read failed", zap.Error(err))
			}
			return
		}
		s.hub.reply(c, s.handleMessage(m))
	}
}

func (s *Server) handleMessage(m Message) Message {
	if m.Type != TypeChangeTexture {
		return Message{Type: TypeError, Error: "unknown message type " + m.Type}
	}
	if m.Path == "" {
		return Message{Type: TypeError, Error: "path is required"}
	}

	ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
	defer cancel()
	token, err := s.viewer.RequestTexture(ctx, m.Path)
	if err != nil {
		return Message{Type: TypeError, Path: m.Path, Error: err.Error()}
	}
	return Message{Type: TypeAccepted, Path: m.Path, Token: token}
}

// reply queues m for one client unless it has gone away.
func (h *Hub) reply(c *client, m Message) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; !ok {
		return
	}
	select {
	case c.send <- m:
	default:
		h.removeLocked(c)
	}
}

// writePump owns all writes to the connection.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case m, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			data, err := json.Marshal(m)
			if err != nil {
				logger.Error("failed to encode websocket message", zap.Error(err))
				continue
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
