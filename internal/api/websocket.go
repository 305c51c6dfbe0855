// Package api - WebSocket feed pushing local score changes to the overlay
package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/alexbotov/smashrelay/internal/domain"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	sendBuffer = 256
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // The overlay is served from a different origin
	},
}

// WSMessage represents a WebSocket message
type WSMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// WSClient represents a WebSocket client connection
type WSClient struct {
	conn *websocket.Conn
	send chan []byte
}

// Hub tracks live feed clients and fans score updates out to them
type Hub struct {
	logger *slog.Logger

	mu      sync.Mutex
	clients map[*WSClient]struct{}
	closed  bool
}

// NewHub creates an empty hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		logger:  logger,
		clients: make(map[*WSClient]struct{}),
	}
}

// ClientCount returns the number of connected clients
func (hub *Hub) ClientCount() int {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	return len(hub.clients)
}

// BroadcastScore sends the score to every client
func (hub *Hub) BroadcastScore(score domain.LocalScore) {
	msg, err := encodeMessage("score", score)
	if err != nil {
		hub.logger.Error("failed to encode score message", "error", err)
		return
	}

	hub.mu.Lock()
	defer hub.mu.Unlock()
	for c := range hub.clients {
		select {
		case c.send <- msg:
		default:
			// Channel full, drop message
		}
	}
}

// Close disconnects every client; their pumps unregister them
func (hub *Hub) Close() {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	hub.closed = true
	for c := range hub.clients {
		c.conn.Close()
	}
}

func (hub *Hub) register(c *WSClient) bool {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if hub.closed {
		return false
	}
	hub.clients[c] = struct{}{}
	return true
}

// unregister removes c and closes its send channel under the hub lock,
// so a concurrent broadcast never sends on a closed channel
func (hub *Hub) unregister(c *WSClient) {
	hub.mu.Lock()
	defer hub.mu.Unlock()
	if _, ok := hub.clients[c]; ok {
		delete(hub.clients, c)
		close(c.send)
	}
}

// HandleScoreFeed handles GET /ws/scores
func (h *Handler) HandleScoreFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan []byte, sendBuffer),
	}
	// Current score first, then one message per change
	registered := false
	h.score.WithCurrent(r.Context(), func(current domain.LocalScore, err error) {
		if registered = h.hub.register(client); !registered {
			return
		}
		if err != nil {
			h.sendError(client, "SCORE_ERROR", "Failed to read score")
			return
		}
		h.sendMessage(client, "score", current)
	})
	if !registered {
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"))
		conn.Close()
		return
	}

	// Start goroutines for reading and writing
	go client.writePump()
	go h.readPump(client)
}

// writePump pumps messages from the send channel to the WebSocket connection
func (c *WSClient) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)
			if err := w.Close(); err != nil {
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

// readPump handles client messages until the connection closes
func (h *Handler) readPump(c *WSClient) {
	defer func() {
		h.hub.unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(4096)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.logger.Warn("websocket read failed", "error", err)
			}
			break
		}

		var msg WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			h.sendError(c, "INVALID_MESSAGE", "Invalid message format")
			continue
		}

		h.handleWSMessage(c, &msg)
	}
}

// handleWSMessage processes incoming WebSocket messages
func (h *Handler) handleWSMessage(c *WSClient, msg *WSMessage) {
	switch msg.Type {
	case "ping":
		h.sendMessage(c, "pong", map[string]interface{}{
			"timestamp": time.Now().Unix(),
		})

	default:
		h.sendError(c, "UNKNOWN_MESSAGE", "Unknown message type: "+msg.Type)
	}
}

// sendMessage queues a message for one client
func (h *Handler) sendMessage(c *WSClient, msgType string, payload interface{}) {
	msg, err := encodeMessage(msgType, payload)
	if err != nil {
		h.logger.Error("failed to encode websocket message", "type", msgType, "error", err)
		return
	}

	select {
	case c.send <- msg:
	default:
		// Channel full, drop message
	}
}

// sendError sends an error message to the client
func (h *Handler) sendError(c *WSClient, code, message string) {
	h.sendMessage(c, "error", map[string]string{
		"code":    code,
		"message": message,
	})
}

func encodeMessage(msgType string, payload interface{}) ([]byte, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(WSMessage{
		Type:    msgType,
		Payload: payloadBytes,
	})
}
