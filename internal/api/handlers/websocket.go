package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/metrics"
	"github.com/signalong/signalong-core/internal/warmup"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = 30 * time.Second

	maxMessageSize = 512
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// CORS middleware owns origin policy
		return true
	},
}

// WarmEvent is one message on the warm-progress stream.
type WarmEvent struct {
	Type    string      `json:"type"` // "progress", "completed"
	Payload interface{} `json:"payload"`
}

// wsClient is one subscriber connection.
type wsClient struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
}

// Hub fans warm-progress events out to connected subscribers. Its callbacks
// plug straight into warmup.Warmer's OnProgress/OnCompletion hooks.
type Hub struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan []byte
	mu         sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan []byte, 256),
	}
}

// Run is the hub's main loop; start it in its own goroutine.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			total := len(h.clients)
			h.mu.Unlock()
			metrics.WebSocketConnections.Inc()
			logger.Info("warm-progress subscriber connected", "total", total)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.WebSocketConnections.Dec()
			}
			h.mu.Unlock()

		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					// Subscriber can't keep up; drop it.
					close(client.send)
					delete(h.clients, client)
					metrics.WebSocketConnections.Dec()
				}
			}
			h.mu.Unlock()
		}
	}
}

// BroadcastProgress pushes a per-tier progress update to all subscribers.
func (h *Hub) BroadcastProgress(p warmup.Progress) {
	h.send(WarmEvent{Type: "progress", Payload: map[string]interface{}{
		"tier":      p.Tier,
		"completed": p.Completed,
		"failed":    p.Failed,
		"total":     p.Total,
		"eta_ms":    p.ETA.Milliseconds(),
	}})
}

// BroadcastCompletion pushes the final run summary to all subscribers.
func (h *Hub) BroadcastCompletion(r warmup.Report) {
	h.send(WarmEvent{Type: "completed", Payload: map[string]interface{}{
		"warmed":      r.Warmed,
		"failed":      r.Failed,
		"total":       r.Total,
		"duration_ms": r.Duration.Milliseconds(),
	}})
}

func (h *Hub) send(event WarmEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		logger.Error("encoding warm event failed", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		logger.Warn("warm event dropped, broadcast buffer full")
	}
}

// ServeWS upgrades the connection and subscribes it to warm events.
// GET /api/warm/ws
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Warn("websocket upgrade failed", "error", err)
		return
	}
	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump discards inbound messages and handles the pong deadline.
func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump ships queued events and keeps the connection alive with pings.
func (c *wsClient) writePump() {
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
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
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
