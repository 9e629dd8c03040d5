// Package ws pushes live telemetry events to connected dashboard
// clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/savegress/vitalink/pkg/models"
)

// Message is the event envelope sent to dashboard clients
type Message struct {
	Event     string          `json:"event"`
	Data      json.RawMessage `json:"data"`
	Timestamp time.Time       `json:"timestamp"`
}

// Client represents one connected dashboard
type Client struct {
	ID   string
	conn *websocket.Conn
	hub  *Hub
	send chan []byte
}

// Hub fans inbound gateway events out to every connected dashboard.
// Delivery is at-most-once per receipt: duplicates from the gateway
// are forwarded as-is, and slow clients are skipped, not blocked on.
type Hub struct {
	mu         sync.RWMutex
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	stopCh     chan struct{}
	stopOnce   sync.Once
}

// NewHub creates a new Hub instance
func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		stopCh:     make(chan struct{}),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case <-h.stopCh:
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
		case client := <-h.unregister:
			h.removeClient(client)
		case data := <-h.broadcast:
			h.broadcastToAll(data)
		}
	}
}

// Stop stops the hub and disconnects all clients
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stopCh)
	})

	h.mu.Lock()
	defer h.mu.Unlock()
	for client := range h.clients {
		close(client.send)
		client.conn.Close()
		delete(h.clients, client)
	}
}

func (h *Hub) removeClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) broadcastToAll(data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.clients {
		select {
		case client.send <- data:
		default:
			// Client buffer full, skip
		}
	}
}

// ClientCount returns the number of connected dashboards
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Broadcast sends an event to every connected dashboard
func (h *Hub) Broadcast(event string, payload interface{}) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Error marshaling %s payload: %v", event, err)
		return
	}

	msg, err := json.Marshal(&Message{
		Event:     event,
		Data:      data,
		Timestamp: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("Error marshaling %s message: %v", event, err)
		return
	}

	select {
	case h.broadcast <- msg:
	case <-h.stopCh:
	}
}

// BroadcastVitals forwards a vitals snapshot to subscribers
func (h *Hub) BroadcastVitals(v models.VitalsSnapshot) {
	h.Broadcast(models.EventVitalsUpdate, v)
}

// BroadcastFallAlert forwards a fall alert to subscribers
func (h *Hub) BroadcastFallAlert(a models.FallAlert) {
	h.Broadcast(models.EventFallAlert, a)
}

// BroadcastGatewayStatus reports link health to subscribers
func (h *Hub) BroadcastGatewayStatus(connected bool) {
	h.Broadcast(models.EventGatewayStatus, models.GatewayStatus{Connected: connected})
}

// NewClient creates a new dashboard client
func NewClient(hub *Hub, conn *websocket.Conn, id string) *Client {
	return &Client{
		ID:   id,
		conn: conn,
		hub:  hub,
		send: make(chan []byte, 256),
	}
}

// Register adds the client to the hub. A stopped hub no longer drains
// the register channel, so the send must not block past Stop.
func (c *Client) Register() {
	select {
	case c.hub.register <- c:
	case <-c.hub.stopCh:
	}
}

func (c *Client) unregister() {
	select {
	case c.hub.unregister <- c:
	case <-c.hub.stopCh:
	}
}

// ReadPump drains client messages and detects disconnects
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.unregister()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		select {
		case <-ctx.Done():
			return
		default:
			if _, _, err := c.conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("Dashboard socket error: %v", err)
				}
				return
			}
		}
	}
}

// WritePump writes broadcast messages to the client connection
func (c *Client) WritePump(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
