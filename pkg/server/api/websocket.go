package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/jobs"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/logging"
	"github.com/Tosi-eu/abrigo-helena-dornfeld-backend-sub000/pkg/server/sources"
)

const (
	writeWait    = 10 * time.Second
	pongWait     = 60 * time.Second
	pingInterval = 54 * time.Second
)

// StreamHub pushes finished background price jobs to WebSocket clients.
type StreamHub struct {
	logger   *logging.Logger
	upgrader websocket.Upgrader

	mu      sync.RWMutex
	clients map[*streamClient]bool

	updates chan jobs.Outcome
}

// streamClient represents a connected WebSocket client.
type streamClient struct {
	conn          *websocket.Conn
	send          chan []byte
	hub           *StreamHub
	subscribedAll bool
	itemTypes     map[sources.ItemType]bool
	mu            sync.RWMutex
}

// ClientMessage is a message sent by a client.
type ClientMessage struct {
	Type      string   `json:"type"`       // "subscribe", "unsubscribe", "ping"
	ItemTypes []string `json:"item_types"` // empty or ["*"] means every type
}

// PriceDiscoveredMessage is sent to clients when a job finds a price.
type PriceDiscoveredMessage struct {
	Type         string           `json:"type"` // "price_discovered"
	Timestamp    string           `json:"timestamp"`
	JobID        string           `json:"job_id"`
	ItemID       int64            `json:"item_id,omitempty"`
	ItemType     sources.ItemType `json:"item_type"`
	ItemName     string           `json:"item_name"`
	Dosage       string           `json:"dosage,omitempty"`
	AveragePrice float64          `json:"average_price"`
	Source       string           `json:"source"`
	Updated      bool             `json:"updated"`
}

// NewStreamHub creates a hub. Run must be called to deliver updates.
func NewStreamHub(logger *logging.Logger) *StreamHub {
	if logger == nil {
		logger = logging.NewNoopLogger()
	}
	return &StreamHub{
		logger: logger.With("component", "stream"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(_ *http.Request) bool {
				return true
			},
		},
		clients: make(map[*streamClient]bool),
		updates: make(chan jobs.Outcome, 100),
	}
}

// Run broadcasts published outcomes until ctx is done, then disconnects
// every client.
func (h *StreamHub) Run(ctx context.Context) {
	defer h.closeAll()
	for {
		select {
		case <-ctx.Done():
			return
		case o := <-h.updates:
			h.broadcast(o)
		}
	}
}

// Publish queues an outcome for broadcast. Outcomes without a price are
// ignored.
func (h *StreamHub) Publish(o jobs.Outcome) {
	if o.Result == nil || o.Result.AveragePrice == nil {
		return
	}
	select {
	case h.updates <- o:
	case <-time.After(100 * time.Millisecond):
		h.logger.Warn("Update channel full, dropping price update", "job_id", o.JobID)
	}
}

// ClientCount returns the number of connected clients.
func (h *StreamHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ServeHTTP upgrades the connection and registers the client.
func (h *StreamHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	client := &streamClient{
		conn:          conn,
		send:          make(chan []byte, 256),
		hub:           h,
		subscribedAll: true,
		itemTypes:     make(map[sources.ItemType]bool),
	}
	h.register(client)

	go client.writePump()
	go client.readPump()

	h.logger.Info("New WebSocket client connected", "remote", conn.RemoteAddr())
}

func (h *StreamHub) register(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *StreamHub) unregister(c *streamClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[c]; ok {
		delete(h.clients, c)
		close(c.send)
	}
}

func (h *StreamHub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for c := range h.clients {
		delete(h.clients, c)
		close(c.send)
	}
}

// broadcast sends an outcome to every client subscribed to its item type.
func (h *StreamHub) broadcast(o jobs.Outcome) {
	q := o.Request.Query
	message := PriceDiscoveredMessage{
		Type:         "price_discovered",
		Timestamp:    o.FinishedAt.UTC().Format(time.RFC3339),
		JobID:        o.JobID.String(),
		ItemID:       o.Request.ItemID,
		ItemType:     q.ItemType,
		ItemName:     q.ItemName,
		Dosage:       q.Dosage,
		AveragePrice: *o.Result.AveragePrice,
		Source:       o.Result.Source,
		Updated:      o.Updated,
	}

	data, err := json.Marshal(message)
	if err != nil {
		h.logger.Error("Failed to marshal price update", "error", err)
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	for c := range h.clients {
		if !c.shouldReceive(q.ItemType) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("Client send buffer full, skipping update")
		}
	}
}

// writePump sends messages to the WebSocket connection.
func (c *streamClient) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Error("Failed to write message", "error", err)
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

// readPump reads messages from the WebSocket connection.
func (c *streamClient) readPump() {
	defer func() {
		c.hub.unregister(c)
		_ = c.conn.Close()
	}()

	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.logger.Error("WebSocket error", "error", err)
			}
			break
		}
		c.handleMessage(message)
	}
}

// handleMessage processes client messages.
func (c *streamClient) handleMessage(data []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		c.hub.logger.Warn("Invalid client message", "error", err)
		return
	}

	switch msg.Type {
	case "subscribe":
		c.subscribe(msg.ItemTypes)
	case "unsubscribe":
		c.unsubscribe(msg.ItemTypes)
	case "ping":
		c.sendPong()
	default:
		c.hub.logger.Warn("Unknown message type", "type", msg.Type)
	}
}

func (c *streamClient) subscribe(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isWildcard(types) {
		c.subscribedAll = true
		c.itemTypes = make(map[sources.ItemType]bool)
		return
	}
	c.subscribedAll = false
	for _, raw := range types {
		t, err := sources.ParseItemType(raw)
		if err != nil {
			c.hub.logger.Warn("Ignoring subscription", "error", err)
			continue
		}
		c.itemTypes[t] = true
	}
	c.hub.logger.Debug("Client subscribed", "item_types", types)
}

func (c *streamClient) unsubscribe(types []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if isWildcard(types) {
		c.subscribedAll = false
		c.itemTypes = make(map[sources.ItemType]bool)
		return
	}
	for _, raw := range types {
		if t, err := sources.ParseItemType(raw); err == nil {
			delete(c.itemTypes, t)
		}
	}
	c.hub.logger.Debug("Client unsubscribed", "item_types", types)
}

func (c *streamClient) shouldReceive(itemType sources.ItemType) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.subscribedAll || c.itemTypes[itemType]
}

func (c *streamClient) sendPong() {
	data, _ := json.Marshal(map[string]string{"type": "pong"})
	select {
	case c.send <- data:
	default:
	}
}

func isWildcard(types []string) bool {
	return len(types) == 0 || (len(types) == 1 && types[0] == "*")
}
