// Package alerts provides WebSocket streaming of risk verdicts.
//
// Operators subscribe once and receive flagged and rejected transactions
// as they are evaluated, instead of polling the transaction log.
package alerts

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/driftpay/fraudwatch/internal/metrics"
	"github.com/gorilla/websocket"
)

// normalCloseCodes are WebSocket close codes that indicate an expected disconnect.
var normalCloseCodes = []int{
	websocket.CloseNormalClosure,
	websocket.CloseGoingAway,
	websocket.CloseNoStatusReceived,
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true // Allow non-browser clients
		}
		host := r.Host
		return origin == "http://"+host || origin == "https://"+host
	},
}

// Alert is a single streamed risk verdict.
type Alert struct {
	TransactionID string    `json:"transactionId"`
	UserID        string    `json:"userId"`
	Amount        float64   `json:"amount"`
	Country       string    `json:"country"`
	Score         int       `json:"score"`
	Factors       []string  `json:"factors"`
	Status        string    `json:"status"`
	Timestamp     time.Time `json:"timestamp"`
}

// Subscription filters for a client.
type Subscription struct {
	UserIDs  []string `json:"userIds"`  // Watch specific users; empty = all
	MinScore int      `json:"minScore"` // Only alerts at or above this score
}

// Client represents a WebSocket connection.
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte
	mu   sync.RWMutex
	sub  Subscription
}

// MaxClients is the maximum number of concurrent stream connections.
const MaxClients = 1000

// Hub manages alert stream connections.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan *Alert
	register   chan *Client
	unregister chan *Client
	mu         sync.RWMutex
	logger     *slog.Logger
	done       chan struct{} // closed when Run exits; prevents upgrade race
	maxClients int

	totalAlerts atomic.Int64
}

// NewHub creates a new alert hub.
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan *Alert, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		logger:     logger,
		done:       make(chan struct{}),
		maxClients: MaxClients,
	}
}

// Run starts the hub's main loop.
func (h *Hub) Run(ctx context.Context) {
	h.logger.Info("alert hub started")
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				close(client.send) // writePump sends CloseMessage on closed channel
				delete(h.clients, client)
			}
			h.mu.Unlock()
			metrics.ActiveAlertStreams.Set(0)
			h.logger.Info("alert hub stopped")
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveAlertStreams.Set(float64(n))
			h.logger.Info("alert client connected", "total", n)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			n := len(h.clients)
			h.mu.Unlock()
			metrics.ActiveAlertStreams.Set(float64(n))
			h.logger.Info("alert client disconnected", "total", n)

		case alert := <-h.broadcast:
			h.totalAlerts.Add(1)
			payload, _ := json.Marshal(alert)
			h.mu.RLock()
			var slow []*Client
			for client := range h.clients {
				if !client.wants(alert) {
					continue
				}
				select {
				case client.send <- payload:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()
			// Remove slow clients under write lock
			if len(slow) > 0 {
				h.mu.Lock()
				for _, client := range slow {
					if _, ok := h.clients[client]; ok {
						close(client.send)
						delete(h.clients, client)
					}
				}
				h.mu.Unlock()
			}
		}
	}
}

// wants checks if the alert matches the client's subscription.
func (c *Client) wants(alert *Alert) bool {
	c.mu.RLock()
	sub := c.sub
	c.mu.RUnlock()

	if alert.Score < sub.MinScore {
		return false
	}
	if len(sub.UserIDs) == 0 {
		return true
	}
	for _, id := range sub.UserIDs {
		if id == alert.UserID {
			return true
		}
	}
	return false
}

// Broadcast queues an alert for delivery to all matching clients.
// Non-blocking: drops the alert if the queue is full.
func (h *Hub) Broadcast(alert *Alert) {
	select {
	case h.broadcast <- alert:
	default:
		h.logger.Warn("alert broadcast channel full, dropping alert",
			"transaction_id", alert.TransactionID)
	}
}

// TotalAlerts returns the number of alerts broadcast since start.
func (h *Hub) TotalAlerts() int64 {
	return h.totalAlerts.Load()
}

// HandleWebSocket upgrades HTTP to a WebSocket alert stream.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	// Reject upgrades after the hub has stopped to prevent orphaned connections.
	select {
	case <-h.done:
		http.Error(w, "server shutting down", http.StatusServiceUnavailable)
		return
	default:
	}

	h.mu.RLock()
	n := len(h.clients)
	h.mu.RUnlock()
	if n >= h.maxClients {
		http.Error(w, "too many connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	client := &Client{
		hub:  h,
		conn: conn,
		send: make(chan []byte, 256),
	}

	h.register <- client

	go client.writePump()
	go client.readPump()
}

// readPump reads subscription updates from the client.
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(64 * 1024)
	_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, normalCloseCodes...) {
				c.hub.logger.Warn("websocket read error", "error", err)
			}
			break
		}

		var sub Subscription
		if err := json.Unmarshal(message, &sub); err == nil {
			c.mu.Lock()
			c.sub = sub
			c.mu.Unlock()
		}
	}
}

// writePump writes alerts and pings to the client.
func (c *Client) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.hub.logger.Warn("websocket write error", "error", err)
				return
			}

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
