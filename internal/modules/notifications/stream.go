package notifications

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"nhooyr.io/websocket"
)

// Per-subscriber write timeout. A subscriber that cannot drain a message
// within this window is dropped rather than allowed to stall broadcasts.
const writeWait = 10 * time.Second

// Hub fans scan alerts out to WebSocket subscribers.
type Hub struct {
	mu          sync.Mutex
	subscribers map[*websocket.Conn]struct{}
	closed      bool
	log         zerolog.Logger
}

// NewHub creates a new notification hub
func NewHub(log zerolog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[*websocket.Conn]struct{}),
		log:         log.With().Str("component", "notification_hub").Logger(),
	}
}

// HandleStream upgrades the request to a WebSocket and holds the
// subscription open until the client disconnects or the hub closes.
func (h *Hub) HandleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		h.log.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	if !h.add(conn) {
		conn.Close(websocket.StatusGoingAway, "hub closed")
		return
	}
	defer h.remove(conn)

	h.log.Info().Int("subscribers", h.SubscriberCount()).Msg("Stream subscriber connected")

	// The stream is write-only. CloseRead discards inbound frames and
	// cancels the returned context when the client goes away.
	ctx := conn.CloseRead(r.Context())
	<-ctx.Done()

	conn.Close(websocket.StatusNormalClosure, "")
	h.log.Info().Msg("Stream subscriber disconnected")
}

// Broadcast sends one alert as a JSON text message to every subscriber.
func (h *Hub) Broadcast(alert Notification) {
	payload, err := json.Marshal(alert)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to encode alert for broadcast")
		return
	}

	for _, conn := range h.snapshot() {
		writeCtx, cancel := context.WithTimeout(context.Background(), writeWait)
		err := conn.Write(writeCtx, websocket.MessageText, payload)
		cancel()
		if err != nil {
			h.log.Warn().Err(err).Msg("Dropping slow stream subscriber")
			conn.Close(websocket.StatusPolicyViolation, "write timeout")
			h.remove(conn)
		}
	}
}

// BroadcastAll sends a batch of alerts in scan order.
func (h *Hub) BroadcastAll(alerts []Notification) {
	for _, alert := range alerts {
		h.Broadcast(alert)
	}
}

// Close drops every subscriber and rejects future ones.
func (h *Hub) Close() {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return
	}
	h.closed = true
	conns := make([]*websocket.Conn, 0, len(h.subscribers))
	for conn := range h.subscribers {
		conns = append(conns, conn)
	}
	h.subscribers = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.log.Info().Int("dropped", len(conns)).Msg("Notification hub closed")
}

// SubscriberCount returns the number of connected subscribers.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subscribers)
}

func (h *Hub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return false
	}
	h.subscribers[conn] = struct{}{}
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.subscribers, conn)
}

func (h *Hub) snapshot() []*websocket.Conn {
	h.mu.Lock()
	defer h.mu.Unlock()
	conns := make([]*websocket.Conn, 0, len(h.subscribers))
	for conn := range h.subscribers {
		conns = append(conns, conn)
	}
	return conns
}
