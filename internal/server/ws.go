package server

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/jmuozan/vidseg/internal/propagate"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow local connections
	},
}

// ProgressHub broadcasts pipeline progress events to WebSocket clients.
// It implements propagate.Observer so it can be handed straight to the
// engine.
type ProgressHub struct {
	log     *zap.Logger
	clients map[*websocket.Conn]bool
	mu      sync.Mutex
}

// NewProgressHub creates an empty hub.
func NewProgressHub(log *zap.Logger) *ProgressHub {
	return &ProgressHub{
		log:     log,
		clients: make(map[*websocket.Conn]bool),
	}
}

// ServeHTTP handles WebSocket upgrade requests.
func (h *ProgressHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.clients, conn)
		h.mu.Unlock()
	}()

	// Keep connection alive by reading messages
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

// Publish sends an event to every connected client. Runs started over
// the API publish from their own goroutines, so writes must hold the
// exclusive lock: gorilla/websocket forbids concurrent writes on one
// connection.
func (h *ProgressHub) Publish(event string, fields map[string]any) {
	payload := map[string]any{
		"event":     event,
		"timestamp": time.Now().UnixMilli(),
	}
	for k, v := range fields {
		payload[k] = v
	}

	msg, err := json.Marshal(payload)
	if err != nil {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		conn.WriteMessage(websocket.TextMessage, msg)
	}
}

// SegmentStarted implements propagate.Observer.
func (h *ProgressHub) SegmentStarted(start, end int) {
	h.Publish("segment_started", map[string]any{"start": start, "end": end})
}

// SegmentFinished implements propagate.Observer.
func (h *ProgressHub) SegmentFinished(start, end int, method propagate.Method) {
	h.Publish("segment_finished", map[string]any{
		"start":  start,
		"end":    end,
		"method": string(method),
	})
}

// FrameProcessed implements propagate.Observer.
func (h *ProgressHub) FrameProcessed(frameIdx int) {
	h.Publish("frame_processed", map[string]any{"frame": frameIdx})
}
