package handlers

import (
	"log"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/fleetwatch/fleetwatch/internal/realtime"
)

// RealtimeWSHandler streams matching telemetry deliveries to WebSocket
// clients. Each connection holds one fan-out subscription.
type RealtimeWSHandler struct {
	upgrader websocket.Upgrader
	fanout   *realtime.Fanout
}

// NewRealtimeWSHandler creates a new realtime WebSocket handler
func NewRealtimeWSHandler(fanout *realtime.Fanout) *RealtimeWSHandler {
	return &RealtimeWSHandler{
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for internal communication
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		fanout: fanout,
	}
}

// SetupRoutes configures WebSocket routes
func (h *RealtimeWSHandler) SetupRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/telemetry", h.HandleWebSocket)
}

// HandleWebSocket upgrades the connection and streams deliveries until the
// client disconnects.
func (h *RealtimeWSHandler) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade WebSocket: %v", err)
		return
	}

	subID, deliveries := h.fanout.Subscribe(filter)
	log.Printf("Realtime subscriber %s connected from %s", subID, r.RemoteAddr)

	defer func() {
		h.fanout.Unsubscribe(subID)
		conn.Close()
		log.Printf("Realtime subscriber %s disconnected", subID)
	}()

	// Drain client frames so close and ping/pong are processed.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("WebSocket read error: %v", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case delivery, ok := <-deliveries:
			if !ok {
				return
			}
			if err := conn.WriteJSON(delivery); err != nil {
				log.Printf("WebSocket write error for subscriber %s: %v", subID, err)
				return
			}
		case <-done:
			return
		}
	}
}

// filterFromQuery builds a subscription filter from query parameters.
func filterFromQuery(r *http.Request) realtime.SubscriptionFilter {
	q := r.URL.Query()
	filter := realtime.SubscriptionFilter{
		DeviceIDs:   splitParam(q.Get("device_ids")),
		MetricNames: splitParam(q.Get("metric_names")),
	}
	if v := q.Get("max_frequency_ms"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.MaxFrequencyMS = n
		}
	}
	return filter
}
