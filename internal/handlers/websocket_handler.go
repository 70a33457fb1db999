package handlers

import (
	"context"
	"encoding/json"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/visitreg/server/internal/middleware"
	"github.com/visitreg/server/internal/observability"
	"github.com/visitreg/server/internal/services"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		// Allow all origins for now - can be restricted in production
		return true
	},
}

// WebSocketHandler handles WebSocket connections
type WebSocketHandler struct {
	hub      *services.WebSocketHub
	notifier *services.NotifierService
	metrics  *observability.BusinessMetrics
}

// NewWebSocketHandler creates a new WebSocketHandler
func NewWebSocketHandler(hub *services.WebSocketHub, notifier *services.NotifierService, metrics *observability.BusinessMetrics) *WebSocketHandler {
	return &WebSocketHandler{
		hub:      hub,
		notifier: notifier,
		metrics:  metrics,
	}
}

// HandleConnection upgrades HTTP to WebSocket and manages the connection.
// The route sits behind session auth, so the user is always known here.
func (h *WebSocketHandler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.New().String()
	client := h.hub.NewClient(clientID, conn)
	h.hub.SetUserID(client, user.ID)
	h.hub.Register(client)

	// A freshly connected user may have shares waiting
	if h.notifier != nil && h.notifier.IsEnabled() {
		h.notifier.RunNow()
	}

	if h.metrics != nil {
		h.metrics.RecordClientConnected(r.Context(), 1)
		defer h.metrics.RecordClientConnected(context.Background(), -1)
	}

	// Start the write pump in a goroutine
	go client.WritePump()

	// Run the read pump (blocks until connection closes)
	client.ReadPump(h.handleMessage)
}

// handleMessage processes incoming WebSocket messages
func (h *WebSocketHandler) handleMessage(client *services.WSClient, messageType int, data []byte) {
	if messageType != websocket.TextMessage {
		return
	}

	var msg services.WSMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		log.Printf("Invalid WebSocket message: %v", err)
		return
	}

	switch msg.Type {
	case services.WSTypePing:
		response := services.WSMessage{
			Type:    services.WSTypePong,
			Payload: nil,
		}
		if data, err := json.Marshal(response); err == nil {
			client.Send <- data
		}

	default:
		log.Printf("Unknown WebSocket message type: %s", msg.Type)
	}
}
