package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"time"

	"github.com/visitreg/server/internal/services"
)

// HealthHandler reports service health
type HealthHandler struct {
	db       *sql.DB
	notifier *services.NotifierService
	hub      *services.WebSocketHub
	started  time.Time
}

// NewHealthHandler creates a new HealthHandler
func NewHealthHandler(db *sql.DB, notifier *services.NotifierService, hub *services.WebSocketHub) *HealthHandler {
	return &HealthHandler{
		db:       db,
		notifier: notifier,
		hub:      hub,
		started:  time.Now(),
	}
}

// Health returns readiness info
// GET /api/health
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	dbStatus := "ok"
	code := http.StatusOK

	if err := h.db.PingContext(r.Context()); err != nil {
		status = "degraded"
		dbStatus = err.Error()
		code = http.StatusServiceUnavailable
	}

	response := map[string]interface{}{
		"status":   status,
		"database": dbStatus,
		"uptime":   time.Since(h.started).Round(time.Second).String(),
	}
	if h.notifier != nil {
		response["notifier"] = h.notifier.GetStatus()
	}
	if h.hub != nil {
		response["websocketClients"] = h.hub.GetClientCount()
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(response)
}
