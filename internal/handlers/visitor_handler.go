package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/visitreg/server/internal/middleware"
	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/observability"
	"github.com/visitreg/server/internal/services"
)

const maxImportSize = 10 * 1024 * 1024

// VisitorHandler handles visitor register endpoints
type VisitorHandler struct {
	visitorService *services.VisitorService
	metrics        *observability.BusinessMetrics
}

// NewVisitorHandler creates a new VisitorHandler
func NewVisitorHandler(visitorService *services.VisitorService, metrics *observability.BusinessMetrics) *VisitorHandler {
	return &VisitorHandler{
		visitorService: visitorService,
		metrics:        metrics,
	}
}

// Create registers a visitor arrival
// POST /api/visitors
func (h *VisitorHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateVisitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	visitor, err := h.visitorService.Create(r.Context(), user.ID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrVisitorPhoneRequired),
			errors.Is(err, models.ErrVisitorMotifRequired),
			errors.Is(err, models.ErrInvalidExtension),
			errors.Is(err, models.ErrFileTooLarge):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			observability.WithContext(r.Context()).Errorf("Visitor creation failed: %v", err)
			http.Error(w, "Visitor creation failed", http.StatusInternalServerError)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordVisitorRegistered(r.Context(), user.ID)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(visitor)
}

// List returns the caller's register
// GET /api/visitors
func (h *VisitorHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	visitors, err := h.visitorService.List(r.Context(), user.ID)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("Visitor listing failed: %v", err)
		http.Error(w, "Failed to list visitors", http.StatusInternalServerError)
		return
	}
	if visitors == nil {
		visitors = []*models.Visitor{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(visitors)
}

// Get returns one entry the caller may read
// GET /api/visitors/{id}
func (h *VisitorHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	visitor, err := h.visitorService.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrVisitorNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("Visitor lookup failed: %v", err)
		http.Error(w, "Visitor lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(visitor)
}

// RecordExit sets the exit time and observation
// PUT /api/visitors/{id}/exit
func (h *VisitorHandler) RecordExit(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.UpdateVisitorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	visitor, err := h.visitorService.RecordExit(r.Context(), user.ID, chi.URLParam(r, "id"), req)
	if err != nil {
		if errors.Is(err, models.ErrVisitorNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("Visitor exit update failed: %v", err)
		http.Error(w, "Visitor update failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(visitor)
}

// Delete removes an entry from the caller's register
// DELETE /api/visitors/{id}
func (h *VisitorHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.visitorService.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, models.ErrVisitorNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("Visitor deletion failed: %v", err)
		http.Error(w, "Visitor deletion failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// Export serializes the caller's register as JSON
// GET /api/visitors/export
func (h *VisitorHandler) Export(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := h.visitorService.ExportJSON(r.Context(), user.ID)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("Register export failed: %v", err)
		http.Error(w, "Export failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="registre_visites.json"`)
	w.Write(data)
}

// Import loads register entries from a JSON export
// POST /api/visitors/import
func (h *VisitorHandler) Import(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxImportSize))
	if err != nil {
		http.Error(w, "Failed to read request body", http.StatusBadRequest)
		return
	}

	imported, err := h.visitorService.ImportJSON(r.Context(), user.ID, data)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("Register import failed: %v", err)
		http.Error(w, "Import failed: invalid export file", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]int{"imported": imported})
}
