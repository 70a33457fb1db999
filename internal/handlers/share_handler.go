package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/visitreg/server/internal/middleware"
	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/observability"
	"github.com/visitreg/server/internal/services"
)

// ShareHandler handles the share lifecycle endpoints
type ShareHandler struct {
	shareService *services.ShareService
	metrics      *observability.BusinessMetrics
}

// NewShareHandler creates a new ShareHandler
func NewShareHandler(shareService *services.ShareService, metrics *observability.BusinessMetrics) *ShareHandler {
	return &ShareHandler{
		shareService: shareService,
		metrics:      metrics,
	}
}

// Create shares an artifact with another user
// POST /api/shares
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var req models.CreateShareRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	record, err := h.shareService.Create(r.Context(), user.ID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrDuplicateShare):
			http.Error(w, err.Error(), http.StatusConflict)
		case errors.Is(err, models.ErrUnknownSubjectKind),
			errors.Is(err, models.ErrSubjectRequired),
			errors.Is(err, models.ErrSelfShare):
			http.Error(w, err.Error(), http.StatusBadRequest)
		case errors.Is(err, models.ErrUnknownUser),
			errors.Is(err, models.ErrSubjectUnavailable):
			http.Error(w, err.Error(), http.StatusNotFound)
		default:
			observability.WithContext(r.Context()).Errorf("Share creation failed: %v", err)
			http.Error(w, "Share creation failed", http.StatusInternalServerError)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordShareCreated(r.Context(), string(record.SubjectKind))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(record.ToResponse())
}

// Inbox lists the caller's unresolved incoming shares
// GET /api/shares/inbox
func (h *ShareHandler) Inbox(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.shareService.Inbox(r.Context(), user.ID)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("Inbox listing failed: %v", err)
		http.Error(w, "Failed to list shares", http.StatusInternalServerError)
		return
	}

	responses := make([]models.ShareResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, rec.ToResponse())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// History lists every share ever addressed to the caller
// GET /api/shares/history
func (h *ShareHandler) History(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	records, err := h.shareService.History(r.Context(), user.ID)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("Share history failed: %v", err)
		http.Error(w, "Failed to list shares", http.StatusInternalServerError)
		return
	}

	responses := make([]models.ShareResponse, 0, len(records))
	for _, rec := range records {
		responses = append(responses, rec.ToResponse())
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(responses)
}

// Accept resolves a share in the caller's favor and imports the snapshot
// POST /api/shares/{id}/accept
func (h *ShareHandler) Accept(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shareID := chi.URLParam(r, "id")
	artifactID, err := h.shareService.Accept(r.Context(), user.ID, shareID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrShareNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, models.ErrShareAlreadyResolved):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			observability.WithContext(r.Context()).
				WithField("share_id", shareID).
				Errorf("Share accept failed: %v", err)
			http.Error(w, "Share accept failed", http.StatusInternalServerError)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordShareResolved(r.Context(), "", "accepted")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"shareId":    shareID,
		"artifactId": artifactID,
		"status":     string(models.ShareAccepted),
	})
}

// Revoke cancels a share, from either side
// POST /api/shares/{id}/revoke
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	shareID := chi.URLParam(r, "id")
	err := h.shareService.Revoke(r.Context(), user.ID, shareID)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrShareNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, models.ErrShareAlreadyResolved):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			observability.WithContext(r.Context()).
				WithField("share_id", shareID).
				Errorf("Share revoke failed: %v", err)
			http.Error(w, "Share revoke failed", http.StatusInternalServerError)
		}
		return
	}

	if h.metrics != nil {
		h.metrics.RecordShareResolved(r.Context(), "", "revoked")
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"shareId": shareID,
		"status":  string(models.ShareRevoked),
	})
}
