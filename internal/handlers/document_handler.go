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

const maxUploadMemory = 32 << 20 // 32MB buffered in memory, rest spills to disk

// DocumentHandler handles document upload and download endpoints
type DocumentHandler struct {
	documentService *services.DocumentService
	metrics         *observability.BusinessMetrics
}

// NewDocumentHandler creates a new DocumentHandler
func NewDocumentHandler(documentService *services.DocumentService, metrics *observability.BusinessMetrics) *DocumentHandler {
	return &DocumentHandler{
		documentService: documentService,
		metrics:         metrics,
	}
}

// Upload stores a document sent as multipart form data
// POST /api/documents
func (h *DocumentHandler) Upload(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "Invalid multipart form", http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "File is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	documentType := r.FormValue("documentType")

	doc, err := h.documentService.Upload(r.Context(), user.ID, header.Filename, documentType, file, header.Size)
	if h.metrics != nil {
		h.metrics.RecordDocumentUpload(r.Context(), user.ID, err == nil)
	}
	if err != nil {
		switch {
		case errors.Is(err, models.ErrFileTooLarge),
			errors.Is(err, models.ErrInvalidExtension),
			errors.Is(err, models.ErrDocumentNameRequired):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			observability.WithContext(r.Context()).Errorf("Document upload failed: %v", err)
			http.Error(w, "Document upload failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(doc)
}

// List returns the caller's documents
// GET /api/documents
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	docs, err := h.documentService.List(r.Context(), user.ID)
	if err != nil {
		observability.WithContext(r.Context()).Errorf("Document listing failed: %v", err)
		http.Error(w, "Failed to list documents", http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []*models.Document{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(docs)
}

// Get returns metadata for a document the caller may read
// GET /api/documents/{id}
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	doc, err := h.documentService.Get(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("Document lookup failed: %v", err)
		http.Error(w, "Document lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(doc)
}

// Download streams the document file. The share grant check applies when
// the caller is not the owner.
// GET /api/documents/{id}/download
func (h *DocumentHandler) Download(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	doc, fullPath, err := h.documentService.Open(r.Context(), user.ID, chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("Document download failed: %v", err)
		http.Error(w, "Document download failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Disposition", `attachment; filename="`+doc.FileName+`"`)
	http.ServeFile(w, r, fullPath)
}

// Delete removes a document owned by the caller
// DELETE /api/documents/{id}
func (h *DocumentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	if err := h.documentService.Delete(r.Context(), user.ID, chi.URLParam(r, "id")); err != nil {
		if errors.Is(err, models.ErrDocumentNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("Document deletion failed: %v", err)
		http.Error(w, "Document deletion failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
