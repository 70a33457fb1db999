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

// UserHandler handles the user directory endpoints
type UserHandler struct {
	userService *services.UserService
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{userService: userService}
}

// List returns the recipient picker: every active user except the caller
// GET /api/users
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	var (
		users []models.UserResponse
		err   error
	)
	if structure := r.URL.Query().Get("structure"); structure != "" {
		users, err = h.userService.ListByStructure(r.Context(), structure)
	} else {
		users, err = h.userService.List(r.Context(), user.ID)
	}
	if err != nil {
		observability.WithContext(r.Context()).Errorf("User listing failed: %v", err)
		http.Error(w, "Failed to list users", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(users)
}

// Get returns one user's public profile
// GET /api/users/{id}
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	target, err := h.userService.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("User lookup failed: %v", err)
		http.Error(w, "User lookup failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(target.ToResponse())
}

// Update edits a user's profile. Users edit themselves; managers edit
// anyone, and only managers may change roles.
// PUT /api/users/{id}
func (h *UserHandler) Update(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	targetID := chi.URLParam(r, "id")
	if user.ID != targetID && user.Role != models.RoleManager {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	var req models.UpdateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Role != "" && user.Role != models.RoleManager {
		http.Error(w, "Only managers may change roles", http.StatusForbidden)
		return
	}

	updated, err := h.userService.Update(r.Context(), targetID, req)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrUserNotFound):
			http.Error(w, err.Error(), http.StatusNotFound)
		case errors.Is(err, models.ErrInvalidRole):
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			observability.WithContext(r.Context()).Errorf("User update failed: %v", err)
			http.Error(w, "User update failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(updated.ToResponse())
}

// Delete deactivates a user account. Managers only, and never their own.
// DELETE /api/users/{id}
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}
	if user.Role != models.RoleManager {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	targetID := chi.URLParam(r, "id")
	if targetID == user.ID {
		http.Error(w, "Cannot deactivate your own account", http.StatusBadRequest)
		return
	}

	if err := h.userService.Deactivate(r.Context(), targetID); err != nil {
		if errors.Is(err, models.ErrUserNotFound) {
			http.Error(w, err.Error(), http.StatusNotFound)
			return
		}
		observability.WithContext(r.Context()).Errorf("User deactivation failed: %v", err)
		http.Error(w, "User deactivation failed", http.StatusInternalServerError)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
