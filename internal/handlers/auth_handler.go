package handlers

import (
	"encoding/json"
	"net"
	"net/http"

	"github.com/visitreg/server/internal/middleware"
	"github.com/visitreg/server/internal/models"
	"github.com/visitreg/server/internal/observability"
	"github.com/visitreg/server/internal/services"
)

// AuthHandler handles registration, login, logout, and password reset
type AuthHandler struct {
	authService          *services.AuthService
	passwordResetService *services.PasswordResetService
	metrics              *observability.BusinessMetrics
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(authService *services.AuthService, passwordResetService *services.PasswordResetService, metrics *observability.BusinessMetrics) *AuthHandler {
	return &AuthHandler{
		authService:          authService,
		passwordResetService: passwordResetService,
		metrics:              metrics,
	}
}

// Register creates a new account
// POST /api/auth/register
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.authService.Register(r.Context(), req)
	if err != nil {
		switch err {
		case models.ErrEmailTaken:
			http.Error(w, err.Error(), http.StatusConflict)
		case models.ErrEmptyEmail, models.ErrEmptyPassword, models.ErrEmptyStructure:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			observability.WithContext(r.Context()).Errorf("Registration failed: %v", err)
			http.Error(w, "Registration failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(user.ToResponse())
}

// Login verifies credentials and returns a session token
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	session, err := h.authService.Login(r.Context(), req.Email, req.Password, clientIP(r))
	if h.metrics != nil {
		h.metrics.RecordAuthAttempt(r.Context(), "password", err == nil)
	}
	if err != nil {
		if err == models.ErrInvalidCredentials {
			http.Error(w, "Invalid email or password", http.StatusUnauthorized)
			return
		}
		observability.WithContext(r.Context()).Errorf("Login failed: %v", err)
		http.Error(w, "Login failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(session)
}

// Logout invalidates the caller's session
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := r.Header.Get("Authorization")
	if len(token) > 7 {
		token = token[7:] // Strip "Bearer "
	}
	if err := h.authService.Logout(r.Context(), token); err != nil {
		observability.WithContext(r.Context()).Errorf("Logout failed: %v", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

// Me returns the authenticated user
// GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUserFromContext(r.Context())
	if user == nil {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(user.ToResponse())
}

// RequestPasswordReset starts the email reset flow
// POST /api/auth/password-reset/request
func (h *AuthHandler) RequestPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" {
		http.Error(w, "Email is required", http.StatusBadRequest)
		return
	}

	// Always succeeds from the caller's point of view
	h.passwordResetService.InitiateReset(r.Context(), req.Email)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"message": "If the address exists, a reset code has been sent.",
	})
}

// ConfirmPasswordReset verifies the code and sets the new password
// POST /api/auth/password-reset/confirm
func (h *AuthHandler) ConfirmPasswordReset(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email       string `json:"email"`
		Code        string `json:"code"`
		NewPassword string `json:"newPassword"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	err := h.passwordResetService.CompleteReset(r.Context(), req.Email, req.Code, req.NewPassword)
	if err != nil {
		switch err {
		case models.ErrResetTokenNotFound, models.ErrInvalidResetCode, models.ErrUserNotFound:
			http.Error(w, "Invalid reset code", http.StatusUnauthorized)
		case models.ErrResetTokenExpired:
			http.Error(w, "Reset code has expired", http.StatusUnauthorized)
		case models.ErrEmptyPassword:
			http.Error(w, err.Error(), http.StatusBadRequest)
		default:
			observability.WithContext(r.Context()).Errorf("Password reset failed: %v", err)
			http.Error(w, "Password reset failed", http.StatusInternalServerError)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"message": "Password updated."})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
