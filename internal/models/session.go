package models

import (
	"time"

	"github.com/google/uuid"
)

// Session represents an authenticated client session
type Session struct {
	ID             string    `json:"id"` // This is the session token
	UserID         string    `json:"userId"`
	CreatedAt      time.Time `json:"createdAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	IPAddress      string    `json:"ipAddress,omitempty"`
	IsActive       bool      `json:"isActive"`
}

// NewSession creates a session valid for the given number of hours
func NewSession(userID, ipAddress string, durationHours int) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:             uuid.New().String(),
		UserID:         userID,
		CreatedAt:      now,
		ExpiresAt:      now.Add(time.Duration(durationHours) * time.Hour),
		LastActivityAt: now,
		IPAddress:      ipAddress,
		IsActive:       true,
	}
}

// IsExpired checks if the session has expired
func (s *Session) IsExpired() bool {
	return time.Now().UTC().After(s.ExpiresAt)
}

// SessionResponse is returned on login
type SessionResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      UserResponse `json:"user"`
}
