package models

import "time"

// ConnectionStatus describes the session-level connection state as shown
// to the UI. It is derived from auth state, not from socket liveness: a
// hydrated-but-unvalidated session is "connecting" even before any socket
// exists.
type ConnectionStatus string

const (
	// StatusDisconnected means no authenticated session is active.
	StatusDisconnected ConnectionStatus = "disconnected"
	// StatusConnecting means a persisted session was restored but has not
	// been validated against the authority yet.
	StatusConnecting ConnectionStatus = "connecting"
	// StatusConnected means the session is authenticated.
	StatusConnected ConnectionStatus = "connected"
)

// Session holds the authenticated endpoint and credential. An empty token
// means unauthenticated.
type Session struct {
	ExpiresAt time.Time        `json:"expiresAt"`
	ServerURL string           `json:"serverUrl"`
	Token     string           `json:"token"`
	Status    ConnectionStatus `json:"-"`
}

// Authenticated reports whether the session carries a credential.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// Expired reports whether the session credential is past its expiry.
// Sessions without a recorded expiry never expire client-side.
func (s Session) Expired() bool {
	return !s.ExpiresAt.IsZero() && time.Now().After(s.ExpiresAt)
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// LoginResponse is the authority's answer to a successful login.
type LoginResponse struct {
	ExpiresAt time.Time `json:"expiresAt"`
	Token     string    `json:"token"`
}

// ExecuteRequest is the payload for POST /api/commands/:id/execute.
// A nil Parameters slice runs the command with its default args.
type ExecuteRequest struct {
	Parameters []string `json:"parameters,omitempty"`
}
