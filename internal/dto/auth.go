package dto

import "github.com/golang-jwt/jwt/v5"

// ==================== Vault DTOs ====================

// PasswordRequest create, unlock or reveal
type PasswordRequest struct {
	Password string `json:"password" binding:"required"`
}

// UnlockResponse bearer token for the opened session
type UnlockResponse struct {
	Success   bool          `json:"success"`
	Token     string        `json:"token"`
	ExpiresAt int64         `json:"expires_at"` // unix seconds
	Status    SessionStatus `json:"status"`
}

// SessionStatus lock state, no secret material
type SessionStatus struct {
	Unlocked       bool   `json:"unlocked"`
	ActiveWalletID string `json:"active_wallet_id,omitempty"`
	ActiveAddress  string `json:"active_address,omitempty"`
	Network        string `json:"network"`
}

// SessionClaims JWT Claims structure. Tokens die with the signing secret, which rotates on every lock.
type SessionClaims struct {
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}
