package handlers

import (
	"crypto/rand"
	"errors"
	"fmt"
	"sync"
	"time"

	"walletd/internal/dto"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "walletd"

var errSessionClosed = errors.New("no open session")

// SessionTokens issues HS256 bearer tokens bound to one unlocked session. The signing
// secret is random per session and replaced on Rotate, so a lock invalidates every token.
type SessionTokens struct {
	mu        sync.RWMutex
	secret    []byte
	sessionID string
	ttl       time.Duration
}

func NewSessionTokens(ttl time.Duration) *SessionTokens {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionTokens{ttl: ttl}
}

// Issue starts a new token generation and returns its first token
func (t *SessionTokens) Issue() (string, time.Time, error) {
	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return "", time.Time{}, fmt.Errorf("failed to generate token secret: %w", err)
	}

	t.mu.Lock()
	t.secret = secret
	t.sessionID = uuid.NewString()
	sessionID := t.sessionID
	t.mu.Unlock()

	now := time.Now()
	expiresAt := now.Add(t.ttl)
	claims := dto.SessionClaims{
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString(secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, expiresAt, nil
}

// Validate checks signature, expiry and that the token belongs to the current session
func (t *SessionTokens) Validate(tokenString string) (*dto.SessionClaims, error) {
	t.mu.RLock()
	secret := t.secret
	sessionID := t.sessionID
	t.mu.RUnlock()
	if secret == nil {
		return nil, errSessionClosed
	}

	token, err := jwt.ParseWithClaims(tokenString, &dto.SessionClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*dto.SessionClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.SessionID != sessionID {
		return nil, errors.New("token belongs to a previous session")
	}
	return claims, nil
}

// Rotate drops the secret; every outstanding token stops validating
func (t *SessionTokens) Rotate() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.secret = nil
	t.sessionID = ""
}
