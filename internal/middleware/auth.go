package middleware

import (
	"net/http"
	"strings"

	"walletd/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// SessionIDKey holds the validated session id in the gin context
const SessionIDKey = "session_id"

// AuthMiddleware session bearer tokens
type AuthMiddleware struct {
	tokens *handlers.SessionTokens
	logger *logrus.Logger
}

// NewAuthMiddleware create
func NewAuthMiddleware(tokens *handlers.SessionTokens, logger *logrus.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// RequireSession accepts "Authorization: Bearer <token>", or ?token= for websocket upgrades
// where browsers cannot set headers.
func (a *AuthMiddleware) RequireSession() gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, code := bearerToken(c)
		if code != "" {
			a.reject(c, code, "missing or malformed bearer token")
			return
		}

		claims, err := a.tokens.Validate(tokenString)
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"path":   c.Request.URL.Path,
				"method": c.Request.Method,
				"error":  err.Error(),
			}).Warn("🔒 session token rejected")
			a.reject(c, "invalid_token", "session token is invalid or expired")
			return
		}

		c.Set(SessionIDKey, claims.SessionID)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		if token := c.Query("token"); token != "" && c.GetHeader("Upgrade") != "" {
			return token, ""
		}
		return "", "missing_auth_header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid_auth_format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty_token"
	}
	return token, ""
}

func (a *AuthMiddleware) reject(c *gin.Context, code, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
