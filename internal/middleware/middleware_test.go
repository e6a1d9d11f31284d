package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"walletd/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func serve(engine *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func TestLocalhostOnly(t *testing.T) {
	engine := gin.New()
	engine.Use(NewLocalhostOnly(quietLogger(), []string{"10.1.0.0/16", "192.0.2.7"}).Restrict())
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	cases := []struct {
		remote string
		status int
	}{
		{"127.0.0.1:50000", http.StatusOK},
		{"[::1]:50000", http.StatusOK},
		{"10.1.2.3:1", http.StatusOK},
		{"192.0.2.7:1", http.StatusOK},
		{"192.0.2.8:1", http.StatusForbidden},
		{"garbage", http.StatusForbidden},
	}
	for _, tc := range cases {
		req := httptest.NewRequest(http.MethodGet, "/x", nil)
		req.RemoteAddr = tc.remote
		assert.Equal(t, tc.status, serve(engine, req).Code, tc.remote)
	}

	// forwarded headers never widen access
	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.RemoteAddr = "203.0.113.9:1"
	req.Header.Set("X-Forwarded-For", "127.0.0.1")
	assert.Equal(t, http.StatusForbidden, serve(engine, req).Code)
}

func newAuthEngine(tokens *handlers.SessionTokens) *gin.Engine {
	engine := gin.New()
	auth := NewAuthMiddleware(tokens, quietLogger())
	engine.GET("/private", auth.RequireSession(), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString(SessionIDKey))
	})
	return engine
}

func TestRequireSession(t *testing.T) {
	tokens := handlers.NewSessionTokens(time.Hour)
	engine := newAuthEngine(tokens)

	// no session yet
	req := httptest.NewRequest(http.MethodGet, "/private", nil)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, req).Code)

	token, _, err := tokens.Issue()
	require.NoError(t, err)

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := serve(engine, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.NotEmpty(t, w.Body.String())

	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Basic "+token)
	w = serve(engine, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "invalid_auth_format")

	// query tokens only count for upgrade requests
	req = httptest.NewRequest(http.MethodGet, "/private?token="+token, nil)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, req).Code)
	req = httptest.NewRequest(http.MethodGet, "/private?token="+token, nil)
	req.Header.Set("Upgrade", "websocket")
	assert.Equal(t, http.StatusOK, serve(engine, req).Code)

	tokens.Rotate()
	req = httptest.NewRequest(http.MethodGet, "/private", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, serve(engine, req).Code)
}

func TestRequestLoggerPassesThrough(t *testing.T) {
	engine := gin.New()
	engine.Use(RequestLogger(quietLogger()))
	engine.GET("/x", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	assert.Equal(t, http.StatusTeapot, serve(engine, httptest.NewRequest(http.MethodGet, "/x", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(engine, httptest.NewRequest(http.MethodGet, "/missing", nil)).Code)
}
