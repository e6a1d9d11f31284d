package router

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"walletd/internal/app"
	"walletd/internal/config"
	"walletd/internal/dto"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type apiClient struct {
	t      *testing.T
	engine *gin.Engine
	token  string
}

func newTestAPI(t *testing.T) *apiClient {
	t.Helper()
	gin.SetMode(gin.TestMode)

	cfg := config.Default()
	cfg.Store.Driver = "memory"
	cfg.NATS.URL = ""
	cfg.KDF = config.KDFConfig{N: 1 << 12, R: 8, P: 1}
	cfg.Server.PulseIntervalSeconds = 0
	cfg.CORS.AllowedOrigins = []string{"http://localhost:3000"}

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	container, err := app.InitializeContainer(cfg, logger)
	require.NoError(t, err)
	t.Cleanup(container.Cleanup)

	engine := SetupRouter(Deps{
		Config: cfg,
		Wallet: container.Wallet,
		Push:   container.PushService,
		Tokens: container.Tokens,
		Logger: logger,
	})
	return &apiClient{t: t, engine: engine}
}

func (a *apiClient) do(method, path, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.RemoteAddr = "127.0.0.1:40000"
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if a.token != "" {
		req.Header.Set("Authorization", "Bearer "+a.token)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type walletList struct {
	Wallets []struct {
		ID      string `json:"id"`
		Address string `json:"address"`
		Active  bool   `json:"active"`
	} `json:"wallets"`
	Total int `json:"total"`
}

func TestVaultAndWalletFlow(t *testing.T) {
	api := newTestAPI(t)

	status := decode[dto.SessionStatus](t, api.do(http.MethodGet, "/api/vault/status", ""))
	assert.False(t, status.Unlocked)
	assert.Equal(t, "eth-sepolia", status.Network)

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/wallets", "").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/vault", `{"password":"abc"}`).Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/vault", `{}`).Code)

	w := api.do(http.MethodPost, "/api/vault", `{"password":"abcdef"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	unlocked := decode[dto.UnlockResponse](t, w)
	require.NotEmpty(t, unlocked.Token)
	assert.True(t, unlocked.Status.Unlocked)
	api.token = unlocked.Token

	w = api.do(http.MethodPost, "/api/wallets", "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	created := decode[map[string]string](t, w)
	assert.Len(t, strings.Fields(created["seed_phrase"]), 12)
	assert.Equal(t, "Wallet 1", created["label"])

	w = api.do(http.MethodPost, "/api/wallets/import", `{"seed_phrase":"`+abandonMnemonic+`"}`)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	imported := decode[map[string]string](t, w)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", imported["address"])

	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/wallets/import", `{"label":"empty"}`).Code)

	list := decode[walletList](t, api.do(http.MethodGet, "/api/wallets", ""))
	require.Equal(t, 2, list.Total)
	assert.Equal(t, imported["address"], list.Wallets[0].Address)
	assert.True(t, list.Wallets[0].Active)

	w = api.do(http.MethodPatch, "/api/wallets/"+created["wallet_id"], `{"label":"  savings "}`)
	assert.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodPatch, "/api/wallets/missing", `{"label":"x"}`).Code)

	w = api.do(http.MethodPost, "/api/wallets/"+created["wallet_id"]+"/activate", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, created["address"], decode[map[string]interface{}](t, w)["active_address"])

	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/wallets/"+created["wallet_id"]+"/reveal", `{"password":"nope"}`).Code)
	w = api.do(http.MethodPost, "/api/wallets/"+created["wallet_id"]+"/reveal", `{"password":"abcdef"}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created["private_key"], decode[map[string]string](t, w)["private_key"])

	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/transfers/last", "").Code)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/transfers/quote", `{"to":"nope","amount":"1"}`).Code)

	// lock invalidates the outstanding token
	assert.Equal(t, http.StatusOK, api.do(http.MethodPost, "/api/vault/lock", "").Code)
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodGet, "/api/wallets", "").Code)

	api.token = ""
	assert.Equal(t, http.StatusUnauthorized, api.do(http.MethodPost, "/api/vault/unlock", `{"password":"wrong-password"}`).Code)
	w = api.do(http.MethodPost, "/api/vault/unlock", `{"password":"abcdef"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	api.token = decode[dto.UnlockResponse](t, w).Token

	assert.Equal(t, 2, decode[walletList](t, api.do(http.MethodGet, "/api/wallets", "")).Total)

	assert.Equal(t, http.StatusOK, api.do(http.MethodDelete, "/api/wallets/"+imported["wallet_id"], "").Code)
	assert.Equal(t, 1, decode[walletList](t, api.do(http.MethodGet, "/api/wallets", "")).Total)
}

func TestNetworkSelection(t *testing.T) {
	api := newTestAPI(t)
	w := api.do(http.MethodPost, "/api/vault", `{"password":"abcdef"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	api.token = decode[dto.UnlockResponse](t, w).Token

	networks := decode[struct {
		Networks []dto.NetworkResponse `json:"networks"`
	}](t, api.do(http.MethodGet, "/api/networks", ""))
	require.Len(t, networks.Networks, 3)

	w = api.do(http.MethodPost, "/api/networks/poly-amoy/select", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, int64(80002), decode[dto.NetworkResponse](t, w).ChainID)
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodPost, "/api/networks/mainnet/select", "").Code)

	status := decode[dto.SessionStatus](t, api.do(http.MethodGet, "/api/vault/status", ""))
	assert.Equal(t, "poly-amoy", status.Network)

	// no active wallet means no explorer traffic
	history := decode[map[string]interface{}](t, api.do(http.MethodGet, "/api/history", ""))
	assert.Equal(t, float64(0), history["total"])
	assert.Equal(t, http.StatusBadRequest, api.do(http.MethodGet, "/api/history?limit=-1", "").Code)
}

func TestRouterGuards(t *testing.T) {
	api := newTestAPI(t)

	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/api/health", "").Code)
	assert.Equal(t, http.StatusOK, api.do(http.MethodGet, "/metrics", "").Code)
	assert.Equal(t, http.StatusNotFound, api.do(http.MethodGet, "/api/nothing", "").Code)

	req := httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "198.51.100.4:1000"
	w := httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)

	req = httptest.NewRequest(http.MethodOptions, "/api/vault/unlock", nil)
	req.RemoteAddr = "127.0.0.1:1000"
	req.Header.Set("Origin", "http://localhost:3000")
	w = httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/health", nil)
	req.RemoteAddr = "127.0.0.1:1000"
	req.Header.Set("Origin", "http://evil.example")
	w = httptest.NewRecorder()
	api.engine.ServeHTTP(w, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}
