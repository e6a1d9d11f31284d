package router

import (
	"net/http"
	"strconv"
	"strings"

	"walletd/internal/config"
	"walletd/internal/handlers"
	"walletd/internal/middleware"
	"walletd/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// Deps everything the HTTP surface talks to
type Deps struct {
	Config *config.Config
	Wallet *services.WalletService
	Push   *services.WebSocketPushService
	Tokens *handlers.SessionTokens
	Logger *logrus.Logger
}

// corsMiddleware only origins listed in config are echoed back; "*" allows any.
// Without configuration no CORS headers are set and browsers fall back to same-origin.
func corsMiddleware(cfg config.CORSConfig, logger *logrus.Logger) gin.HandlerFunc {
	maxAge := cfg.MaxAge
	if maxAge <= 0 {
		maxAge = 3600
	}
	allowAll := len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*"

	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		allowed := false
		if origin != "" {
			if allowAll {
				c.Header("Access-Control-Allow-Origin", "*")
				allowed = true
			} else {
				for _, allowedOrigin := range cfg.AllowedOrigins {
					if strings.TrimSpace(allowedOrigin) == origin {
						c.Header("Access-Control-Allow-Origin", origin)
						c.Header("Vary", "Origin")
						allowed = true
						break
					}
				}
			}
			if !allowed {
				logger.WithFields(logrus.Fields{
					"request_origin": origin,
					"path":           c.Request.URL.Path,
					"method":         c.Request.Method,
				}).Warn("🚫 CORS: Origin not in whitelist")
			}
		}

		if allowed {
			c.Header("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept, Authorization")
			if cfg.AllowCredentials && !allowAll {
				c.Header("Access-Control-Allow-Credentials", "true")
			}
			c.Header("Access-Control-Max-Age", strconv.Itoa(maxAge))
		}

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

func SetupRouter(deps Deps) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestLogger(deps.Logger))

	if len(deps.Config.Admin.AllowedIPs) > 0 {
		deps.Logger.WithFields(logrus.Fields{
			"allowed_ips": deps.Config.Admin.AllowedIPs,
			"count":       len(deps.Config.Admin.AllowedIPs),
		}).Info("IP whitelist configured")
	}
	localhostOnly := middleware.NewLocalhostOnly(deps.Logger, deps.Config.Admin.AllowedIPs)
	r.Use(localhostOnly.Restrict())
	r.Use(corsMiddleware(deps.Config.CORS, deps.Logger))

	auth := middleware.NewAuthMiddleware(deps.Tokens, deps.Logger)
	vaultHandler := handlers.NewVaultHandler(deps.Wallet, deps.Tokens, deps.Logger)
	walletHandler := handlers.NewWalletHandler(deps.Wallet, deps.Logger)
	transferHandler := handlers.NewTransferHandler(deps.Wallet, deps.Logger)
	networkHandler := handlers.NewNetworkHandler(deps.Wallet, deps.Logger)
	wsHandler := handlers.NewWebSocketHandler(deps.Push)

	// ============ Prometheus Metrics ============
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// ============ WebSocket ============
	r.GET("/ws", auth.RequireSession(), wsHandler.HandleWebSocket)

	api := r.Group("/api")
	{
		api.GET("/health", handlers.HealthCheckHandler)

		vault := api.Group("/vault")
		{
			vault.POST("", vaultHandler.CreateVaultHandler)
			vault.POST("/unlock", vaultHandler.UnlockHandler)
			vault.POST("/lock", vaultHandler.LockHandler)
			vault.GET("/status", vaultHandler.StatusHandler)
		}

		session := api.Group("", auth.RequireSession())
		{
			session.GET("/wallets", walletHandler.ListWalletsHandler)
			session.POST("/wallets", walletHandler.CreateWalletHandler)
			session.POST("/wallets/import", walletHandler.ImportWalletHandler)
			session.PATCH("/wallets/:id", walletHandler.RenameWalletHandler)
			session.DELETE("/wallets/:id", walletHandler.DeleteWalletHandler)
			session.POST("/wallets/:id/activate", walletHandler.ActivateWalletHandler)
			session.POST("/wallets/:id/reveal", walletHandler.RevealSecretHandler)

			session.GET("/networks", networkHandler.ListNetworksHandler)
			session.POST("/networks/:id/select", networkHandler.SelectNetworkHandler)
			session.GET("/network/pulse", networkHandler.PulseHandler)
			session.GET("/balance", networkHandler.BalanceHandler)
			session.GET("/history", networkHandler.HistoryHandler)

			session.POST("/transfers/quote", transferHandler.QuoteHandler)
			session.POST("/transfers/compare", transferHandler.CompareHandler)
			session.POST("/transfers", transferHandler.SubmitHandler)
			session.GET("/transfers/last", transferHandler.LastResultHandler)
			session.GET("/transfers/:hash/status", transferHandler.StatusHandler)
		}
	}

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "endpoint not found",
			"code":  "not_found",
			"path":  c.Request.URL.Path,
		})
	})

	return r
}
