package handlers

import (
	"net/http"

	"walletd/internal/dto"
	"walletd/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// VaultHandler vault lifecycle and session tokens
type VaultHandler struct {
	wallet *services.WalletService
	tokens *SessionTokens
	logger *logrus.Logger
}

func NewVaultHandler(wallet *services.WalletService, tokens *SessionTokens, logger *logrus.Logger) *VaultHandler {
	return &VaultHandler{
		wallet: wallet,
		tokens: tokens,
		logger: logger,
	}
}

// CreateVaultHandler sets the password of an empty vault and opens a session
// POST /api/vault
func (h *VaultHandler) CreateVaultHandler(c *gin.Context) {
	var req dto.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	password := []byte(req.Password)
	defer clear(password)
	if err := h.wallet.CreateVault(c.Request.Context(), password); err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	h.respondWithSession(c, http.StatusCreated)
}

// UnlockHandler
// POST /api/vault/unlock
func (h *VaultHandler) UnlockHandler(c *gin.Context) {
	var req dto.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	password := []byte(req.Password)
	defer clear(password)
	if err := h.wallet.Unlock(c.Request.Context(), password); err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	h.respondWithSession(c, http.StatusOK)
}

func (h *VaultHandler) respondWithSession(c *gin.Context, status int) {
	token, expiresAt, err := h.tokens.Issue()
	if err != nil {
		h.wallet.Lock()
		h.logger.WithError(err).Error("❌ [Vault] failed to issue session token")
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: "failed to issue session token", Code: "internal_error"})
		return
	}
	c.JSON(status, dto.UnlockResponse{
		Success:   true,
		Token:     token,
		ExpiresAt: expiresAt.Unix(),
		Status:    h.status(),
	})
}

// LockHandler clears every secret; outstanding tokens stop validating
// POST /api/vault/lock
func (h *VaultHandler) LockHandler(c *gin.Context) {
	h.wallet.Lock()
	h.tokens.Rotate()
	c.JSON(http.StatusOK, h.status())
}

// StatusHandler
// GET /api/vault/status
func (h *VaultHandler) StatusHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.status())
}

func (h *VaultHandler) status() dto.SessionStatus {
	status := h.wallet.Status()
	return dto.SessionStatus{
		Unlocked:       status.Unlocked,
		ActiveWalletID: status.ActiveWalletID,
		ActiveAddress:  status.ActiveAddress,
		Network:        h.wallet.CurrentNetwork().ID,
	}
}
