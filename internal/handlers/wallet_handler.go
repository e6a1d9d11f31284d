package handlers

import (
	"net/http"

	"walletd/internal/dto"
	"walletd/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// WalletHandler wallet records of the unlocked vault
type WalletHandler struct {
	wallet *services.WalletService
	logger *logrus.Logger
}

func NewWalletHandler(wallet *services.WalletService, logger *logrus.Logger) *WalletHandler {
	return &WalletHandler{wallet: wallet, logger: logger}
}

// ListWalletsHandler most recent first
// GET /api/wallets
func (h *WalletHandler) ListWalletsHandler(c *gin.Context) {
	wallets, err := h.wallet.ListWallets(c.Request.Context())
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"wallets": wallets,
		"total":   len(wallets),
	})
}

// CreateWalletHandler generates a fresh mnemonic; the response is the only time the
// secrets leave the vault without a password re-check.
// POST /api/wallets
func (h *WalletHandler) CreateWalletHandler(c *gin.Context) {
	var req dto.CreateWalletRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err)
			return
		}
	}

	secrets, err := h.wallet.CreateWallet(c.Request.Context(), req.Label)
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, secrets)
}

// ImportWalletHandler
// POST /api/wallets/import
func (h *WalletHandler) ImportWalletHandler(c *gin.Context) {
	var req dto.ImportWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	secrets, err := h.wallet.ImportWallet(c.Request.Context(), services.ImportRequest{
		Label:      req.Label,
		PrivateKey: req.PrivateKey,
		SeedPhrase: req.SeedPhrase,
	})
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, secrets)
}

// RenameWalletHandler
// PATCH /api/wallets/:id
func (h *WalletHandler) RenameWalletHandler(c *gin.Context) {
	var req dto.RenameWalletRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	if err := h.wallet.RenameWallet(c.Request.Context(), c.Param("id"), req.Label); err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteWalletHandler
// DELETE /api/wallets/:id
func (h *WalletHandler) DeleteWalletHandler(c *gin.Context) {
	if err := h.wallet.DeleteWallet(c.Request.Context(), c.Param("id")); err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ActivateWalletHandler
// POST /api/wallets/:id/activate
func (h *WalletHandler) ActivateWalletHandler(c *gin.Context) {
	if err := h.wallet.SwitchWallet(c.Request.Context(), c.Param("id")); err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, h.wallet.Status())
}

// RevealSecretHandler
// POST /api/wallets/:id/reveal
func (h *WalletHandler) RevealSecretHandler(c *gin.Context) {
	var req dto.PasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	password := []byte(req.Password)
	defer clear(password)
	secrets, err := h.wallet.RevealSecret(c.Request.Context(), c.Param("id"), password)
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, secrets)
}
