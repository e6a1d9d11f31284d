package handlers

import (
	"net/http"
	"strconv"

	"walletd/internal/dto"
	"walletd/internal/services"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// NetworkHandler network selection and read-only chain views
type NetworkHandler struct {
	wallet *services.WalletService
	logger *logrus.Logger
}

func NewNetworkHandler(wallet *services.WalletService, logger *logrus.Logger) *NetworkHandler {
	return &NetworkHandler{wallet: wallet, logger: logger}
}

// ListNetworksHandler
// GET /api/networks
func (h *NetworkHandler) ListNetworksHandler(c *gin.Context) {
	selected := h.wallet.CurrentNetwork().ID
	networks := h.wallet.Networks()

	out := make([]dto.NetworkResponse, 0, len(networks))
	for _, n := range networks {
		out = append(out, dto.NetworkResponse{
			ID:           n.ID,
			Name:         n.Name,
			ChainID:      n.ChainID,
			Explorer:     n.Explorer,
			NativeSymbol: n.NativeSymbol,
			Selected:     n.ID == selected,
		})
	}
	c.JSON(http.StatusOK, gin.H{"networks": out})
}

// SelectNetworkHandler
// POST /api/networks/:id/select
func (h *NetworkHandler) SelectNetworkHandler(c *gin.Context) {
	network, err := h.wallet.SelectNetwork(c.Param("id"))
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, dto.NetworkResponse{
		ID:           network.ID,
		Name:         network.Name,
		ChainID:      network.ChainID,
		Explorer:     network.Explorer,
		NativeSymbol: network.NativeSymbol,
		Selected:     true,
	})
}

// PulseHandler latest block and fee levels, never fails
// GET /api/network/pulse
func (h *NetworkHandler) PulseHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.wallet.NetworkPulse(c.Request.Context()))
}

// BalanceHandler active wallet unless ?address= is given
// GET /api/balance
func (h *NetworkHandler) BalanceHandler(c *gin.Context) {
	c.JSON(http.StatusOK, h.wallet.Balance(c.Request.Context(), c.Query("address")))
}

// HistoryHandler
// GET /api/history?limit=
func (h *NetworkHandler) HistoryHandler(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: "limit must be a non-negative integer", Code: "validation_error", Field: "limit"})
			return
		}
		limit = parsed
	}

	items := h.wallet.History(c.Request.Context(), limit)
	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": len(items),
	})
}
