package handlers

import (
	"net/http"
	"strings"

	"walletd/internal/dto"
	"walletd/internal/models"
	"walletd/internal/services"
	"walletd/internal/utils"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// TransferHandler fee quotes and native-coin transfers from the active wallet
type TransferHandler struct {
	wallet *services.WalletService
	logger *logrus.Logger
}

func NewTransferHandler(wallet *services.WalletService, logger *logrus.Logger) *TransferHandler {
	return &TransferHandler{wallet: wallet, logger: logger}
}

// QuoteHandler
// POST /api/transfers/quote
func (h *TransferHandler) QuoteHandler(c *gin.Context) {
	draft, ok := bindDraft(c)
	if !ok {
		return
	}
	quote, err := h.wallet.QuoteFees(c.Request.Context(), draft)
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toFeeQuoteResponse(quote))
}

// CompareHandler slow, standard and fast side by side
// POST /api/transfers/compare
func (h *TransferHandler) CompareHandler(c *gin.Context) {
	draft, ok := bindDraft(c)
	if !ok {
		return
	}
	quotes, err := h.wallet.CompareFees(c.Request.Context(), draft)
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}

	out := make([]dto.FeeQuoteResponse, 0, len(quotes))
	for _, quote := range quotes {
		out = append(out, toFeeQuoteResponse(quote))
	}
	c.JSON(http.StatusOK, gin.H{"quotes": out})
}

// SubmitHandler
// POST /api/transfers
func (h *TransferHandler) SubmitHandler(c *gin.Context) {
	draft, ok := bindDraft(c)
	if !ok {
		return
	}
	result, err := h.wallet.SubmitTransfer(c.Request.Context(), draft)
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}

	status := http.StatusOK
	switch result.Status {
	case models.TransferSuperseded:
		// broadcast happened but the session moved on; the hash is still reported
		status = http.StatusConflict
	case models.TransferUnconfirmed:
		status = http.StatusAccepted
	}
	c.JSON(status, result)
}

// LastResultHandler
// GET /api/transfers/last
func (h *TransferHandler) LastResultHandler(c *gin.Context) {
	result := h.wallet.LastResult()
	if result == nil {
		c.JSON(http.StatusNotFound, dto.ErrorResponse{Error: "no transfer since unlock", Code: "not_found"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// StatusHandler receipt lookup on the selected network
// GET /api/transfers/:hash/status
func (h *TransferHandler) StatusHandler(c *gin.Context) {
	hash := c.Param("hash")
	status, err := h.wallet.TransactionStatus(c.Request.Context(), hash)
	if err != nil {
		respondWithError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"hash":   hash,
		"status": status,
	})
}

func bindDraft(c *gin.Context) (models.TransferDraft, bool) {
	var req dto.TransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return models.TransferDraft{}, false
	}
	return models.TransferDraft{
		To:        strings.TrimSpace(req.To),
		Amount:    strings.TrimSpace(req.Amount),
		Note:      req.Note,
		Speed:     models.Speed(strings.ToLower(req.Speed)),
		ForceKind: models.TxKind(strings.ToLower(req.ForceKind)),
	}, true
}

func toFeeQuoteResponse(quote *models.FeeQuote) dto.FeeQuoteResponse {
	resp := dto.FeeQuoteResponse{
		Kind:               string(quote.Kind),
		Speed:              string(quote.Speed),
		GasLimit:           quote.GasLimit,
		EstimatedCost:      quote.EstimatedCost.String(),
		EstimatedCostEther: utils.FormatEther(quote.EstimatedCost),
	}
	if quote.GasPrice != nil {
		resp.GasPrice = quote.GasPrice.String()
		resp.GasPriceGwei = utils.FormatGwei(quote.GasPrice)
	}
	if quote.MaxFeePerGas != nil {
		resp.MaxFeePerGas = quote.MaxFeePerGas.String()
		resp.MaxFeePerGasGwei = utils.FormatGwei(quote.MaxFeePerGas)
	}
	if quote.MaxPriorityFeePerGas != nil {
		resp.MaxPriorityFeePerGas = quote.MaxPriorityFeePerGas.String()
		resp.MaxPriorityFeePerGasGwei = utils.FormatGwei(quote.MaxPriorityFeePerGas)
	}
	return resp
}
