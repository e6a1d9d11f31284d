package services

import (
	"context"
	"math/big"
	"strconv"
	"strings"

	"walletd/internal/clients"
	"walletd/internal/config"
	"walletd/internal/models"
	"walletd/internal/utils"

	"github.com/sirupsen/logrus"
)

const defaultHistoryLimit = 50

// TxLister explorer account listing
type TxLister interface {
	TxList(ctx context.Context, chainID int64, address string, limit int) ([]clients.ExplorerTx, error)
}

// HistoryService activity feed from the block explorer. Read-only: failures degrade to an empty list.
type HistoryService struct {
	explorer     TxLister
	logger       *logrus.Logger
	defaultLimit int
}

func NewHistoryService(explorer TxLister, logger *logrus.Logger, defaultLimit int) *HistoryService {
	if defaultLimit <= 0 {
		defaultLimit = defaultHistoryLimit
	}
	return &HistoryService{explorer: explorer, logger: logger, defaultLimit: defaultLimit}
}

// History newest first
func (s *HistoryService) History(ctx context.Context, network *config.NetworkConfig, address string, limit int) []models.HistoryItem {
	if address == "" || network == nil || network.ChainID == 0 {
		return []models.HistoryItem{}
	}
	if limit <= 0 {
		limit = s.defaultLimit
	}

	rows, err := s.explorer.TxList(ctx, network.ChainID, address, limit)
	if err != nil {
		s.logger.WithFields(logrus.Fields{
			"network": network.ID,
			"error":   err,
		}).Warn("[History] explorer request failed")
		return []models.HistoryItem{}
	}

	owner := strings.ToLower(address)
	items := make([]models.HistoryItem, 0, len(rows))
	for _, row := range rows {
		if row.Hash == "" || row.BlockNumber == "" || row.TimeStamp == "" {
			continue
		}
		items = append(items, toHistoryItem(row, owner))
	}
	return items
}

func toHistoryItem(row clients.ExplorerTx, owner string) models.HistoryItem {
	direction := models.DirectionSent
	if strings.ToLower(row.From) != owner && strings.ToLower(row.To) == owner {
		direction = models.DirectionReceived
	}

	seconds, _ := strconv.ParseInt(row.TimeStamp, 10, 64)
	block, _ := strconv.ParseUint(row.BlockNumber, 10, 64)

	value := "0"
	if wei, ok := new(big.Int).SetString(row.Value, 10); ok {
		value = utils.FormatEther(wei)
	}

	return models.HistoryItem{
		Hash:        row.Hash,
		From:        row.From,
		To:          row.To,
		Value:       value,
		Timestamp:   seconds * 1000,
		BlockNumber: block,
		Direction:   direction,
	}
}
