package services

import (
	"context"

	"walletd/internal/clients"
	"walletd/internal/config"
	"walletd/internal/models"
	"walletd/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
)

// defaultPulseFee shown when the node reports no fee data, in ether (21 gwei)
const defaultPulseFee = "0.000000021"

// reference USD prices of native testnet tokens, display only
var nativePricesUSD = map[string]float64{
	"eth-sepolia":  3000,
	"poly-amoy":    0.5,
	"base-sepolia": 3000,
}

// NetworkService read-only chain display data. Errors are logged and degrade to zero values.
type NetworkService struct {
	clients *clients.ClientCache
	logger  *logrus.Logger
}

func NewNetworkService(clientCache *clients.ClientCache, logger *logrus.Logger) *NetworkService {
	return &NetworkService{clients: clientCache, logger: logger}
}

// Balance native balance in ether, "0" for an invalid address or an unreachable node
func (s *NetworkService) Balance(ctx context.Context, network *config.NetworkConfig, address string) string {
	normalized, ok := utils.NormalizeAddress(address)
	if !ok {
		return "0"
	}
	rpc, err := s.clients.Get(ctx, network)
	if err != nil {
		s.logFailure(network, "balance", err)
		return "0"
	}
	balance, err := rpc.BalanceAt(ctx, common.HexToAddress(normalized))
	if err != nil {
		s.logFailure(network, "balance", err)
		return "0"
	}
	return utils.FormatEther(balance)
}

// Pulse latest block and fee levels
func (s *NetworkService) Pulse(ctx context.Context, network *config.NetworkConfig) models.NetworkPulse {
	pulse := models.NetworkPulse{
		Network:  network.ID,
		GasPrice: defaultPulseFee,
		BaseFee:  defaultPulseFee,
	}

	rpc, err := s.clients.Get(ctx, network)
	if err != nil {
		s.logFailure(network, "pulse", err)
		return pulse
	}
	block, err := rpc.BlockNumber(ctx)
	if err != nil {
		s.logFailure(network, "pulse", err)
		return pulse
	}
	fee, err := rpc.FeeData(ctx)
	if err != nil {
		s.logFailure(network, "pulse", err)
		return pulse
	}

	pulse.BlockNumber = block
	if fee.GasPrice != nil {
		pulse.GasPrice = utils.FormatEther(fee.GasPrice)
	}
	if fee.BaseFee != nil {
		pulse.BaseFee = utils.FormatEther(fee.BaseFee)
	}
	return pulse
}

// PriceUSD reference price of the network's native token, 0 when unknown
func (s *NetworkService) PriceUSD(networkID string) float64 {
	return nativePricesUSD[networkID]
}

func (s *NetworkService) logFailure(network *config.NetworkConfig, op string, err error) {
	s.logger.WithFields(logrus.Fields{
		"network": network.ID,
		"op":      op,
		"error":   clients.TranslateRPCError(err),
	}).Warn("[Network] read failed, showing defaults")
}
