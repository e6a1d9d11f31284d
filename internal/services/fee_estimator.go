package services

import (
	"context"
	"math/big"

	"walletd/internal/apperrors"
	"walletd/internal/clients"
	"walletd/internal/config"
	"walletd/internal/metrics"
	"walletd/internal/models"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultGasLimit plain native transfer, used when simulation fails
	DefaultGasLimit uint64 = 21000

	gasLimitMarginPercent = 120
)

// FeeEstimator decides the transaction kind and prices the three speed tiers
type FeeEstimator struct {
	clients *clients.ClientCache
	logger  *logrus.Logger
}

func NewFeeEstimator(clientCache *clients.ClientCache, logger *logrus.Logger) *FeeEstimator {
	return &FeeEstimator{clients: clientCache, logger: logger}
}

// EstimateGasLimit simulated gas with a 20% margin, 21000 without margin if simulation fails
func (f *FeeEstimator) EstimateGasLimit(ctx context.Context, rpc clients.ChainRPC, from, to common.Address, value *big.Int) uint64 {
	gas, err := rpc.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Value: value})
	if err != nil || gas == 0 {
		f.logger.WithFields(logrus.Fields{
			"from":  from.Hex(),
			"to":    to.Hex(),
			"error": err,
		}).Warn("[FeeEstimator] gas estimation failed, using default limit")
		return DefaultGasLimit
	}
	return gas * gasLimitMarginPercent / 100
}

// Quote prices one speed tier. An empty speed means standard and an empty forceKind lets
// the network's fee data decide.
func (f *FeeEstimator) Quote(ctx context.Context, network *config.NetworkConfig, from, to common.Address, value *big.Int, speed models.Speed, forceKind models.TxKind) (*models.FeeQuote, error) {
	if speed == "" {
		speed = models.SpeedStandard
	}
	if _, ok := speed.Multiplier(); !ok {
		return nil, apperrors.Validation("speed", "unknown speed "+string(speed))
	}
	if err := validateForceKind(forceKind); err != nil {
		return nil, err
	}

	fee, gasLimit, err := f.fetchInputs(ctx, network, from, to, value)
	if err != nil {
		return nil, err
	}
	quote, err := buildQuote(fee, gasLimit, speed, forceKind)
	if err != nil {
		return nil, err
	}
	metrics.FeeQuotes.WithLabelValues(network.ID, string(quote.Kind), string(speed)).Inc()
	return quote, nil
}

// Compare prices all three tiers from a single fee and gas snapshot, slow first
func (f *FeeEstimator) Compare(ctx context.Context, network *config.NetworkConfig, from, to common.Address, value *big.Int) ([]*models.FeeQuote, error) {
	fee, gasLimit, err := f.fetchInputs(ctx, network, from, to, value)
	if err != nil {
		return nil, err
	}

	quotes := make([]*models.FeeQuote, 0, len(models.Speeds))
	for _, speed := range models.Speeds {
		quote, err := buildQuote(fee, gasLimit, speed, "")
		if err != nil {
			return nil, err
		}
		metrics.FeeQuotes.WithLabelValues(network.ID, string(quote.Kind), string(speed)).Inc()
		quotes = append(quotes, quote)
	}
	return quotes, nil
}

// fetchInputs fee data and gas limit, fetched concurrently
func (f *FeeEstimator) fetchInputs(ctx context.Context, network *config.NetworkConfig, from, to common.Address, value *big.Int) (*clients.FeeData, uint64, error) {
	rpc, err := f.clients.Get(ctx, network)
	if err != nil {
		return nil, 0, rpcFailure(network, err)
	}

	var (
		fee      *clients.FeeData
		gasLimit uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		data, err := rpc.FeeData(gctx)
		if err != nil {
			return rpcFailure(network, err)
		}
		fee = data
		return nil
	})
	g.Go(func() error {
		gasLimit = f.EstimateGasLimit(gctx, rpc, from, to, value)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return fee, gasLimit, nil
}

func validateForceKind(kind models.TxKind) error {
	switch kind {
	case "", models.TxKindLegacy, models.TxKindEIP1559:
		return nil
	}
	return apperrors.Validation("force_kind", "unknown transaction kind "+string(kind))
}

// buildQuote applies the kind decision and the speed multiplier. Forcing EIP-1559 on a
// network without dynamic fee data falls back to legacy.
func buildQuote(fee *clients.FeeData, gasLimit uint64, speed models.Speed, forceKind models.TxKind) (*models.FeeQuote, error) {
	multiplier, ok := speed.Multiplier()
	if !ok {
		return nil, apperrors.Validation("speed", "unknown speed "+string(speed))
	}

	kind := models.TxKindLegacy
	if fee.SupportsEIP1559() && forceKind != models.TxKindLegacy {
		kind = models.TxKindEIP1559
	}

	quote := &models.FeeQuote{Kind: kind, Speed: speed, GasLimit: gasLimit}
	limit := new(big.Int).SetUint64(gasLimit)

	switch kind {
	case models.TxKindEIP1559:
		quote.MaxFeePerGas = scale(fee.MaxFeePerGas, multiplier)
		quote.MaxPriorityFeePerGas = scale(fee.MaxPriorityFeePerGas, multiplier)
		quote.EstimatedCost = new(big.Int).Mul(limit, quote.MaxFeePerGas)
	default:
		if fee.GasPrice == nil || fee.GasPrice.Sign() <= 0 {
			return nil, apperrors.Network("node reported no gas price", nil)
		}
		quote.GasPrice = scale(fee.GasPrice, multiplier)
		quote.EstimatedCost = new(big.Int).Mul(limit, quote.GasPrice)
	}
	return quote, nil
}

func scale(v *big.Int, percent int64) *big.Int {
	out := new(big.Int).Mul(v, big.NewInt(percent))
	return out.Div(out, big.NewInt(100))
}

// rpcFailure translates and counts an RPC error
func rpcFailure(network *config.NetworkConfig, err error) error {
	translated := clients.TranslateRPCError(err)
	networkID := ""
	if network != nil {
		networkID = network.ID
	}
	metrics.RPCErrors.WithLabelValues(networkID, string(apperrors.KindOf(translated))).Inc()
	return translated
}
