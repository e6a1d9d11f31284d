package services

import (
	"context"
	"errors"
	"io"
	"math/big"
	"net"
	"regexp"
	"time"

	"walletd/internal/apperrors"
	"walletd/internal/clients"
	"walletd/internal/config"
	"walletd/internal/metrics"
	"walletd/internal/models"
	"walletd/internal/utils"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

var txHashPattern = regexp.MustCompile("^0x[0-9a-fA-F]{64}$")

// broadcastTimeout bounds eth_sendRawTransaction independently of the caller
const broadcastTimeout = 30 * time.Second

// SubmitState step of the submission state machine
type SubmitState string

const (
	StateValidating         SubmitState = "validating"
	StateQuoting            SubmitState = "quoting"
	StateAffordabilityCheck SubmitState = "affordability_check"
	StateSigning            SubmitState = "signing"
	StateBroadcasting       SubmitState = "broadcasting"
	StateResult             SubmitState = "result"
)

// TransactionSubmitter validates, prices, signs and broadcasts one native transfer.
// It does not wait for a receipt and keeps no local nonce ledger: the nonce is the node's
// pending count read right before signing.
type TransactionSubmitter struct {
	clients      *clients.ClientCache
	fees         *FeeEstimator
	session      *SessionManager
	guard        *SubmissionGuard
	logger       *logrus.Logger
	defaultSpeed models.Speed
}

func NewTransactionSubmitter(clientCache *clients.ClientCache, fees *FeeEstimator, session *SessionManager, guard *SubmissionGuard, logger *logrus.Logger, defaultSpeed models.Speed) *TransactionSubmitter {
	if defaultSpeed == "" {
		defaultSpeed = models.SpeedStandard
	}
	return &TransactionSubmitter{
		clients:      clientCache,
		fees:         fees,
		session:      session,
		guard:        guard,
		logger:       logger,
		defaultSpeed: defaultSpeed,
	}
}

// attempt per-submission context carried through the states
type attempt struct {
	tok     SubmissionToken
	network *config.NetworkConfig
	snap    *SessionSnapshot
	log     *logrus.Entry
}

func (a *attempt) enter(state SubmitState) {
	a.log.WithField("state", state).Info("[Submitter] state")
}

// Submit runs the state machine under tok. Before broadcast a stale token or session aborts
// with ErrSuperseded. After broadcast the result is still returned, marked superseded.
func (s *TransactionSubmitter) Submit(ctx context.Context, tok SubmissionToken, network *config.NetworkConfig, draft models.TransferDraft) (*models.TransferResult, error) {
	started := time.Now()
	a := &attempt{
		tok:     tok,
		network: network,
		log: s.logger.WithFields(logrus.Fields{
			"attempt_id": string(tok),
			"network":    network.ID,
		}),
	}

	result, err := s.run(ctx, a, draft)
	metrics.SubmissionDuration.WithLabelValues(network.ID).Observe(time.Since(started).Seconds())

	switch {
	case err != nil:
		metrics.Submissions.WithLabelValues(network.ID, string(apperrors.KindOf(err))).Inc()
		a.log.WithField("error", err).Warn("[Submitter] submission failed")
	default:
		metrics.Submissions.WithLabelValues(network.ID, string(result.Status)).Inc()
	}
	return result, err
}

func (s *TransactionSubmitter) run(ctx context.Context, a *attempt, draft models.TransferDraft) (*models.TransferResult, error) {
	// Validating
	a.enter(StateValidating)
	to, ok := utils.ParseRecipient(draft.To)
	if !ok {
		return nil, apperrors.Validation("to", "invalid recipient")
	}
	amount, err := utils.ParseEther(draft.Amount)
	if err != nil {
		return nil, apperrors.Validation("amount", "invalid amount")
	}
	speed := draft.Speed
	if speed == "" {
		speed = s.defaultSpeed
	}

	snap, err := s.session.Snapshot()
	if err != nil {
		return nil, err
	}
	defer snap.Wipe()
	a.snap = snap
	a.log = a.log.WithField("wallet_id", snap.WalletID)

	rpc, err := s.clients.Get(ctx, a.network)
	if err != nil {
		return nil, rpcFailure(a.network, err)
	}
	if err := s.checkpoint(a); err != nil {
		return nil, err
	}

	// Quoting
	a.enter(StateQuoting)
	quote, err := s.fees.Quote(ctx, a.network, snap.Address, to, amount, speed, draft.ForceKind)
	if err != nil {
		return nil, err
	}
	if err := s.checkpoint(a); err != nil {
		return nil, err
	}

	// AffordabilityCheck
	a.enter(StateAffordabilityCheck)
	balance, err := rpc.BalanceAt(ctx, snap.Address)
	if err != nil {
		return nil, rpcFailure(a.network, err)
	}
	if err := s.checkpoint(a); err != nil {
		return nil, err
	}
	required := new(big.Int).Add(amount, quote.EstimatedCost)
	if balance.Cmp(required) < 0 {
		return nil, apperrors.InsufficientFunds(required, balance)
	}

	// Signing
	a.enter(StateSigning)
	nonce, err := rpc.PendingNonceAt(ctx, snap.Address)
	if err != nil {
		return nil, rpcFailure(a.network, err)
	}
	if err := s.checkpoint(a); err != nil {
		return nil, err
	}
	signed, err := signTransfer(snap, a.network.ChainID, nonce, to, amount, quote)
	if err != nil {
		return nil, err
	}
	a.log = a.log.WithField("tx_hash", signed.Hash().Hex())

	// Broadcasting
	a.enter(StateBroadcasting)
	if err := s.checkpoint(a); err != nil {
		return nil, err
	}
	status := models.TransferSuccess
	if err := s.broadcast(ctx, rpc, signed); err != nil {
		if !ambiguousBroadcast(err) {
			return nil, rpcFailure(a.network, err)
		}
		status = models.TransferUnconfirmed
		a.log.WithField("error", err).Warn("[Submitter] broadcast outcome unknown, reporting hash as unconfirmed")
	}

	// Result
	a.enter(StateResult)
	result := &models.TransferResult{
		Hash:      signed.Hash().Hex(),
		From:      snap.Address.Hex(),
		To:        to.Hex(),
		Value:     utils.FormatEther(amount),
		Network:   a.network.ID,
		Status:    status,
		AttemptID: string(a.tok),
	}
	if s.stale(a) {
		result.Status = models.TransferSuperseded
		a.log.Warn("[Submitter] broadcast accepted but attempt superseded, result will not be applied")
	}
	return result, nil
}

// broadcast sends once signed, even if the caller goes away meanwhile
func (s *TransactionSubmitter) broadcast(ctx context.Context, rpc clients.ChainRPC, signed *types.Transaction) error {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), broadcastTimeout)
	defer cancel()
	return rpc.SendTransaction(sendCtx, signed)
}

// ambiguousBroadcast the request may have reached the node without an answer coming back
func ambiguousBroadcast(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

func (s *TransactionSubmitter) stale(a *attempt) bool {
	return s.guard.IsStale(a.tok) || !s.session.IsCurrent(a.snap.Epoch)
}

// checkpoint re-validates after a suspension point
func (s *TransactionSubmitter) checkpoint(a *attempt) error {
	if s.stale(a) {
		a.log.Info("[Submitter] attempt superseded, aborting")
		return apperrors.ErrSuperseded
	}
	return nil
}

// signTransfer builds the body matching the quote kind and signs with the chain's latest signer
func signTransfer(snap *SessionSnapshot, chainID int64, nonce uint64, to common.Address, amount *big.Int, quote *models.FeeQuote) (*types.Transaction, error) {
	chain := big.NewInt(chainID)

	var body types.TxData
	switch quote.Kind {
	case models.TxKindEIP1559:
		body = &types.DynamicFeeTx{
			ChainID:   chain,
			Nonce:     nonce,
			GasTipCap: quote.MaxPriorityFeePerGas,
			GasFeeCap: quote.MaxFeePerGas,
			Gas:       quote.GasLimit,
			To:        &to,
			Value:     amount,
		}
	case models.TxKindLegacy:
		body = &types.LegacyTx{
			Nonce:    nonce,
			GasPrice: quote.GasPrice,
			Gas:      quote.GasLimit,
			To:       &to,
			Value:    amount,
		}
	default:
		return nil, apperrors.Signing("unknown transaction kind "+string(quote.Kind), nil)
	}

	if snap.Key == nil {
		return nil, apperrors.ErrNoActiveKey
	}
	signed, err := types.SignTx(types.NewTx(body), types.LatestSignerForChainID(chain), snap.Key)
	if err != nil {
		return nil, apperrors.Signing("failed to sign transaction", err)
	}
	return signed, nil
}

// TransactionStatus receipt lookup for a broadcast hash, read-only
func (s *TransactionSubmitter) TransactionStatus(ctx context.Context, network *config.NetworkConfig, hash string) (models.ReceiptStatus, error) {
	if !txHashPattern.MatchString(hash) {
		return "", apperrors.Validation("hash", "invalid transaction hash")
	}
	rpc, err := s.clients.Get(ctx, network)
	if err != nil {
		return "", rpcFailure(network, err)
	}
	receipt, err := rpc.TransactionReceipt(ctx, common.HexToHash(hash))
	if errors.Is(err, ethereum.NotFound) {
		return models.ReceiptPending, nil
	}
	if err != nil {
		return "", rpcFailure(network, err)
	}
	if receipt.Status == types.ReceiptStatusSuccessful {
		return models.ReceiptConfirmed, nil
	}
	return models.ReceiptFailed, nil
}
