package services

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
	"sync"
	"time"

	"walletd/internal/apperrors"
	"walletd/internal/config"
	"walletd/internal/events"
	"walletd/internal/keycodec"
	"walletd/internal/metrics"
	"walletd/internal/models"
	"walletd/internal/repository"
	"walletd/internal/utils"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ResultPusher delivers UI-visible updates to connected clients
type ResultPusher interface {
	PushTransferResult(result *models.TransferResult)
	PushSessionLocked()
}

// WalletSummary public view of a stored wallet
type WalletSummary struct {
	ID            string    `json:"id"`
	Label         string    `json:"label"`
	Address       string    `json:"address"`
	HasSeedPhrase bool      `json:"has_seed_phrase"`
	CreatedAt     time.Time `json:"created_at"`
	Active        bool      `json:"active"`
}

// WalletSecrets backup material, only returned on creation or explicit reveal
type WalletSecrets struct {
	WalletID   string `json:"wallet_id"`
	Label      string `json:"label"`
	Address    string `json:"address"`
	PrivateKey string `json:"private_key"`
	SeedPhrase string `json:"seed_phrase,omitempty"`
}

// ImportRequest exactly one of PrivateKey and SeedPhrase; the seed phrase wins if both are set
type ImportRequest struct {
	Label      string
	PrivateKey string
	SeedPhrase string
}

// BalanceView native balance of one address on the selected network
type BalanceView struct {
	Address  string  `json:"address"`
	Network  string  `json:"network"`
	Symbol   string  `json:"symbol"`
	Balance  string  `json:"balance"`
	PriceUSD float64 `json:"price_usd"`
	ValueUSD float64 `json:"value_usd"`
}

// WalletServiceDeps collaborators of the facade
type WalletServiceDeps struct {
	Config    *config.Config
	Store     repository.WalletRecordStore
	Codec     *keycodec.Codec
	Session   *SessionManager
	Guard     *SubmissionGuard
	Fees      *FeeEstimator
	Submitter *TransactionSubmitter
	Network   *NetworkService
	History   *HistoryService
	Publisher events.Publisher
	Pusher    ResultPusher
	Logger    *logrus.Logger
}

// WalletService the operations the UI drives. Secrets stay in the SessionManager;
// the facade only holds the selected network and the last applied transfer result.
type WalletService struct {
	cfg       *config.Config
	store     repository.WalletRecordStore
	codec     *keycodec.Codec
	session   *SessionManager
	guard     *SubmissionGuard
	fees      *FeeEstimator
	submitter *TransactionSubmitter
	network   *NetworkService
	history   *HistoryService
	publisher events.Publisher
	pusher    ResultPusher
	logger    *logrus.Logger

	mu         sync.Mutex
	networkID  string
	lastResult *models.TransferResult
}

func NewWalletService(deps WalletServiceDeps) *WalletService {
	publisher := deps.Publisher
	if publisher == nil {
		publisher = events.NewNopPublisher()
	}
	s := &WalletService{
		cfg:       deps.Config,
		store:     deps.Store,
		codec:     deps.Codec,
		session:   deps.Session,
		guard:     deps.Guard,
		fees:      deps.Fees,
		submitter: deps.Submitter,
		network:   deps.Network,
		history:   deps.History,
		publisher: publisher,
		pusher:    deps.Pusher,
		logger:    deps.Logger,
		networkID: deps.Config.DefaultNetwork,
	}
	s.session.OnLock(s.onLock)
	return s
}

func (s *WalletService) onLock() {
	s.mu.Lock()
	s.lastResult = nil
	s.mu.Unlock()

	s.publisher.Publish(events.SessionLocked, events.SessionEvent{Timestamp: time.Now().UTC()})
	if s.pusher != nil {
		s.pusher.PushSessionLocked()
	}
}

// ============================================
// Session
// ============================================

func (s *WalletService) CreateVault(ctx context.Context, password []byte) error {
	if err := s.session.CreateVault(ctx, password); err != nil {
		return err
	}
	s.publisher.Publish(events.SessionUnlocked, events.SessionEvent{Reason: "vault_created", Timestamp: time.Now().UTC()})
	return nil
}

func (s *WalletService) Unlock(ctx context.Context, password []byte) error {
	if err := s.session.Unlock(ctx, password); err != nil {
		return err
	}
	s.publisher.Publish(events.SessionUnlocked, events.SessionEvent{Reason: "password", Timestamp: time.Now().UTC()})
	return nil
}

// Lock clears every secret; lock hooks publish the event
func (s *WalletService) Lock() {
	s.session.Lock()
}

func (s *WalletService) Status() SessionStatus {
	return s.session.Status()
}

// VerifyPassword true when password matches the open session
func (s *WalletService) VerifyPassword(password []byte) bool {
	return s.session.VerifyPassword(password)
}

// ============================================
// Wallets
// ============================================

// CreateWallet generates a 12-word mnemonic wallet and makes it active
func (s *WalletService) CreateWallet(ctx context.Context, label string) (*WalletSecrets, error) {
	if !s.session.Status().Unlocked {
		return nil, apperrors.ErrLocked
	}
	derived, err := GenerateMnemonicKey()
	if err != nil {
		return nil, apperrors.Signing("failed to generate key", err)
	}
	defer wipeKey(derived.PrivateKey)

	return s.persistNew(ctx, label, "Wallet", derived, "generated")
}

// ImportWallet validates the input fully before anything is written
func (s *WalletService) ImportWallet(ctx context.Context, req ImportRequest) (*WalletSecrets, error) {
	if !s.session.Status().Unlocked {
		return nil, apperrors.ErrLocked
	}

	var (
		derived *DerivedKey
		source  string
		err     error
	)
	switch {
	case strings.TrimSpace(req.SeedPhrase) != "":
		derived, err = KeyFromMnemonic(req.SeedPhrase)
		source = "seed_phrase"
	case strings.TrimSpace(req.PrivateKey) != "":
		derived, err = KeyFromPrivateKeyHex(req.PrivateKey)
		source = "private_key"
	default:
		return nil, apperrors.Validation("private_key", "private key or seed phrase is required")
	}
	if err != nil {
		return nil, err
	}
	defer wipeKey(derived.PrivateKey)

	return s.persistNew(ctx, req.Label, "Imported wallet", derived, source)
}

// persistNew encrypts under the session password, proves the blob decrypts back to the
// same address, stores the record and activates it
func (s *WalletService) persistNew(ctx context.Context, label, labelPrefix string, derived *DerivedKey, source string) (*WalletSecrets, error) {
	password, err := s.session.Password()
	if err != nil {
		return nil, err
	}
	defer clear(password)

	label = strings.TrimSpace(label)
	if label == "" {
		records, err := s.store.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		label = fmt.Sprintf("%s %d", labelPrefix, len(records)+1)
	}

	raw := crypto.FromECDSA(derived.PrivateKey)
	defer clear(raw)

	secret, err := s.codec.Encrypt(raw, password)
	if err != nil {
		return nil, apperrors.Storage("failed to encrypt wallet secret", err)
	}
	if err := s.verifyBlob(secret, password, derived.Address); err != nil {
		return nil, err
	}

	record := &models.WalletRecord{
		ID:              uuid.NewString(),
		Label:           label,
		Address:         derived.Address.Hex(),
		EncryptedSecret: secret,
		CreatedAt:       time.Now().UTC(),
	}
	if derived.Mnemonic != "" {
		seed, err := s.codec.Encrypt([]byte(derived.Mnemonic), password)
		if err != nil {
			return nil, apperrors.Storage("failed to encrypt seed phrase", err)
		}
		record.HasSeedPhrase = true
		record.EncryptedSeedPhrase = seed
	}

	if err := s.store.Put(ctx, record); err != nil {
		return nil, err
	}
	if err := s.session.Activate(record, derived.PrivateKey); err != nil {
		return nil, err
	}

	metrics.WalletsCreated.WithLabelValues(source).Inc()
	s.logger.WithFields(logrus.Fields{
		"wallet_id": record.ID,
		"source":    source,
	}).Info("👛 [Wallet] wallet stored and activated")
	s.publisher.Publish(events.WalletCreated, events.WalletEvent{
		WalletID:  record.ID,
		Address:   record.Address,
		Label:     record.Label,
		Timestamp: record.CreatedAt,
	})

	return &WalletSecrets{
		WalletID:   record.ID,
		Label:      record.Label,
		Address:    record.Address,
		PrivateKey: "0x" + hex.EncodeToString(raw),
		SeedPhrase: derived.Mnemonic,
	}, nil
}

// verifyBlob decrypts a fresh blob and compares the recovered address
func (s *WalletService) verifyBlob(blob, password []byte, want common.Address) error {
	raw, err := s.codec.Decrypt(blob, password)
	if err != nil {
		return apperrors.Storage("encrypted secret does not decrypt", err)
	}
	defer clear(raw)

	key, err := keyFromRaw(raw)
	if err != nil {
		return apperrors.Storage("encrypted secret is not a signing key", err)
	}
	defer wipeKey(key)
	if crypto.PubkeyToAddress(key.PublicKey) != want {
		return apperrors.Storage("encrypted secret does not match wallet address", nil)
	}
	return nil
}

// ListWallets most recent first
func (s *WalletService) ListWallets(ctx context.Context) ([]WalletSummary, error) {
	records, err := s.store.GetAll(ctx)
	if err != nil {
		return nil, err
	}
	active := s.session.Status().ActiveWalletID
	out := make([]WalletSummary, 0, len(records))
	for _, r := range records {
		out = append(out, WalletSummary{
			ID:            r.ID,
			Label:         r.Label,
			Address:       r.Address,
			HasSeedPhrase: r.HasSeedPhrase,
			CreatedAt:     r.CreatedAt,
			Active:        r.ID == active,
		})
	}
	return out, nil
}

func (s *WalletService) RenameWallet(ctx context.Context, id, label string) error {
	if !s.session.Status().Unlocked {
		return apperrors.ErrLocked
	}
	label = strings.TrimSpace(label)
	if label == "" {
		return apperrors.Validation("label", "label must not be empty")
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	record.Label = label
	return s.store.Put(ctx, record)
}

// DeleteWallet removes a record. Deleting the active wallet activates the most recent remaining one.
func (s *WalletService) DeleteWallet(ctx context.Context, id string) error {
	status := s.session.Status()
	if !status.Unlocked {
		return apperrors.ErrLocked
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.publisher.Publish(events.WalletDeleted, events.WalletEvent{
		WalletID:  record.ID,
		Address:   record.Address,
		Timestamp: time.Now().UTC(),
	})

	if status.ActiveWalletID != id {
		return nil
	}
	remaining, err := s.store.GetAll(ctx)
	if err != nil {
		s.session.ClearActive()
		return err
	}
	if len(remaining) == 0 {
		s.session.ClearActive()
		return nil
	}
	if err := s.session.SwitchActiveWallet(ctx, remaining[0].ID); err != nil {
		s.logger.WithFields(logrus.Fields{
			"wallet_id": remaining[0].ID,
			"error":     err,
		}).Warn("⚠️ [Wallet] could not activate next wallet after delete")
	}
	return nil
}

func (s *WalletService) SwitchWallet(ctx context.Context, id string) error {
	return s.session.SwitchActiveWallet(ctx, id)
}

// RevealSecret backup display, re-checks the password first
func (s *WalletService) RevealSecret(ctx context.Context, id string, password []byte) (*WalletSecrets, error) {
	if !s.session.VerifyPassword(password) {
		return nil, apperrors.Auth(errors.New("reveal password mismatch"))
	}
	record, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	raw, err := s.codec.Decrypt(record.EncryptedSecret, password)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	secrets := &WalletSecrets{
		WalletID:   record.ID,
		Label:      record.Label,
		Address:    record.Address,
		PrivateKey: "0x" + hex.EncodeToString(raw),
	}
	if record.HasSeedPhrase {
		seed, err := s.codec.Decrypt(record.EncryptedSeedPhrase, password)
		if err != nil {
			return nil, err
		}
		secrets.SeedPhrase = string(seed)
		clear(seed)
	}
	return secrets, nil
}

// ============================================
// Networks
// ============================================

func (s *WalletService) Networks() []config.NetworkConfig {
	return s.cfg.EnabledNetworks()
}

// SelectNetwork switches the target network; an in-flight submission becomes stale
func (s *WalletService) SelectNetwork(id string) (*config.NetworkConfig, error) {
	network, err := s.cfg.GetNetworkConfig(id)
	if err != nil {
		return nil, apperrors.Validation("network", "unknown or disabled network")
	}

	s.mu.Lock()
	s.networkID = network.ID
	s.mu.Unlock()
	s.guard.Invalidate()

	s.logger.WithField("network", network.ID).Info("🌐 [Wallet] network selected")
	s.publisher.Publish(events.NetworkSelected, events.NetworkEvent{
		Network:   network.ID,
		ChainID:   network.ChainID,
		Timestamp: time.Now().UTC(),
	})
	return network, nil
}

func (s *WalletService) CurrentNetwork() *config.NetworkConfig {
	s.mu.Lock()
	id := s.networkID
	s.mu.Unlock()

	network, err := s.cfg.GetNetworkConfig(id)
	if err != nil {
		network, _ = s.cfg.GetNetworkConfig(s.cfg.DefaultNetwork)
	}
	return network
}

// ============================================
// Transfers
// ============================================

// SubmitTransfer at most one submission runs at a time; a second call is rejected
// before any network traffic. Only a result whose token is still current is applied.
func (s *WalletService) SubmitTransfer(ctx context.Context, draft models.TransferDraft) (*models.TransferResult, error) {
	tok, err := s.guard.Begin()
	if err != nil {
		return nil, err
	}
	defer s.guard.End(tok)

	result, err := s.submitter.Submit(ctx, tok, s.CurrentNetwork(), draft)
	if err != nil {
		return nil, err
	}
	if result.Status == models.TransferSuperseded || !s.apply(tok, result) {
		result.Status = models.TransferSuperseded
		return result, nil
	}

	s.publisher.Publish(events.TransferSubmitted, events.TransferEvent{TransferResult: *result, Timestamp: time.Now().UTC()})
	if s.pusher != nil {
		s.pusher.PushTransferResult(result)
	}
	return result, nil
}

func (s *WalletService) apply(tok SubmissionToken, result *models.TransferResult) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.guard.IsStale(tok) {
		return false
	}
	applied := *result
	s.lastResult = &applied
	return true
}

// LastResult most recent applied transfer, nil if none since unlock
func (s *WalletService) LastResult() *models.TransferResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lastResult == nil {
		return nil
	}
	out := *s.lastResult
	return &out
}

// QuoteFees prices a draft for the active wallet without signing
func (s *WalletService) QuoteFees(ctx context.Context, draft models.TransferDraft) (*models.FeeQuote, error) {
	from, to, amount, err := s.quoteInputs(draft)
	if err != nil {
		return nil, err
	}
	speed := draft.Speed
	if speed == "" {
		speed = models.Speed(s.cfg.Fees.DefaultSpeed)
	}
	return s.fees.Quote(ctx, s.CurrentNetwork(), from, to, amount, speed, draft.ForceKind)
}

// CompareFees slow, standard and fast quotes from one fee snapshot
func (s *WalletService) CompareFees(ctx context.Context, draft models.TransferDraft) ([]*models.FeeQuote, error) {
	from, to, amount, err := s.quoteInputs(draft)
	if err != nil {
		return nil, err
	}
	return s.fees.Compare(ctx, s.CurrentNetwork(), from, to, amount)
}

func (s *WalletService) quoteInputs(draft models.TransferDraft) (common.Address, common.Address, *big.Int, error) {
	status := s.session.Status()
	if !status.Unlocked {
		return common.Address{}, common.Address{}, nil, apperrors.ErrLocked
	}
	if status.ActiveAddress == "" {
		return common.Address{}, common.Address{}, nil, apperrors.ErrNoActiveKey
	}
	to, ok := utils.ParseRecipient(draft.To)
	if !ok {
		return common.Address{}, common.Address{}, nil, apperrors.Validation("to", "invalid recipient")
	}
	amount, err := utils.ParseEther(draft.Amount)
	if err != nil {
		return common.Address{}, common.Address{}, nil, apperrors.Validation("amount", "invalid amount")
	}
	return common.HexToAddress(status.ActiveAddress), to, amount, nil
}

func (s *WalletService) TransactionStatus(ctx context.Context, hash string) (models.ReceiptStatus, error) {
	return s.submitter.TransactionStatus(ctx, s.CurrentNetwork(), hash)
}

// ============================================
// Read-only display
// ============================================

// Balance of address, or of the active wallet when address is empty
func (s *WalletService) Balance(ctx context.Context, address string) BalanceView {
	if address == "" {
		address = s.session.Status().ActiveAddress
	}
	network := s.CurrentNetwork()
	balance := "0"
	if address != "" {
		balance = s.network.Balance(ctx, network, address)
	}

	price := s.network.PriceUSD(network.ID)
	view := BalanceView{
		Address:  address,
		Network:  network.ID,
		Symbol:   network.NativeSymbol,
		Balance:  balance,
		PriceUSD: price,
	}
	if amount, err := strconv.ParseFloat(balance, 64); err == nil {
		view.ValueUSD = amount * price
	}
	return view
}

func (s *WalletService) NetworkPulse(ctx context.Context) models.NetworkPulse {
	return s.network.Pulse(ctx, s.CurrentNetwork())
}

// History of the active wallet, empty when none is active
func (s *WalletService) History(ctx context.Context, limit int) []models.HistoryItem {
	address := s.session.Status().ActiveAddress
	if address == "" {
		return []models.HistoryItem{}
	}
	return s.history.History(ctx, s.CurrentNetwork(), address, limit)
}
