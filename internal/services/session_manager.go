package services

import (
	"context"
	"crypto/ecdsa"
	"crypto/subtle"
	"errors"
	"fmt"
	"os/signal"
	"sync"
	"syscall"

	"walletd/internal/apperrors"
	"walletd/internal/keycodec"
	"walletd/internal/metrics"
	"walletd/internal/models"
	"walletd/internal/repository"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"
)

// DefaultMinPasswordLength shortest accepted vault password
const DefaultMinPasswordLength = 6

// SessionStatus public view of the session, no secret material
type SessionStatus struct {
	Unlocked       bool   `json:"unlocked"`
	ActiveWalletID string `json:"active_wallet_id,omitempty"`
	ActiveAddress  string `json:"active_address,omitempty"`
}

// SessionSnapshot per-operation copy of the active signing material.
// Holders must call Wipe when done and re-check Epoch with IsCurrent after every suspension.
type SessionSnapshot struct {
	WalletID string
	Address  common.Address
	Key      *ecdsa.PrivateKey
	Epoch    uint64
}

// Wipe zeroes the snapshot's key copy
func (s *SessionSnapshot) Wipe() {
	if s == nil {
		return
	}
	wipeKey(s.Key)
	s.Key = nil
}

// SessionManager owns the in-memory secrets: password, active signing key and active wallet.
// Nothing it holds is ever persisted. Every change of the active key bumps the epoch and
// invalidates the submission guard.
type SessionManager struct {
	store             repository.WalletRecordStore
	codec             *keycodec.Codec
	guard             *SubmissionGuard
	logger            *logrus.Logger
	minPasswordLength int

	mu       sync.Mutex
	unlocked bool
	password []byte
	key      *ecdsa.PrivateKey
	walletID string
	address  common.Address
	epoch    uint64
	onLock   []func()
}

// NewSessionManager creates a locked session
func NewSessionManager(store repository.WalletRecordStore, codec *keycodec.Codec, guard *SubmissionGuard, logger *logrus.Logger, minPasswordLength int) *SessionManager {
	if minPasswordLength <= 0 {
		minPasswordLength = DefaultMinPasswordLength
	}
	return &SessionManager{
		store:             store,
		codec:             codec,
		guard:             guard,
		logger:            logger,
		minPasswordLength: minPasswordLength,
	}
}

// OnLock registers fn to run synchronously after every lock
func (m *SessionManager) OnLock(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLock = append(m.onLock, fn)
}

// CreateVault opens a fresh session with no wallets. Refused once records exist, since
// they are encrypted under the existing password.
func (m *SessionManager) CreateVault(ctx context.Context, password []byte) error {
	if len(password) < m.minPasswordLength {
		return apperrors.Validation("password", fmt.Sprintf("password must be at least %d characters", m.minPasswordLength))
	}
	records, err := m.store.GetAll(ctx)
	if err != nil {
		return err
	}
	if len(records) > 0 {
		return apperrors.Validation("password", "vault already exists, unlock it instead")
	}

	m.mu.Lock()
	m.clearLocked()
	m.password = append([]byte(nil), password...)
	m.unlocked = true
	m.mu.Unlock()

	metrics.SessionUnlocked.Set(1)
	m.logger.Info("🔐 [Session] vault created")
	return nil
}

// Unlock verifies password against the most recent record. Any failure is the same AuthError.
func (m *SessionManager) Unlock(ctx context.Context, password []byte) error {
	records, err := m.store.GetAll(ctx)
	if err != nil {
		metrics.UnlockAttempts.WithLabelValues("storage_error").Inc()
		return err
	}
	if len(records) == 0 {
		metrics.UnlockAttempts.WithLabelValues("auth_error").Inc()
		return apperrors.Auth(errors.New("no wallet records to verify against"))
	}

	record := records[0]
	key, err := m.openRecord(record, password)
	if err != nil {
		metrics.UnlockAttempts.WithLabelValues("auth_error").Inc()
		m.logger.Warn("⚠️ [Session] unlock failed")
		return apperrors.Auth(err)
	}

	m.mu.Lock()
	m.clearLocked()
	m.password = append([]byte(nil), password...)
	m.key = key
	m.walletID = record.ID
	m.address = common.HexToAddress(record.Address)
	m.unlocked = true
	m.mu.Unlock()

	metrics.UnlockAttempts.WithLabelValues("success").Inc()
	metrics.SessionUnlocked.Set(1)
	m.logger.WithField("wallet_id", record.ID).Info("🔓 [Session] unlocked")
	return nil
}

// Lock zeroes password and key synchronously. Lock hooks run only on the unlocked to
// locked transition.
func (m *SessionManager) Lock() {
	m.lock("user")
}

func (m *SessionManager) lock(reason string) {
	m.mu.Lock()
	wasUnlocked := m.unlocked
	m.clearLocked()
	hooks := append([]func(){}, m.onLock...)
	m.mu.Unlock()

	metrics.SessionUnlocked.Set(0)
	if !wasUnlocked {
		return
	}
	for _, fn := range hooks {
		fn()
	}
	metrics.SessionLocks.WithLabelValues(reason).Inc()
	m.logger.WithField("reason", reason).Info("🔒 [Session] locked")
}

// clearLocked caller holds mu
func (m *SessionManager) clearLocked() {
	clear(m.password)
	m.password = nil
	wipeKey(m.key)
	m.key = nil
	m.walletID = ""
	m.address = common.Address{}
	m.unlocked = false
	m.epoch++
	m.guard.Invalidate()
}

// SwitchActiveWallet drops the current key first, then decrypts the target with the session
// password. On failure the session stays unlocked with no active key.
func (m *SessionManager) SwitchActiveWallet(ctx context.Context, walletID string) error {
	m.mu.Lock()
	if !m.unlocked {
		m.mu.Unlock()
		return apperrors.ErrLocked
	}
	m.dropKeyLocked()
	password := append([]byte(nil), m.password...)
	epoch := m.epoch
	m.mu.Unlock()
	defer clear(password)

	record, err := m.store.Get(ctx, walletID)
	if err != nil {
		return apperrors.Session("cannot activate wallet", err)
	}
	key, err := m.openRecord(record, password)
	if err != nil {
		return apperrors.Session("cannot activate wallet: secret does not decrypt under the session password", err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked || m.epoch != epoch {
		wipeKey(key)
		return apperrors.Session("session changed while switching wallet", nil)
	}
	m.key = key
	m.walletID = record.ID
	m.address = common.HexToAddress(record.Address)

	m.logger.WithField("wallet_id", record.ID).Info("🔁 [Session] active wallet switched")
	return nil
}

// Activate makes a just-verified key active without a second decrypt
func (m *SessionManager) Activate(record *models.WalletRecord, key *ecdsa.PrivateKey) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return apperrors.ErrLocked
	}
	m.dropKeyLocked()
	m.key = copyKey(key)
	m.walletID = record.ID
	m.address = common.HexToAddress(record.Address)
	return nil
}

// ClearActive removes the active key, the session stays unlocked
func (m *SessionManager) ClearActive() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dropKeyLocked()
}

// dropKeyLocked caller holds mu
func (m *SessionManager) dropKeyLocked() {
	wipeKey(m.key)
	m.key = nil
	m.walletID = ""
	m.address = common.Address{}
	m.epoch++
	m.guard.Invalidate()
}

// Snapshot copies the active signing material for one operation
func (m *SessionManager) Snapshot() (*SessionSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return nil, apperrors.ErrLocked
	}
	if m.key == nil {
		return nil, apperrors.ErrNoActiveKey
	}
	return &SessionSnapshot{
		WalletID: m.walletID,
		Address:  m.address,
		Key:      copyKey(m.key),
		Epoch:    m.epoch,
	}, nil
}

// IsCurrent true while nothing changed the active key since the snapshot at epoch
func (m *SessionManager) IsCurrent(epoch uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocked && m.key != nil && m.epoch == epoch
}

// Password copy of the session password, caller clears it
func (m *SessionManager) Password() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.unlocked {
		return nil, apperrors.ErrLocked
	}
	return append([]byte(nil), m.password...), nil
}

// VerifyPassword constant-time comparison with the session password
func (m *SessionManager) VerifyPassword(password []byte) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.unlocked && subtle.ConstantTimeCompare(m.password, password) == 1
}

// Status no secret material
func (m *SessionManager) Status() SessionStatus {
	m.mu.Lock()
	defer m.mu.Unlock()
	status := SessionStatus{Unlocked: m.unlocked}
	if m.key != nil {
		status.ActiveWalletID = m.walletID
		status.ActiveAddress = m.address.Hex()
	}
	return status
}

// BindTeardown locks the session when ctx ends or the process receives SIGINT/SIGTERM.
// The returned stop releases the signal handler.
func (m *SessionManager) BindTeardown(ctx context.Context) (stop func()) {
	sigCtx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCtx.Done()
		m.lock("teardown")
	}()
	return cancel
}

// Close locks the session, safe to call more than once
func (m *SessionManager) Close() {
	m.lock("teardown")
}

// openRecord decrypts a record and checks the key matches its stored address
func (m *SessionManager) openRecord(record *models.WalletRecord, password []byte) (*ecdsa.PrivateKey, error) {
	raw, err := m.codec.Decrypt(record.EncryptedSecret, password)
	if err != nil {
		return nil, err
	}
	defer clear(raw)

	key, err := keyFromRaw(raw)
	if err != nil {
		return nil, apperrors.Auth(err)
	}
	if crypto.PubkeyToAddress(key.PublicKey) != common.HexToAddress(record.Address) {
		wipeKey(key)
		return nil, apperrors.Auth(errors.New("decrypted key does not match record address"))
	}
	return key, nil
}

func copyKey(key *ecdsa.PrivateKey) *ecdsa.PrivateKey {
	if key == nil {
		return nil
	}
	raw := crypto.FromECDSA(key)
	defer clear(raw)
	dup, err := crypto.ToECDSA(raw)
	if err != nil {
		return nil
	}
	return dup
}

func wipeKey(key *ecdsa.PrivateKey) {
	if key == nil || key.D == nil {
		return
	}
	words := key.D.Bits()
	for i := range words {
		words[i] = 0
	}
	key.D.SetInt64(0)
}
