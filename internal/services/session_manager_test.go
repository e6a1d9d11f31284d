package services

import (
	"context"
	"crypto/ecdsa"
	"testing"
	"time"

	"walletd/internal/apperrors"
	"walletd/internal/models"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPassword = "abcdef"

// seedWallet stores a record encrypted under password, created at the given offset from now
func seedWallet(t *testing.T, h *harness, password string, age time.Duration) (*models.WalletRecord, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	blob, err := h.codec.Encrypt(crypto.FromECDSA(key), []byte(password))
	require.NoError(t, err)

	record := &models.WalletRecord{
		ID:              uuid.NewString(),
		Label:           "seeded",
		Address:         crypto.PubkeyToAddress(key.PublicKey).Hex(),
		EncryptedSecret: blob,
		CreatedAt:       time.Now().Add(-age),
	}
	require.NoError(t, h.store.Put(context.Background(), record))
	return record, key
}

func TestCreateVaultPasswordLength(t *testing.T) {
	h := newHarness(t)

	err := h.session.CreateVault(context.Background(), []byte("abc"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.False(t, h.session.Status().Unlocked)

	require.NoError(t, h.session.CreateVault(context.Background(), []byte(testPassword)))
	status := h.session.Status()
	assert.True(t, status.Unlocked)
	assert.Empty(t, status.ActiveWalletID)

	_, err = h.session.Snapshot()
	assert.ErrorIs(t, err, apperrors.ErrNoActiveKey)
}

func TestCreateVaultRefusedWhenRecordsExist(t *testing.T) {
	h := newHarness(t)
	seedWallet(t, h, testPassword, 0)

	err := h.session.CreateVault(context.Background(), []byte("another-password"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestUnlockUsesMostRecentRecord(t *testing.T) {
	h := newHarness(t)
	seedWallet(t, h, testPassword, time.Hour)
	recent, key := seedWallet(t, h, testPassword, 0)

	require.NoError(t, h.session.Unlock(context.Background(), []byte(testPassword)))
	status := h.session.Status()
	assert.Equal(t, recent.ID, status.ActiveWalletID)
	assert.Equal(t, recent.Address, status.ActiveAddress)

	snap, err := h.session.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 0, key.D.Cmp(snap.Key.D))
	assert.NotSame(t, key, snap.Key)
}

func TestUnlockFailuresAreIndistinguishable(t *testing.T) {
	h := newHarness(t)

	err := h.session.Unlock(context.Background(), []byte(testPassword))
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth), "no records")

	record, _ := seedWallet(t, h, testPassword, 0)
	wrongPw := h.session.Unlock(context.Background(), []byte("wrong-password"))
	require.Error(t, wrongPw)

	// a record whose ciphertext decrypts to a different key than its address
	other, err := crypto.GenerateKey()
	require.NoError(t, err)
	record.Address = crypto.PubkeyToAddress(other.PublicKey).Hex()
	require.NoError(t, h.store.Put(context.Background(), record))
	mismatch := h.session.Unlock(context.Background(), []byte(testPassword))
	require.Error(t, mismatch)

	for _, err := range []error{wrongPw, mismatch} {
		assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))
		assert.Equal(t, "auth_error: "+apperrors.AuthFailedMessage, err.Error())
	}
	assert.False(t, h.session.Status().Unlocked)
}

func TestLockClearsSecrets(t *testing.T) {
	h := newHarness(t)
	seedWallet(t, h, testPassword, 0)
	require.NoError(t, h.session.Unlock(context.Background(), []byte(testPassword)))

	tok, err := h.guard.Begin()
	require.NoError(t, err)

	locked := 0
	h.session.OnLock(func() { locked++ })

	h.session.mu.Lock()
	heldKey := h.session.key
	heldPassword := h.session.password
	h.session.mu.Unlock()

	h.session.Lock()

	assert.Equal(t, 1, locked)
	assert.Equal(t, 0, heldKey.D.Sign(), "key scalar must be zeroed")
	assert.Equal(t, make([]byte, len(heldPassword)), heldPassword, "password bytes must be zeroed")
	assert.True(t, h.guard.IsStale(tok))

	h.session.mu.Lock()
	assert.Nil(t, h.session.key)
	assert.Nil(t, h.session.password)
	h.session.mu.Unlock()

	_, err = h.session.Snapshot()
	assert.True(t, apperrors.IsKind(err, apperrors.KindSession))
	_, err = h.session.Password()
	assert.True(t, apperrors.IsKind(err, apperrors.KindSession))
	assert.False(t, h.session.VerifyPassword([]byte(testPassword)))
}

func TestLockHooksRunOncePerUnlock(t *testing.T) {
	h := newHarness(t)
	seedWallet(t, h, testPassword, 0)

	locked := 0
	h.session.OnLock(func() { locked++ })

	h.session.Lock()
	assert.Zero(t, locked, "locking a locked session is silent")

	require.NoError(t, h.session.Unlock(context.Background(), []byte(testPassword)))
	h.session.Lock()
	h.session.Close()
	h.session.Lock()
	assert.Equal(t, 1, locked)

	require.NoError(t, h.session.Unlock(context.Background(), []byte(testPassword)))
	h.session.Close()
	assert.Equal(t, 2, locked)
}

func TestSwitchActiveWallet(t *testing.T) {
	h := newHarness(t)
	first, _ := seedWallet(t, h, testPassword, time.Hour)
	seedWallet(t, h, testPassword, 0)
	foreign, _ := seedWallet(t, h, "someone-else", 2*time.Hour)

	err := h.session.SwitchActiveWallet(context.Background(), first.ID)
	assert.ErrorIs(t, err, apperrors.ErrLocked)

	require.NoError(t, h.session.Unlock(context.Background(), []byte(testPassword)))
	before, err := h.session.Snapshot()
	require.NoError(t, err)

	require.NoError(t, h.session.SwitchActiveWallet(context.Background(), first.ID))
	assert.Equal(t, first.ID, h.session.Status().ActiveWalletID)
	assert.False(t, h.session.IsCurrent(before.Epoch))

	err = h.session.SwitchActiveWallet(context.Background(), foreign.ID)
	assert.True(t, apperrors.IsKind(err, apperrors.KindSession))
	status := h.session.Status()
	assert.True(t, status.Unlocked)
	assert.Empty(t, status.ActiveWalletID, "the previous key must not survive a failed switch")
	_, err = h.session.Snapshot()
	assert.ErrorIs(t, err, apperrors.ErrNoActiveKey)

	err = h.session.SwitchActiveWallet(context.Background(), "missing")
	assert.True(t, apperrors.IsKind(err, apperrors.KindSession))
}

func TestCloseAndTeardownLock(t *testing.T) {
	h := newHarness(t)
	seedWallet(t, h, testPassword, 0)
	require.NoError(t, h.session.Unlock(context.Background(), []byte(testPassword)))

	ctx, cancel := context.WithCancel(context.Background())
	stop := h.session.BindTeardown(ctx)
	defer stop()
	cancel()

	assert.Eventually(t, func() bool { return !h.session.Status().Unlocked }, time.Second, 5*time.Millisecond)

	h.session.Close()
	h.session.Close()
	assert.False(t, h.session.Status().Unlocked)
}
