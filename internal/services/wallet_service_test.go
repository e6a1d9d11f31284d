package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"walletd/internal/apperrors"
	"walletd/internal/clients"
	"walletd/internal/config"
	"walletd/internal/events"
	"walletd/internal/models"
	"walletd/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const abandonMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"

type fakePusher struct {
	mu      sync.Mutex
	results []*models.TransferResult
	locks   int
}

func (p *fakePusher) PushTransferResult(result *models.TransferResult) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.results = append(p.results, result)
}

func (p *fakePusher) PushSessionLocked() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.locks++
}

func (p *fakePusher) pushed() []*models.TransferResult {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*models.TransferResult(nil), p.results...)
}

type fakeLister struct {
	rows  []clients.ExplorerTx
	err   error
	calls int
}

func (l *fakeLister) TxList(ctx context.Context, chainID int64, address string, limit int) ([]clients.ExplorerTx, error) {
	l.calls++
	return l.rows, l.err
}

type walletHarness struct {
	*harness
	wallet   *WalletService
	recorder *events.Recorder
	pusher   *fakePusher
	lister   *fakeLister
}

func newWalletHarness(t *testing.T) *walletHarness {
	t.Helper()
	h := newHarness(t)

	cfg := config.Default()
	sepolia := cfg.Networks["eth-sepolia"]
	sepolia.RPCEndpoints = testNetwork().RPCEndpoints
	cfg.Networks["eth-sepolia"] = sepolia

	logger := testLogger()
	cache := testClientCache(h.chain)
	recorder := &events.Recorder{}
	pusher := &fakePusher{}
	lister := &fakeLister{}

	wallet := NewWalletService(WalletServiceDeps{
		Config:    cfg,
		Store:     h.store,
		Codec:     h.codec,
		Session:   h.session,
		Guard:     h.guard,
		Fees:      h.fees,
		Submitter: h.submitter,
		Network:   NewNetworkService(cache, logger),
		History:   NewHistoryService(lister, logger, 0),
		Publisher: recorder,
		Pusher:    pusher,
		Logger:    logger,
	})
	return &walletHarness{harness: h, wallet: wallet, recorder: recorder, pusher: pusher, lister: lister}
}

func openVault(t *testing.T, w *walletHarness) {
	t.Helper()
	require.NoError(t, w.wallet.CreateVault(context.Background(), []byte(testPassword)))
}

func TestCreateWalletThenLockAndUnlock(t *testing.T) {
	w := newWalletHarness(t)
	ctx := context.Background()

	_, err := w.wallet.CreateWallet(ctx, "")
	assert.ErrorIs(t, err, apperrors.ErrLocked)

	openVault(t, w)
	created, err := w.wallet.CreateWallet(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, "Wallet 1", created.Label)
	assert.Len(t, strings.Fields(created.SeedPhrase), 12)

	fromSeed, err := KeyFromMnemonic(created.SeedPhrase)
	require.NoError(t, err)
	assert.Equal(t, fromSeed.Address.Hex(), created.Address)
	assert.Equal(t, created.WalletID, w.wallet.Status().ActiveWalletID)

	record, err := w.store.Get(ctx, created.WalletID)
	require.NoError(t, err)
	assert.True(t, record.HasSeedPhrase)
	assert.NotContains(t, string(record.EncryptedSecret), strings.TrimPrefix(created.PrivateKey, "0x"))

	w.wallet.Lock()
	assert.False(t, w.wallet.Status().Unlocked)
	assert.Equal(t, 1, w.pusher.locks)

	err = w.wallet.Unlock(ctx, []byte("not-the-password"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))

	require.NoError(t, w.wallet.Unlock(ctx, []byte(testPassword)))
	status := w.wallet.Status()
	assert.Equal(t, created.WalletID, status.ActiveWalletID)
	assert.Equal(t, created.Address, status.ActiveAddress)

	assert.Equal(t, []string{
		events.SessionUnlocked,
		events.WalletCreated,
		events.SessionLocked,
		events.SessionUnlocked,
	}, w.recorder.Names())
}

func TestImportWallet(t *testing.T) {
	w := newWalletHarness(t)
	ctx := context.Background()
	openVault(t, w)

	invalid := []ImportRequest{
		{},
		{PrivateKey: "0x1234"},
		{SeedPhrase: "abandon abandon abandon"},
		{SeedPhrase: strings.Replace(abandonMnemonic, "about", "abandon", 1)},
	}
	for _, req := range invalid {
		_, err := w.wallet.ImportWallet(ctx, req)
		assert.True(t, apperrors.IsKind(err, apperrors.KindValidation), "%+v: %v", req, err)
	}
	records, err := w.store.GetAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, records, "rejected imports must not write")

	imported, err := w.wallet.ImportWallet(ctx, ImportRequest{SeedPhrase: "  ABANDON " + strings.TrimPrefix(abandonMnemonic, "abandon") + "\n"})
	require.NoError(t, err)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", imported.Address)
	assert.Equal(t, "Imported wallet 1", imported.Label)
	assert.Equal(t, abandonMnemonic, imported.SeedPhrase)

	byKey, err := w.wallet.ImportWallet(ctx, ImportRequest{Label: " savings ", PrivateKey: strings.TrimPrefix(imported.PrivateKey, "0x")})
	require.NoError(t, err)
	assert.Equal(t, "savings", byKey.Label)
	assert.Equal(t, imported.Address, byKey.Address)
	assert.Empty(t, byKey.SeedPhrase)
	assert.Equal(t, byKey.WalletID, w.wallet.Status().ActiveWalletID)
}

func TestStoredRecordsMatchTheirCiphertext(t *testing.T) {
	w := newWalletHarness(t)
	ctx := context.Background()
	openVault(t, w)

	for i := 0; i < 3; i++ {
		_, err := w.wallet.CreateWallet(ctx, "")
		require.NoError(t, err)
	}
	records, err := w.store.GetAll(ctx)
	require.NoError(t, err)
	require.Len(t, records, 3)
	for _, r := range records {
		key, err := w.session.openRecord(r, []byte(testPassword))
		require.NoError(t, err, r.ID)
		wipeKey(key)
	}
}

func TestRenameAndDeleteWallets(t *testing.T) {
	w := newWalletHarness(t)
	ctx := context.Background()
	openVault(t, w)

	first, err := w.wallet.CreateWallet(ctx, "first")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	second, err := w.wallet.CreateWallet(ctx, "second")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	third, err := w.wallet.CreateWallet(ctx, "third")
	require.NoError(t, err)

	err = w.wallet.RenameWallet(ctx, first.WalletID, "   ")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	require.NoError(t, w.wallet.RenameWallet(ctx, first.WalletID, "  renamed "))
	err = w.wallet.RenameWallet(ctx, "missing", "x")
	assert.ErrorIs(t, err, repository.ErrRecordNotFound)

	require.NoError(t, w.wallet.SwitchWallet(ctx, first.WalletID))
	list, err := w.wallet.ListWallets(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, third.WalletID, list[0].ID)
	assert.Equal(t, "renamed", list[2].Label)
	assert.True(t, list[2].Active)

	// deleting a non-active wallet keeps the selection
	require.NoError(t, w.wallet.DeleteWallet(ctx, second.WalletID))
	assert.Equal(t, first.WalletID, w.wallet.Status().ActiveWalletID)

	// deleting the active wallet selects the most recent remaining one
	require.NoError(t, w.wallet.DeleteWallet(ctx, first.WalletID))
	assert.Equal(t, third.WalletID, w.wallet.Status().ActiveWalletID)

	require.NoError(t, w.wallet.DeleteWallet(ctx, third.WalletID))
	status := w.wallet.Status()
	assert.True(t, status.Unlocked)
	assert.Empty(t, status.ActiveWalletID)

	assert.ErrorIs(t, w.wallet.DeleteWallet(ctx, third.WalletID), repository.ErrRecordNotFound)
}

func TestRevealSecret(t *testing.T) {
	w := newWalletHarness(t)
	ctx := context.Background()
	openVault(t, w)

	created, err := w.wallet.CreateWallet(ctx, "")
	require.NoError(t, err)

	_, err = w.wallet.RevealSecret(ctx, created.WalletID, []byte("wrong-password"))
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))

	revealed, err := w.wallet.RevealSecret(ctx, created.WalletID, []byte(testPassword))
	require.NoError(t, err)
	assert.Equal(t, created.PrivateKey, revealed.PrivateKey)
	assert.Equal(t, created.SeedPhrase, revealed.SeedPhrase)

	w.wallet.Lock()
	_, err = w.wallet.RevealSecret(ctx, created.WalletID, []byte(testPassword))
	assert.True(t, apperrors.IsKind(err, apperrors.KindAuth))
}

func unlockedWallet(t *testing.T) *walletHarness {
	t.Helper()
	w := newWalletHarness(t)
	openVault(t, w)
	_, err := w.wallet.CreateWallet(context.Background(), "")
	require.NoError(t, err)
	return w
}

func TestSubmitTransferAppliesResult(t *testing.T) {
	w := unlockedWallet(t)

	result, err := w.wallet.SubmitTransfer(context.Background(), models.TransferDraft{To: recipient, Amount: "0.25"})
	require.NoError(t, err)
	assert.Equal(t, models.TransferSuccess, result.Status)

	last := w.wallet.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, result.Hash, last.Hash)
	assert.Equal(t, []*models.TransferResult{result}, w.pusher.pushed())
	assert.Contains(t, w.recorder.Names(), events.TransferSubmitted)
	assert.False(t, w.guard.InFlight())
}

func TestSecondSubmissionRejectedWhileInFlight(t *testing.T) {
	w := unlockedWallet(t)
	entered := make(chan struct{})
	release := make(chan struct{})
	w.chain.onBalance = func() {
		close(entered)
		<-release
	}

	done := make(chan error, 1)
	go func() {
		_, err := w.wallet.SubmitTransfer(context.Background(), models.TransferDraft{To: recipient, Amount: "0.1"})
		done <- err
	}()
	<-entered

	callsBefore := w.chain.totalCalls()
	_, err := w.wallet.SubmitTransfer(context.Background(), models.TransferDraft{To: recipient, Amount: "0.1"})
	assert.ErrorIs(t, err, apperrors.ErrAlreadySubmitting)
	assert.Equal(t, callsBefore, w.chain.totalCalls(), "the rejected submission must not touch the network")

	w.chain.onBalance = nil
	close(release)
	require.NoError(t, <-done)
	assert.Len(t, w.chain.sentTxs(), 1)
}

func TestNetworkSwitchDiscardsInFlightResult(t *testing.T) {
	w := unlockedWallet(t)
	w.chain.onSend = func() {
		_, err := w.wallet.SelectNetwork("base-sepolia")
		assert.NoError(t, err)
	}

	result, err := w.wallet.SubmitTransfer(context.Background(), models.TransferDraft{To: recipient, Amount: "0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.TransferSuperseded, result.Status)
	assert.NotEmpty(t, result.Hash)

	assert.Nil(t, w.wallet.LastResult())
	assert.Empty(t, w.pusher.pushed())
	assert.NotContains(t, w.recorder.Names(), events.TransferSubmitted)
	assert.Equal(t, "base-sepolia", w.wallet.CurrentNetwork().ID)
}

func TestUnconfirmedTransferKeepsHash(t *testing.T) {
	w := unlockedWallet(t)
	w.chain.sendErr = context.DeadlineExceeded

	result, err := w.wallet.SubmitTransfer(context.Background(), models.TransferDraft{To: recipient, Amount: "0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.TransferUnconfirmed, result.Status)

	last := w.wallet.LastResult()
	require.NotNil(t, last)
	assert.Equal(t, result.Hash, last.Hash)
	assert.Equal(t, models.TransferUnconfirmed, last.Status)
	assert.False(t, w.guard.InFlight())
}

func TestSelectNetwork(t *testing.T) {
	w := newWalletHarness(t)

	_, err := w.wallet.SelectNetwork("mainnet")
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
	assert.Equal(t, "eth-sepolia", w.wallet.CurrentNetwork().ID)

	network, err := w.wallet.SelectNetwork("poly-amoy")
	require.NoError(t, err)
	assert.Equal(t, int64(80002), network.ChainID)
	assert.Equal(t, "poly-amoy", w.wallet.CurrentNetwork().ID)
	assert.Len(t, w.wallet.Networks(), 3)
}

func TestQuoteAndCompareFees(t *testing.T) {
	w := newWalletHarness(t)
	ctx := context.Background()

	_, err := w.wallet.QuoteFees(ctx, models.TransferDraft{To: recipient, Amount: "1"})
	assert.ErrorIs(t, err, apperrors.ErrLocked)

	openVault(t, w)
	_, err = w.wallet.QuoteFees(ctx, models.TransferDraft{To: recipient, Amount: "1"})
	assert.ErrorIs(t, err, apperrors.ErrNoActiveKey)

	_, err = w.wallet.CreateWallet(ctx, "")
	require.NoError(t, err)

	q, err := w.wallet.QuoteFees(ctx, models.TransferDraft{To: recipient, Amount: "1", Speed: models.SpeedFast})
	require.NoError(t, err)
	assert.Equal(t, models.SpeedFast, q.Speed)

	quotes, err := w.wallet.CompareFees(ctx, models.TransferDraft{To: recipient, Amount: "1"})
	require.NoError(t, err)
	assert.Len(t, quotes, 3)

	_, err = w.wallet.CompareFees(ctx, models.TransferDraft{To: "nope", Amount: "1"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
}

func TestBalanceAndHistoryForActiveWallet(t *testing.T) {
	w := newWalletHarness(t)
	ctx := context.Background()

	assert.Equal(t, "0", w.wallet.Balance(ctx, "").Balance)
	assert.Empty(t, w.wallet.History(ctx, 10))
	assert.Zero(t, w.lister.calls)

	openVault(t, w)
	created, err := w.wallet.CreateWallet(ctx, "")
	require.NoError(t, err)

	view := w.wallet.Balance(ctx, "")
	assert.Equal(t, created.Address, view.Address)
	assert.Equal(t, "10", view.Balance)
	assert.Equal(t, "ETH", view.Symbol)
	assert.Equal(t, 30000.0, view.ValueUSD)

	w.lister.rows = []clients.ExplorerTx{{
		Hash: "0xaa", From: strings.ToLower(created.Address), To: recipient,
		Value: "1000000000000000000", TimeStamp: "1700000000", BlockNumber: "5",
	}}
	items := w.wallet.History(ctx, 10)
	require.Len(t, items, 1)
	assert.Equal(t, models.DirectionSent, items[0].Direction)

	assert.Equal(t, uint64(100), w.wallet.NetworkPulse(ctx).BlockNumber)
}
