package services

import (
	"context"
	"io"
	"math/big"
	"sync"
	"testing"

	"walletd/internal/clients"
	"walletd/internal/config"
	"walletd/internal/keycodec"
	"walletd/internal/repository"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/sirupsen/logrus"
)

// fakeChain in-memory ChainRPC. Hooks run inside the matching call, before it returns,
// so tests can change session state at a suspension point.
type fakeChain struct {
	mu sync.Mutex

	chainID *big.Int
	balance *big.Int
	nonce   uint64
	fee     *clients.FeeData
	gas     uint64
	block   uint64

	feeErr     error
	gasErr     error
	balanceErr error
	nonceErr   error
	sendErr    error

	onBalance func()
	onNonce   func()
	onSend    func()

	calls    map[string]int
	sent     []*types.Transaction
	receipts map[common.Hash]*types.Receipt
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		chainID: big.NewInt(testNetwork().ChainID),
		balance: new(big.Int).Mul(big.NewInt(10), big.NewInt(1e18)),
		fee: &clients.FeeData{
			GasPrice:             big.NewInt(20),
			BaseFee:              big.NewInt(14),
			MaxFeePerGas:         big.NewInt(30),
			MaxPriorityFeePerGas: big.NewInt(2),
		},
		gas:      21000,
		block:    100,
		calls:    make(map[string]int),
		receipts: make(map[common.Hash]*types.Receipt),
	}
}

func (f *fakeChain) record(name string) {
	f.mu.Lock()
	f.calls[name]++
	f.mu.Unlock()
}

func (f *fakeChain) count(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[name]
}

func (f *fakeChain) totalCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		n += c
	}
	return n
}

func (f *fakeChain) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.chainID), nil
}

func (f *fakeChain) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	f.record("BalanceAt")
	if f.onBalance != nil {
		f.onBalance()
	}
	if f.balanceErr != nil {
		return nil, f.balanceErr
	}
	return new(big.Int).Set(f.balance), nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.record("PendingNonceAt")
	if f.onNonce != nil {
		f.onNonce()
	}
	return f.nonce, f.nonceErr
}

func (f *fakeChain) FeeData(ctx context.Context) (*clients.FeeData, error) {
	f.record("FeeData")
	if f.feeErr != nil {
		return nil, f.feeErr
	}
	return f.fee, nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.record("EstimateGas")
	return f.gas, f.gasErr
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.record("SendTransaction")
	if f.onSend != nil {
		f.onSend()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if f.sendErr != nil {
		return f.sendErr
	}
	f.mu.Lock()
	f.sent = append(f.sent, tx)
	f.mu.Unlock()
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.record("TransactionReceipt")
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *fakeChain) BlockNumber(ctx context.Context) (uint64, error) {
	f.record("BlockNumber")
	return f.block, nil
}

func (f *fakeChain) Close() {}

func (f *fakeChain) sentTxs() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Transaction(nil), f.sent...)
}

func testNetwork() *config.NetworkConfig {
	return &config.NetworkConfig{
		ID:           "eth-sepolia",
		Name:         "Ethereum Sepolia",
		ChainID:      11155111,
		RPCEndpoints: []string{"fake://sepolia"},
		NativeSymbol: "ETH",
		Enabled:      true,
	}
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testClientCache(chain *fakeChain) *clients.ClientCache {
	return clients.NewClientCache(func(ctx context.Context, endpoint string) (clients.ChainRPC, error) {
		return chain, nil
	}, testLogger())
}

// harness wires the core services over a fake chain and an in-memory store
type harness struct {
	chain     *fakeChain
	store     repository.WalletRecordStore
	codec     *keycodec.Codec
	guard     *SubmissionGuard
	session   *SessionManager
	fees      *FeeEstimator
	submitter *TransactionSubmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	chain := newFakeChain()
	store := repository.NewMemWalletStore()
	t.Cleanup(func() { _ = store.Close() })

	logger := testLogger()
	codec := keycodec.New(keycodec.LightParams)
	guard := NewSubmissionGuard()
	session := NewSessionManager(store, codec, guard, logger, DefaultMinPasswordLength)
	cache := testClientCache(chain)
	fees := NewFeeEstimator(cache, logger)
	submitter := NewTransactionSubmitter(cache, fees, session, guard, logger, "")

	return &harness{
		chain:     chain,
		store:     store,
		codec:     codec,
		guard:     guard,
		session:   session,
		fees:      fees,
		submitter: submitter,
	}
}
