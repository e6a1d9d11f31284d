package clients

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"walletd/internal/apperrors"
	"walletd/internal/config"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/params"
	"github.com/sirupsen/logrus"
)

// DefaultPriorityFee used when the node cannot suggest a tip
var DefaultPriorityFee = big.NewInt(params.GWei)

// FeeData raw fee fields reported by a node. Max* are nil on networks without a base fee.
type FeeData struct {
	GasPrice             *big.Int
	BaseFee              *big.Int
	MaxFeePerGas         *big.Int
	MaxPriorityFeePerGas *big.Int
}

// SupportsEIP1559 both dynamic fee fields are present
func (f *FeeData) SupportsEIP1559() bool {
	return f != nil && f.MaxFeePerGas != nil && f.MaxPriorityFeePerGas != nil
}

// ChainRPC the subset of the JSON-RPC surface the wallet uses
type ChainRPC interface {
	ChainID(ctx context.Context) (*big.Int, error)
	BalanceAt(ctx context.Context, account common.Address) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	FeeData(ctx context.Context) (*FeeData, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	BlockNumber(ctx context.Context) (uint64, error)
	Close()
}

// ethChainClient ChainRPC over go-ethereum's ethclient
type ethChainClient struct {
	client *ethclient.Client
}

// DialChainRPC connects to a JSON-RPC endpoint
func DialChainRPC(ctx context.Context, endpoint string) (ChainRPC, error) {
	client, err := ethclient.DialContext(ctx, endpoint)
	if err != nil {
		return nil, err
	}
	return &ethChainClient{client: client}, nil
}

func (c *ethChainClient) ChainID(ctx context.Context) (*big.Int, error) {
	return c.client.ChainID(ctx)
}

func (c *ethChainClient) BalanceAt(ctx context.Context, account common.Address) (*big.Int, error) {
	return c.client.BalanceAt(ctx, account, nil)
}

func (c *ethChainClient) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return c.client.PendingNonceAt(ctx, account)
}

// FeeData derives dynamic fees from the latest base fee: maxFee = 2*baseFee + tip.
// The tip comes from eth_maxPriorityFeePerGas, 1 gwei if the node does not answer it.
func (c *ethChainClient) FeeData(ctx context.Context) (*FeeData, error) {
	header, err := c.client.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest header: %w", err)
	}

	data := &FeeData{}
	gasPrice, err := c.client.SuggestGasPrice(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get gas price: %w", err)
	}
	data.GasPrice = gasPrice

	if header.BaseFee != nil {
		tip, err := c.client.SuggestGasTipCap(ctx)
		if err != nil || tip == nil {
			tip = new(big.Int).Set(DefaultPriorityFee)
		}
		data.BaseFee = new(big.Int).Set(header.BaseFee)
		data.MaxPriorityFeePerGas = tip
		data.MaxFeePerGas = new(big.Int).Add(new(big.Int).Mul(header.BaseFee, big.NewInt(2)), tip)
	}
	return data, nil
}

func (c *ethChainClient) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return c.client.EstimateGas(ctx, msg)
}

func (c *ethChainClient) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	return c.client.SendTransaction(ctx, tx)
}

func (c *ethChainClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return c.client.TransactionReceipt(ctx, txHash)
}

func (c *ethChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	return c.client.BlockNumber(ctx)
}

func (c *ethChainClient) Close() {
	c.client.Close()
}

// DialFunc opens a ChainRPC for an endpoint
type DialFunc func(ctx context.Context, endpoint string) (ChainRPC, error)

// ClientCache reuses one connection per endpoint for the process lifetime.
// A freshly dialed endpoint must report the configured chain id before it is cached.
// The endpoint a network resolved to is remembered until evicted, and an endpoint that
// failed to dial is skipped for failureBackoff.
type ClientCache struct {
	mu             sync.Mutex
	clients        map[string]ChainRPC
	resolved       map[string]string
	failedAt       map[string]time.Time
	dial           DialFunc
	dialTimeout    time.Duration
	failureBackoff time.Duration
	now            func() time.Time
	logger         *logrus.Logger
}

// NewClientCache nil dial uses DialChainRPC
func NewClientCache(dial DialFunc, logger *logrus.Logger) *ClientCache {
	if dial == nil {
		dial = DialChainRPC
	}
	return &ClientCache{
		clients:        make(map[string]ChainRPC),
		resolved:       make(map[string]string),
		failedAt:       make(map[string]time.Time),
		dial:           dial,
		dialTimeout:    10 * time.Second,
		failureBackoff: 30 * time.Second,
		now:            time.Now,
		logger:         logger,
	}
}

// Get returns a client for the network, trying endpoints in order. Dialing happens
// outside the cache lock.
func (c *ClientCache) Get(ctx context.Context, network *config.NetworkConfig) (ChainRPC, error) {
	if network == nil || len(network.RPCEndpoints) == 0 {
		return nil, apperrors.Network("network has no rpc endpoint", nil)
	}

	if client, ok := c.lookup(network); ok {
		return client, nil
	}

	var lastErr error
	for _, endpoint := range network.RPCEndpoints {
		if client, ok := c.cached(network.ID, endpoint); ok {
			return client, nil
		}
		if c.backingOff(endpoint) {
			continue
		}

		client, err := c.connect(ctx, endpoint, network.ChainID)
		if err != nil {
			c.markFailed(endpoint)
			c.logger.WithFields(logrus.Fields{
				"network":  network.ID,
				"endpoint": endpoint,
				"error":    err,
			}).Warn("[ClientCache] endpoint unusable, trying next")
			lastErr = err
			continue
		}

		client = c.store(network.ID, endpoint, client)
		c.logger.WithFields(logrus.Fields{
			"network":  network.ID,
			"endpoint": endpoint,
			"chain_id": network.ChainID,
		}).Info("[ClientCache] connected")
		return client, nil
	}
	if lastErr == nil {
		return nil, apperrors.Network("every rpc endpoint failed recently", nil)
	}
	return nil, TranslateRPCError(lastErr)
}

func (c *ClientCache) lookup(network *config.NetworkConfig) (ChainRPC, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	endpoint, ok := c.resolved[network.ID]
	if !ok {
		return nil, false
	}
	client, ok := c.clients[endpoint]
	return client, ok
}

func (c *ClientCache) cached(networkID, endpoint string) (ChainRPC, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	client, ok := c.clients[endpoint]
	if ok {
		c.resolved[networkID] = endpoint
	}
	return client, ok
}

func (c *ClientCache) backingOff(endpoint string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	at, ok := c.failedAt[endpoint]
	return ok && c.now().Sub(at) < c.failureBackoff
}

func (c *ClientCache) markFailed(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.failedAt[endpoint] = c.now()
}

// store keeps the first client cached for endpoint; a concurrent loser is closed
func (c *ClientCache) store(networkID, endpoint string, client ChainRPC) ChainRPC {
	c.mu.Lock()
	defer c.mu.Unlock()
	if existing, ok := c.clients[endpoint]; ok {
		client.Close()
		client = existing
	} else {
		c.clients[endpoint] = client
	}
	delete(c.failedAt, endpoint)
	c.resolved[networkID] = endpoint
	return client
}

func (c *ClientCache) connect(ctx context.Context, endpoint string, chainID int64) (ChainRPC, error) {
	dialCtx, cancel := context.WithTimeout(ctx, c.dialTimeout)
	defer cancel()

	client, err := c.dial(dialCtx, endpoint)
	if err != nil {
		return nil, err
	}
	reported, err := client.ChainID(dialCtx)
	if err != nil {
		client.Close()
		return nil, err
	}
	if reported.Cmp(big.NewInt(chainID)) != 0 {
		client.Close()
		return nil, apperrors.Network(fmt.Sprintf("endpoint reports chain id %s, expected %d", reported, chainID), nil)
	}
	return client, nil
}

// Evict drops a cached endpoint so the next Get walks the endpoint list again
func (c *ClientCache) Evict(endpoint string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if client, ok := c.clients[endpoint]; ok {
		client.Close()
		delete(c.clients, endpoint)
	}
	for networkID, resolved := range c.resolved {
		if resolved == endpoint {
			delete(c.resolved, networkID)
		}
	}
}

// Close closes every cached client
func (c *ClientCache) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for endpoint, client := range c.clients {
		client.Close()
		delete(c.clients, endpoint)
	}
	clear(c.resolved)
	clear(c.failedAt)
}
