package clients

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"walletd/internal/config"
)

// ExplorerClient Etherscan v2 account API client (multi-chain via chainid)
type ExplorerClient struct {
	BaseURL string
	APIKey  string
	Client  *http.Client
}

// ExplorerTx one row of module=account&action=txlist
type ExplorerTx struct {
	Hash        string `json:"hash"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"` // wei
	TimeStamp   string `json:"timeStamp"`
	BlockNumber string `json:"blockNumber"`
}

type explorerResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Result  json.RawMessage `json:"result"`
}

// NewExplorerClient timeout from configuration, 30 seconds by default
func NewExplorerClient(cfg config.ExplorerConfig) *ExplorerClient {
	timeout := 30 * time.Second
	if cfg.Timeout > 0 {
		timeout = time.Duration(cfg.Timeout) * time.Second
	}
	return &ExplorerClient{
		BaseURL: cfg.BaseURL,
		APIKey:  cfg.APIKey,
		Client:  &http.Client{Timeout: timeout},
	}
}

// TxList newest first. A status other than "1" (including "No transactions found") is an empty list.
func (c *ExplorerClient) TxList(ctx context.Context, chainID int64, address string, limit int) ([]ExplorerTx, error) {
	params := url.Values{}
	params.Set("chainid", strconv.FormatInt(chainID, 10))
	params.Set("module", "account")
	params.Set("action", "txlist")
	params.Set("address", address)
	params.Set("startblock", "0")
	params.Set("endblock", "99999999")
	params.Set("page", "1")
	params.Set("offset", strconv.Itoa(limit))
	params.Set("sort", "desc")
	if c.APIKey != "" {
		params.Set("apikey", c.APIKey)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API request failed with status %d: %s", resp.StatusCode, string(body))
	}

	var result explorerResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if result.Status != "1" {
		return nil, nil
	}

	var rows []ExplorerTx
	if err := json.Unmarshal(result.Result, &rows); err != nil {
		return nil, fmt.Errorf("failed to unmarshal txlist: %w", err)
	}
	return rows, nil
}
