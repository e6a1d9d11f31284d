package dto

// ==================== Wallet DTOs ====================

// CreateWalletRequest label defaults to "Wallet N"
type CreateWalletRequest struct {
	Label string `json:"label"`
}

// ImportWalletRequest seed_phrase wins when both are present
type ImportWalletRequest struct {
	Label      string `json:"label"`
	PrivateKey string `json:"private_key"`
	SeedPhrase string `json:"seed_phrase"`
}

// RenameWalletRequest label is trimmed and must not be empty
type RenameWalletRequest struct {
	Label string `json:"label" binding:"required"`
}

// NetworkResponse one configured network
type NetworkResponse struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ChainID      int64  `json:"chain_id"`
	Explorer     string `json:"explorer,omitempty"`
	NativeSymbol string `json:"native_symbol"`
	Selected     bool   `json:"selected"`
}
