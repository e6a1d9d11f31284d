package dto

// ==================== Transfer DTOs ====================

// TransferRequest note stays on this machine and is never sent to the chain
type TransferRequest struct {
	To        string `json:"to" binding:"required"`
	Amount    string `json:"amount" binding:"required"` // decimal, native unit
	Note      string `json:"note"`
	Speed     string `json:"speed"`      // slow | standard | fast
	ForceKind string `json:"force_kind"` // legacy | eip1559
}

// FeeQuoteResponse wei values as decimal strings plus display units
type FeeQuoteResponse struct {
	Kind     string `json:"kind"`
	Speed    string `json:"speed"`
	GasLimit uint64 `json:"gas_limit"`

	GasPrice     string `json:"gas_price,omitempty"`
	GasPriceGwei string `json:"gas_price_gwei,omitempty"`

	MaxFeePerGas             string `json:"max_fee_per_gas,omitempty"`
	MaxFeePerGasGwei         string `json:"max_fee_per_gas_gwei,omitempty"`
	MaxPriorityFeePerGas     string `json:"max_priority_fee_per_gas,omitempty"`
	MaxPriorityFeePerGasGwei string `json:"max_priority_fee_per_gas_gwei,omitempty"`

	EstimatedCost      string `json:"estimated_cost"`
	EstimatedCostEther string `json:"estimated_cost_ether"`
}

// ErrorResponse every failed request
type ErrorResponse struct {
	Error             string `json:"error"`
	Code              string `json:"code"`
	Field             string `json:"field,omitempty"`
	Required          string `json:"required,omitempty"`  // wei
	Balance           string `json:"balance,omitempty"`   // wei
	Shortfall         string `json:"shortfall,omitempty"` // wei
	RetryAfterSeconds int    `json:"retry_after_seconds,omitempty"`
}
