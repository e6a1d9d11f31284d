package models

import (
	"math/big"
	"time"
)

// TxKind fee model of a transaction
type TxKind string

const (
	TxKindLegacy  TxKind = "legacy"
	TxKindEIP1559 TxKind = "eip1559"
)

// Speed fee tier
type Speed string

const (
	SpeedSlow     Speed = "slow"
	SpeedStandard Speed = "standard"
	SpeedFast     Speed = "fast"
)

// Speeds in ascending fee order
var Speeds = []Speed{SpeedSlow, SpeedStandard, SpeedFast}

// Multiplier percentage applied to the network fee
func (s Speed) Multiplier() (int64, bool) {
	switch s {
	case SpeedSlow:
		return 80, true
	case SpeedStandard:
		return 100, true
	case SpeedFast:
		return 120, true
	}
	return 0, false
}

// FeeQuote exactly one fee shape is populated, matching Kind.
type FeeQuote struct {
	Kind     TxKind
	Speed    Speed
	GasLimit uint64

	GasPrice *big.Int // legacy

	MaxFeePerGas         *big.Int // eip1559
	MaxPriorityFeePerGas *big.Int // eip1559

	EstimatedCost *big.Int
}

// FeePerGas price used for the cost bound
func (q *FeeQuote) FeePerGas() *big.Int {
	if q.Kind == TxKindEIP1559 {
		return q.MaxFeePerGas
	}
	return q.GasPrice
}

// TransferDraft user input for a native transfer. Note stays local.
type TransferDraft struct {
	To        string
	Amount    string // decimal, native unit
	Note      string
	Speed     Speed
	ForceKind TxKind
}

// AttemptStatus submission attempt outcome
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "pending"
	AttemptConfirmed  AttemptStatus = "confirmed"
	AttemptFailed     AttemptStatus = "failed"
	AttemptSuperseded AttemptStatus = "superseded"
)

// SubmissionAttempt one run of the submitter, identified by its generation token
type SubmissionAttempt struct {
	ID        string
	Network   string
	Status    AttemptStatus
	StartedAt time.Time
}

// TransferStatus broadcast outcome. Success means accepted by the node, not finalized.
type TransferStatus string

const (
	TransferSuccess    TransferStatus = "success"
	TransferSuperseded TransferStatus = "superseded"
	// signed and sent, but the node's answer was lost; check the hash before sending again
	TransferUnconfirmed TransferStatus = "unconfirmed"
)

// TransferResult outcome of a broadcast
type TransferResult struct {
	Hash      string         `json:"hash"`
	From      string         `json:"from"`
	To        string         `json:"to"`
	Value     string         `json:"value"` // decimal, native unit
	Network   string         `json:"network"`
	Status    TransferStatus `json:"status"`
	AttemptID string         `json:"attempt_id"`
}

// ReceiptStatus follow-up state of a broadcast transaction
type ReceiptStatus string

const (
	ReceiptPending   ReceiptStatus = "pending"
	ReceiptConfirmed ReceiptStatus = "confirmed"
	ReceiptFailed    ReceiptStatus = "failed"
)

// Direction of a history row relative to the wallet
type Direction string

const (
	DirectionSent     Direction = "sent"
	DirectionReceived Direction = "received"
)

// HistoryItem explorer row, read-only
type HistoryItem struct {
	Hash        string    `json:"hash"`
	From        string    `json:"from"`
	To          string    `json:"to"`
	Value       string    `json:"value"`     // decimal, native unit
	Timestamp   int64     `json:"timestamp"` // milliseconds
	BlockNumber uint64    `json:"block_number"`
	Direction   Direction `json:"direction"`
}

// NetworkPulse current chain activity snapshot
type NetworkPulse struct {
	Network     string `json:"network"`
	BlockNumber uint64 `json:"block_number"`
	GasPrice    string `json:"gas_price"` // ether
	BaseFee     string `json:"base_fee"`  // ether
}
