package model

import "time"

// IncomingTransfer is a credit observed on the settlement account.
type IncomingTransfer struct {
	Reference     string    `json:"reference"`
	AccountNumber string    `json:"account_number"`
	Amount        int64     `json:"amount"`
	Description   string    `json:"description"`
	ReceivedAt    time.Time `json:"received_at"`
}

// SettlementOutcome is what a settlement check reports for one request.
type SettlementOutcome string

const (
	OutcomePending        SettlementOutcome = "pending"
	OutcomeSettled        SettlementOutcome = "settled"
	OutcomeExpired        SettlementOutcome = "expired"
	OutcomeAmountMismatch SettlementOutcome = "amount_mismatch"
)

// SettlementSignal carries the evidence for applying a settlement.
type SettlementSignal struct {
	TransferRef string
	Amount      int64
	ReceivedAt  time.Time
	Source      string // poll | push | manual
}
