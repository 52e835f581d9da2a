package model

import "time"

type ReconciliationReason string

const (
	ReconcileAmountMismatch    ReconciliationReason = "amount_mismatch"
	ReconcileExpiredSettlement ReconciliationReason = "expired_settlement"
	ReconcileUnmatchedCode     ReconciliationReason = "unmatched_code"
	ReconcileDuplicate         ReconciliationReason = "duplicate_transfer"
	ReconcileActivationFailed  ReconciliationReason = "activation_failed"
)

// ReconciliationItem is a transfer that reached the account but could not be
// applied automatically. Operators resolve it by hand (refund or manual grant).
type ReconciliationItem struct {
	ID               string               `json:"id"`
	TransferRef      string               `json:"transfer_ref"`
	PaymentRequestID *string              `json:"payment_request_id,omitempty"`
	Reason           ReconciliationReason `json:"reason"`
	ExpectedAmount   int64                `json:"expected_amount"`
	ReceivedAmount   int64                `json:"received_amount"`
	Description      string               `json:"description"`
	ReceivedAt       time.Time            `json:"received_at"`
	CreatedAt        time.Time            `json:"created_at"`
	ResolvedAt       *time.Time           `json:"resolved_at,omitempty"`
	Resolution       *string              `json:"resolution,omitempty"`
}
