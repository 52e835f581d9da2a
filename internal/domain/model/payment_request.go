package model

import (
	"crypto/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending" // QR issued, awaiting transfer
	PaymentStatusSettled PaymentStatus = "settled" // transfer matched, entitlement applied
	PaymentStatusExpired PaymentStatus = "expired" // window elapsed without a valid settlement
	PaymentStatusFailed  PaymentStatus = "failed"  // cancelled by an operator
)

// Terminal reports whether no further transitions are allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusSettled || s == PaymentStatusExpired || s == PaymentStatusFailed
}

// BankAccount is the platform's settlement account, snapshotted onto each request.
type BankAccount struct {
	BankCode      string `json:"bank_code" yaml:"bank_code"`
	BankBIN       string `json:"bank_bin" yaml:"bank_bin"`
	AccountNumber string `json:"account_number" yaml:"account_number"`
	AccountName   string `json:"account_name" yaml:"account_name"`
}

type BankDeeplink struct {
	BankID      string `json:"bank_id"`
	DeeplinkURL string `json:"deeplink_url"`
}

// PaymentRequest is one purchase attempt. Amount and Code never change after
// creation; Status moves out of pending at most once.
type PaymentRequest struct {
	ID                  string
	Kind                ProductKind
	TargetEntitlementID string // tier code or package name
	SubjectID           string
	Amount              int64
	Code                string
	QRPayload           string
	BankDeeplinks       []BankDeeplink
	AccountInfo         BankAccount
	CreatedAt           time.Time
	ExpiresAt           time.Time
	Status              PaymentStatus
	SettledAt           *time.Time
	TransferRef         *string // rail reference of the settling transfer
	FailureReason       *string
	UpdatedAt           time.Time
}

// NewPaymentRequestID returns a lexicographically sortable opaque id.
func NewPaymentRequestID(now time.Time) string {
	return ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
}

// ExpiredAt reports whether the window is over at t. The boundary instant
// itself still belongs to the window.
func (p *PaymentRequest) ExpiredAt(t time.Time) bool {
	return t.After(p.ExpiresAt)
}

// StatusView is what the client-facing status query returns.
type StatusView struct {
	ID        string        `json:"id"`
	Status    PaymentStatus `json:"status"`
	ExpiresAt time.Time     `json:"expires_at"`
	SettledAt *time.Time    `json:"settled_at,omitempty"`
}

func (p *PaymentRequest) View() StatusView {
	return StatusView{ID: p.ID, Status: p.Status, ExpiresAt: p.ExpiresAt, SettledAt: p.SettledAt}
}
