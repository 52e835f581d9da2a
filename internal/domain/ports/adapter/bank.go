package adapter

import (
	"context"
	"time"

	"companion-billing/internal/domain/model"
)

// BankingRail reads incoming credits on the settlement account. Latency and
// ordering are not guaranteed; callers must tolerate duplicates.
type BankingRail interface {
	Name() string
	FindIncomingTransfers(ctx context.Context, account model.BankAccount, since time.Time) ([]model.IncomingTransfer, error)
}

// TransferInstructions renders what a payer needs to send money: the QR payload
// and app deeplinks for a given account, amount and transfer description.
type TransferInstructions interface {
	QRPayload(account model.BankAccount, amount int64, description string) (string, error)
	Deeplinks(account model.BankAccount, amount int64, description string) []model.BankDeeplink
}
