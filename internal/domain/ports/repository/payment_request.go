package repository

import (
	"context"
	"time"

	"companion-billing/internal/domain/model"
)

// PaymentRequestRepository persists payment requests. Every status change goes
// through a compare-and-set that only fires from pending.
type PaymentRequestRepository interface {
	Save(ctx context.Context, tx Tx, p *model.PaymentRequest) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.PaymentRequest, error)
	// FindPending returns the live request for the (subject, kind, target) tuple or ErrNotFound.
	FindPending(ctx context.Context, tx Tx, subjectID string, kind model.ProductKind, target string) (*model.PaymentRequest, error)
	// FindLatestByCode prefers a pending request, then the most recent one carrying code.
	FindLatestByCode(ctx context.Context, tx Tx, code string) (*model.PaymentRequest, error)
	// CodeInUse reports whether a pending request already carries code.
	CodeInUse(ctx context.Context, tx Tx, code string) (bool, error)
	ListPending(ctx context.Context, tx Tx, limit int) ([]*model.PaymentRequest, error)

	// LockTuple serializes creates for one (subject, kind, target) until tx ends.
	LockTuple(ctx context.Context, tx Tx, subjectID string, kind model.ProductKind, target string) error

	// MarkSettledIfPending is the settlement CAS. It returns false when the row
	// was no longer pending.
	MarkSettledIfPending(ctx context.Context, tx Tx, id string, settledAt time.Time, transferRef string) (bool, error)
	// MarkExpiredIfPending is the expiry CAS.
	MarkExpiredIfPending(ctx context.Context, tx Tx, id string) (bool, error)
	// MarkFailedIfPending is the operator-cancel CAS.
	MarkFailedIfPending(ctx context.Context, tx Tx, id string, reason string) (bool, error)
	// ExpirePendingBefore bulk-expires pending rows whose window ended before cutoff.
	ExpirePendingBefore(ctx context.Context, tx Tx, cutoff time.Time, limit int) (int, error)
}
