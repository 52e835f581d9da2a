package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ ReconciliationUseCase = (*reconciliationUC)(nil)

// ReconciliationUseCase parks transfers that could not be applied
// automatically. Nothing here moves money; operators refund or grant by hand.
type ReconciliationUseCase interface {
	// Record is idempotent per (transfer reference, reason). Operators are
	// alerted only for new items.
	Record(ctx context.Context, item *model.ReconciliationItem) (bool, error)
	ListOpen(ctx context.Context, limit int) ([]*model.ReconciliationItem, error)
	Resolve(ctx context.Context, id, resolution string) error
}

type reconciliationUC struct {
	repo     repository.ReconciliationRepository
	notifier adapter.OpsNotifier // optional
	log      *zerolog.Logger
	now      func() time.Time
}

func NewReconciliationUseCase(repo repository.ReconciliationRepository, notifier adapter.OpsNotifier, logger *zerolog.Logger) *reconciliationUC {
	l := logger.With().Str("component", "reconciliation").Logger()
	return &reconciliationUC{repo: repo, notifier: notifier, log: &l, now: time.Now}
}

func (u *reconciliationUC) Record(ctx context.Context, item *model.ReconciliationItem) (bool, error) {
	if item == nil || item.TransferRef == "" || item.Reason == "" {
		return false, domain.ErrInvalidArgument
	}
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	if item.CreatedAt.IsZero() {
		item.CreatedAt = u.now()
	}
	created, err := u.repo.Record(ctx, repository.NoTX, item)
	if err != nil {
		return false, err
	}
	if !created {
		return false, nil
	}
	ev := u.log.Warn().
		Str("transfer_ref", item.TransferRef).
		Str("reason", string(item.Reason)).
		Int64("expected", item.ExpectedAmount).
		Int64("received", item.ReceivedAmount)
	if item.PaymentRequestID != nil {
		ev = ev.Str("payment_request_id", *item.PaymentRequestID)
	}
	ev.Msg("transfer parked for reconciliation")

	if u.notifier != nil {
		if err := u.notifier.NotifyReconciliation(ctx, item); err != nil {
			u.log.Warn().Err(err).Str("transfer_ref", item.TransferRef).Msg("reconciliation alert failed")
		}
	}
	return true, nil
}

func (u *reconciliationUC) ListOpen(ctx context.Context, limit int) ([]*model.ReconciliationItem, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	return u.repo.ListOpen(ctx, repository.NoTX, limit)
}

func (u *reconciliationUC) Resolve(ctx context.Context, id, resolution string) error {
	resolution = strings.TrimSpace(resolution)
	if id == "" || resolution == "" {
		return domain.ErrInvalidArgument
	}
	if err := u.repo.Resolve(ctx, repository.NoTX, id, resolution, u.now()); err != nil {
		return err
	}
	u.log.Info().Str("item_id", id).Str("resolution", resolution).Msg("reconciliation item resolved")
	return nil
}
