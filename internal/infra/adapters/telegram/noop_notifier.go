package telegram

import (
	"context"

	"github.com/rs/zerolog"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
)

var _ adapter.OpsNotifier = (*NoopNotifier)(nil)

// NoopNotifier logs instead of sending when no bot is configured.
type NoopNotifier struct {
	log *zerolog.Logger
}

func NewNoopNotifier(logger *zerolog.Logger) *NoopNotifier {
	l := logger.With().Str("component", "NoopNotifier").Logger()
	return &NoopNotifier{log: &l}
}

func (n *NoopNotifier) NotifyReconciliation(ctx context.Context, item *model.ReconciliationItem) error {
	n.log.Info().Str("reason", string(item.Reason)).Str("transfer_ref", item.TransferRef).
		Int64("received", item.ReceivedAmount).Msg("[noop-telegram] reconciliation item")
	return nil
}

func (n *NoopNotifier) NotifySettled(ctx context.Context, p *model.PaymentRequest) error {
	n.log.Info().Str("payment_id", p.ID).Str("kind", string(p.Kind)).Msg("[noop-telegram] settled")
	return nil
}
