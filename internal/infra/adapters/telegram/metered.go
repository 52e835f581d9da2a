package telegram

import (
	"context"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
	"companion-billing/internal/infra/metrics"
)

// Metered counts settled revenue on its way to the wrapped notifier.
// NotifySettled fires once per committed settlement, so the counter does not
// double count concurrent poll and push signals.
type Metered struct {
	adapter.OpsNotifier
}

func NewMetered(n adapter.OpsNotifier) *Metered { return &Metered{OpsNotifier: n} }

func (m *Metered) NotifySettled(ctx context.Context, p *model.PaymentRequest) error {
	if p != nil {
		metrics.AddSettledRevenue(string(p.Kind), p.Amount)
	}
	return m.OpsNotifier.NotifySettled(ctx, p)
}
