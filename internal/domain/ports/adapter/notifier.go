package adapter

import (
	"context"

	"companion-billing/internal/domain/model"
)

// OpsNotifier pushes operator-facing alerts. Delivery is best effort.
type OpsNotifier interface {
	NotifyReconciliation(ctx context.Context, item *model.ReconciliationItem) error
	NotifySettled(ctx context.Context, p *model.PaymentRequest) error
}
