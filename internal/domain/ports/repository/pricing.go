package repository

import (
	"context"

	"companion-billing/internal/domain/model"
)

// PricingRepository stores the catalog reference tables.
type PricingRepository interface {
	// Upsert is idempotent by (kind, code).
	Upsert(ctx context.Context, tx Tx, t *model.PricingTier) error
	ListAll(ctx context.Context, tx Tx) ([]*model.PricingTier, error)
}
