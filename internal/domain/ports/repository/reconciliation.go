package repository

import (
	"context"
	"time"

	"companion-billing/internal/domain/model"
)

type ReconciliationRepository interface {
	// Record inserts the item unless one already exists for the same transfer
	// reference and reason. It reports whether a new row was written.
	Record(ctx context.Context, tx Tx, item *model.ReconciliationItem) (bool, error)
	ListOpen(ctx context.Context, tx Tx, limit int) ([]*model.ReconciliationItem, error)
	Resolve(ctx context.Context, tx Tx, id string, resolution string, at time.Time) error
}
