package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
	"companion-billing/internal/infra/metrics"
)

var _ repository.ReconciliationRepository = (*reconciliationRepo)(nil)

type reconciliationRepo struct{ pool *pgxpool.Pool }

func NewReconciliationRepo(pool *pgxpool.Pool) *reconciliationRepo {
	return &reconciliationRepo{pool: pool}
}

func (r *reconciliationRepo) Record(ctx context.Context, tx repository.Tx, it *model.ReconciliationItem) (bool, error) {
	const q = `
INSERT INTO reconciliation_items (
  id, transfer_ref, payment_request_id, reason, expected_amount, received_amount, description, received_at, created_at
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (transfer_ref, reason) DO NOTHING;`
	tag, err := execSQL(ctx, r.pool, tx, q,
		it.ID, it.TransferRef, it.PaymentRequestID, it.Reason, it.ExpectedAmount, it.ReceivedAmount,
		it.Description, it.ReceivedAt, it.CreatedAt)
	if err != nil {
		return false, mapErr(err)
	}
	created := tag.RowsAffected() > 0
	if created {
		metrics.IncReconciliationItem(string(it.Reason))
	}
	return created, nil
}

func (r *reconciliationRepo) ListOpen(ctx context.Context, tx repository.Tx, limit int) ([]*model.ReconciliationItem, error) {
	const q = `
SELECT id, transfer_ref, payment_request_id, reason, expected_amount, received_amount, description, received_at,
       created_at, resolved_at, resolution
FROM reconciliation_items
WHERE resolved_at IS NULL
ORDER BY created_at
LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.ReconciliationItem
	for rows.Next() {
		var it model.ReconciliationItem
		if err := rows.Scan(&it.ID, &it.TransferRef, &it.PaymentRequestID, &it.Reason, &it.ExpectedAmount, &it.ReceivedAmount,
			&it.Description, &it.ReceivedAt, &it.CreatedAt, &it.ResolvedAt, &it.Resolution); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &it)
	}
	return out, mapErr(rows.Err())
}

func (r *reconciliationRepo) Resolve(ctx context.Context, tx repository.Tx, id string, resolution string, at time.Time) error {
	tag, err := execSQL(ctx, r.pool, tx,
		`UPDATE reconciliation_items SET resolved_at=$2, resolution=$3 WHERE id=$1 AND resolved_at IS NULL;`,
		id, at, resolution)
	if err != nil {
		return mapErr(err)
	}
	if tag.RowsAffected() == 0 {
		row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM reconciliation_items WHERE id=$1);`, id)
		if err != nil {
			return err
		}
		var exists bool
		if err := row.Scan(&exists); err != nil {
			return domain.ErrReadDatabaseRow
		}
		if exists {
			return domain.ErrAlreadyExists
		}
		return domain.ErrNotFound
	}
	return nil
}
