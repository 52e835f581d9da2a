package postgres

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v4/pgxpool"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

var _ repository.PricingRepository = (*pricingRepo)(nil)

type pricingRepo struct{ pool *pgxpool.Pool }

func NewPricingRepo(pool *pgxpool.Pool) *pricingRepo {
	return &pricingRepo{pool: pool}
}

func (r *pricingRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.PricingTier) error {
	caps, err := json.Marshal(t.Capabilities)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO pricing_tiers (
  kind, code, name, price, price_usd, duration_hours, duration_days, multiplier, code_count, capabilities, sort_order, updated_at
) VALUES (
  $1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12
) ON CONFLICT (kind, code) DO UPDATE SET
  name=$3, price=$4, price_usd=$5, duration_hours=$6, duration_days=$7, multiplier=$8, code_count=$9,
  capabilities=$10, sort_order=$11, updated_at=$12;`
	_, err = execSQL(ctx, r.pool, tx, q,
		t.Kind, t.Code, t.Name, t.Price, t.PriceUSD, t.DurationHours, t.DurationDays, t.Multiplier, t.CodeCount,
		caps, t.SortOrder, t.UpdatedAt)
	return mapErr(err)
}

func (r *pricingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PricingTier, error) {
	const q = `
SELECT kind, code, name, price, price_usd, duration_hours, duration_days, multiplier, code_count, capabilities, sort_order, updated_at
FROM pricing_tiers
ORDER BY kind, sort_order, price;`
	rows, err := queryRows(ctx, r.pool, tx, q)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PricingTier
	for rows.Next() {
		var (
			t    model.PricingTier
			caps []byte
		)
		if err := rows.Scan(&t.Kind, &t.Code, &t.Name, &t.Price, &t.PriceUSD, &t.DurationHours, &t.DurationDays,
			&t.Multiplier, &t.CodeCount, &caps, &t.SortOrder, &t.UpdatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		if len(caps) > 0 {
			if err := json.Unmarshal(caps, &t.Capabilities); err != nil {
				return nil, domain.ErrReadDatabaseRow
			}
		}
		out = append(out, &t)
	}
	return out, mapErr(rows.Err())
}
