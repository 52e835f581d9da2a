package memory

import (
	"context"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.PricingRepository = (*PricingRepo)(nil)

type PricingRepo struct{ s *Store }

func (r *PricingRepo) Upsert(ctx context.Context, tx repository.Tx, t *model.PricingTier) error {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer unlock()
	r.s.data.tiers[tierKey{t.Kind, t.Code}] = *t
	return nil
}

func (r *PricingRepo) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PricingTier, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	out := make([]*model.PricingTier, 0, len(r.s.data.tiers))
	for _, t := range r.s.data.tiers {
		t := t
		out = append(out, &t)
	}
	return out, nil
}
