package memory

import (
	"context"
	"time"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.ReconciliationRepository = (*ReconciliationRepo)(nil)

type ReconciliationRepo struct{ s *Store }

func (r *ReconciliationRepo) Record(ctx context.Context, tx repository.Tx, item *model.ReconciliationItem) (bool, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return false, err
	}
	defer unlock()
	for _, it := range r.s.data.recon {
		if it.TransferRef == item.TransferRef && it.Reason == item.Reason {
			return false, nil
		}
	}
	r.s.data.recon = append(r.s.data.recon, *item)
	return true, nil
}

func (r *ReconciliationRepo) ListOpen(ctx context.Context, tx repository.Tx, limit int) ([]*model.ReconciliationItem, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []*model.ReconciliationItem
	for _, it := range r.s.data.recon {
		if it.ResolvedAt != nil {
			continue
		}
		it := it
		out = append(out, &it)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *ReconciliationRepo) Resolve(ctx context.Context, tx repository.Tx, id string, resolution string, at time.Time) error {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer unlock()
	for i := range r.s.data.recon {
		it := &r.s.data.recon[i]
		if it.ID != id {
			continue
		}
		if it.ResolvedAt != nil {
			return domain.ErrAlreadyExists
		}
		it.ResolvedAt = &at
		it.Resolution = &resolution
		return nil
	}
	return domain.ErrNotFound
}
