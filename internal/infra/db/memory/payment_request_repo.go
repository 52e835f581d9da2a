package memory

import (
	"context"
	"sort"
	"time"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ repository.PaymentRequestRepository = (*PaymentRequestRepo)(nil)

type PaymentRequestRepo struct{ s *Store }

func (r *PaymentRequestRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer unlock()
	for _, o := range r.s.data.requests {
		if o.ID == p.ID || o.Status != model.PaymentStatusPending {
			continue
		}
		if o.Code == p.Code {
			return domain.ErrAlreadyExists
		}
		if o.SubjectID == p.SubjectID && o.Kind == p.Kind && o.TargetEntitlementID == p.TargetEntitlementID &&
			p.Status == model.PaymentStatusPending {
			return domain.ErrAlreadyExists
		}
	}
	r.s.data.requests[p.ID] = *p
	return nil
}

func (r *PaymentRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	p, ok := r.s.data.requests[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *PaymentRequestRepo) FindPending(ctx context.Context, tx repository.Tx, subjectID string, kind model.ProductKind, target string) (*model.PaymentRequest, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	for _, p := range r.s.data.requests {
		if p.Status == model.PaymentStatusPending && p.SubjectID == subjectID && p.Kind == kind && p.TargetEntitlementID == target {
			return &p, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *PaymentRequestRepo) FindLatestByCode(ctx context.Context, tx repository.Tx, code string) (*model.PaymentRequest, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var best *model.PaymentRequest
	for _, p := range r.s.data.requests {
		if p.Code != code {
			continue
		}
		p := p
		switch {
		case best == nil:
			best = &p
		case p.Status == model.PaymentStatusPending && best.Status != model.PaymentStatusPending:
			best = &p
		case (p.Status == model.PaymentStatusPending) == (best.Status == model.PaymentStatusPending) && p.CreatedAt.After(best.CreatedAt):
			best = &p
		}
	}
	if best == nil {
		return nil, domain.ErrNotFound
	}
	return best, nil
}

func (r *PaymentRequestRepo) CodeInUse(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return false, err
	}
	defer unlock()
	for _, p := range r.s.data.requests {
		if p.Code == code && p.Status == model.PaymentStatusPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *PaymentRequestRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentRequest, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []*model.PaymentRequest
	for _, p := range r.s.data.requests {
		if p.Status == model.PaymentStatusPending {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// LockTuple is a no-op: transactions here are already exclusive.
func (r *PaymentRequestRepo) LockTuple(ctx context.Context, tx repository.Tx, subjectID string, kind model.ProductKind, target string) error {
	return nil
}

// casPending applies mut when the row is still pending.
func (r *PaymentRequestRepo) casPending(tx repository.Tx, id string, mut func(p *model.PaymentRequest)) (bool, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return false, err
	}
	defer unlock()
	p, ok := r.s.data.requests[id]
	if !ok || p.Status != model.PaymentStatusPending {
		return false, nil
	}
	mut(&p)
	p.UpdatedAt = time.Now()
	r.s.data.requests[id] = p
	return true, nil
}

func (r *PaymentRequestRepo) MarkSettledIfPending(ctx context.Context, tx repository.Tx, id string, settledAt time.Time, transferRef string) (bool, error) {
	return r.casPending(tx, id, func(p *model.PaymentRequest) {
		p.Status = model.PaymentStatusSettled
		p.SettledAt = &settledAt
		p.TransferRef = &transferRef
	})
}

func (r *PaymentRequestRepo) MarkExpiredIfPending(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return r.casPending(tx, id, func(p *model.PaymentRequest) {
		p.Status = model.PaymentStatusExpired
	})
}

func (r *PaymentRequestRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id string, reason string) (bool, error) {
	return r.casPending(tx, id, func(p *model.PaymentRequest) {
		p.Status = model.PaymentStatusFailed
		p.FailureReason = &reason
	})
}

func (r *PaymentRequestRepo) ExpirePendingBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) (int, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return 0, err
	}
	defer unlock()
	n := 0
	now := time.Now()
	for id, p := range r.s.data.requests {
		if limit > 0 && n >= limit {
			break
		}
		if p.Status == model.PaymentStatusPending && p.ExpiresAt.Before(cutoff) {
			p.Status = model.PaymentStatusExpired
			p.UpdatedAt = now
			r.s.data.requests[id] = p
			n++
		}
	}
	return n, nil
}
