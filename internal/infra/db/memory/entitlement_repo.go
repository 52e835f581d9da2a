package memory

import (
	"context"
	"time"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

var (
	_ repository.SubjectRepository        = (*SubjectRepo)(nil)
	_ repository.MembershipRepository     = (*MembershipRepo)(nil)
	_ repository.BoostRepository          = (*BoostRepo)(nil)
	_ repository.InvitationCodeRepository = (*InvitationCodeRepo)(nil)
)

type SubjectRepo struct{ s *Store }

func (r *SubjectRepo) Exists(ctx context.Context, tx repository.Tx, subjectID string) (bool, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return false, err
	}
	defer unlock()
	return r.s.data.subjects[subjectID], nil
}

type MembershipRepo struct{ s *Store }

func (r *MembershipRepo) FindBySubject(ctx context.Context, tx repository.Tx, subjectID string) (*model.Membership, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	m, ok := r.s.data.memberships[subjectID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &m, nil
}

func (r *MembershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer unlock()
	r.s.data.memberships[m.SubjectID] = *m
	return nil
}

type BoostRepo struct{ s *Store }

func (r *BoostRepo) Create(ctx context.Context, tx repository.Tx, b *model.BoostWindow) error {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer unlock()
	r.s.data.boosts = append(r.s.data.boosts, *b)
	return nil
}

func (r *BoostRepo) ListActive(ctx context.Context, tx repository.Tx, subjectID string, at time.Time) ([]*model.BoostWindow, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []*model.BoostWindow
	for _, b := range r.s.data.boosts {
		if b.SubjectID == subjectID && b.ActiveAt(at) {
			b := b
			out = append(out, &b)
		}
	}
	return out, nil
}

type InvitationCodeRepo struct{ s *Store }

func (r *InvitationCodeRepo) CreateBatch(ctx context.Context, tx repository.Tx, codes []*model.InvitationCode) error {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return err
	}
	defer unlock()
	seen := map[string]bool{}
	for _, c := range r.s.data.invites {
		seen[c.Code] = true
	}
	for _, c := range codes {
		if seen[c.Code] {
			return domain.ErrAlreadyExists
		}
		seen[c.Code] = true
	}
	for _, c := range codes {
		r.s.data.invites = append(r.s.data.invites, *c)
	}
	return nil
}

func (r *InvitationCodeRepo) ListUnused(ctx context.Context, tx repository.Tx, subjectID string) ([]*model.InvitationCode, error) {
	unlock, err := r.s.enter(tx)
	if err != nil {
		return nil, err
	}
	defer unlock()
	var out []*model.InvitationCode
	for _, c := range r.s.data.invites {
		if c.SubjectID == subjectID && c.UsedAt == nil {
			c := c
			out = append(out, &c)
		}
	}
	return out, nil
}
