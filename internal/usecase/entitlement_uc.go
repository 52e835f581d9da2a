package usecase

import (
	"context"
	"errors"
	"time"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

// EntitlementQuery is the read side of activation.
type EntitlementQuery struct {
	subjects    repository.SubjectRepository
	memberships repository.MembershipRepository
	boosts      repository.BoostRepository
	invites     repository.InvitationCodeRepository
	now         func() time.Time
}

func NewEntitlementQuery(
	subjects repository.SubjectRepository,
	memberships repository.MembershipRepository,
	boosts repository.BoostRepository,
	invites repository.InvitationCodeRepository,
) *EntitlementQuery {
	return &EntitlementQuery{subjects: subjects, memberships: memberships, boosts: boosts, invites: invites, now: time.Now}
}

func (q *EntitlementQuery) SetClock(now func() time.Time) { q.now = now }

func (q *EntitlementQuery) Get(ctx context.Context, subjectID string) (*model.Entitlements, error) {
	ok, err := q.subjects.Exists(ctx, repository.NoTX, subjectID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, domain.ErrSubjectNotFound
	}
	out := &model.Entitlements{SubjectID: subjectID, ActiveBoosts: []model.BoostWindow{}}

	m, err := q.memberships.FindBySubject(ctx, repository.NoTX, subjectID)
	switch {
	case err == nil:
		out.Membership = m
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}

	boosts, err := q.boosts.ListActive(ctx, repository.NoTX, subjectID, q.now())
	if err != nil {
		return nil, err
	}
	for _, b := range boosts {
		out.ActiveBoosts = append(out.ActiveBoosts, *b)
	}

	codes, err := q.invites.ListUnused(ctx, repository.NoTX, subjectID)
	if err != nil {
		return nil, err
	}
	out.UnusedInviteCnt = len(codes)
	for _, c := range codes {
		out.InvitationCodes = append(out.InvitationCodes, *c)
	}
	return out, nil
}
