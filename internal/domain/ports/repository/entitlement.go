package repository

import (
	"context"
	"time"

	"companion-billing/internal/domain/model"
)

// SubjectRepository answers whether the profile an entitlement targets exists.
type SubjectRepository interface {
	Exists(ctx context.Context, tx Tx, subjectID string) (bool, error)
}

type MembershipRepository interface {
	// FindBySubject returns ErrNotFound when the subject never had a membership.
	FindBySubject(ctx context.Context, tx Tx, subjectID string) (*model.Membership, error)
	Save(ctx context.Context, tx Tx, m *model.Membership) error
}

type BoostRepository interface {
	Create(ctx context.Context, tx Tx, b *model.BoostWindow) error
	ListActive(ctx context.Context, tx Tx, subjectID string, at time.Time) ([]*model.BoostWindow, error)
}

type InvitationCodeRepository interface {
	CreateBatch(ctx context.Context, tx Tx, codes []*model.InvitationCode) error
	ListUnused(ctx context.Context, tx Tx, subjectID string) ([]*model.InvitationCode, error)
}
