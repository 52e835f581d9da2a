package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

var (
	_ repository.SubjectRepository        = (*subjectRepo)(nil)
	_ repository.MembershipRepository     = (*membershipRepo)(nil)
	_ repository.BoostRepository          = (*boostRepo)(nil)
	_ repository.InvitationCodeRepository = (*invitationCodeRepo)(nil)
)

type subjectRepo struct{ pool *pgxpool.Pool }

func NewSubjectRepo(pool *pgxpool.Pool) *subjectRepo { return &subjectRepo{pool: pool} }

func (r *subjectRepo) Exists(ctx context.Context, tx repository.Tx, subjectID string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM subjects WHERE id=$1);`, subjectID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return ok, nil
}

// Upsert registers a subject; used by seeding and tests.
func (r *subjectRepo) Upsert(ctx context.Context, tx repository.Tx, id, displayName string) error {
	_, err := execSQL(ctx, r.pool, tx,
		`INSERT INTO subjects (id, display_name) VALUES ($1,$2) ON CONFLICT (id) DO UPDATE SET display_name=$2;`,
		id, displayName)
	return mapErr(err)
}

type membershipRepo struct{ pool *pgxpool.Pool }

func NewMembershipRepo(pool *pgxpool.Pool) *membershipRepo { return &membershipRepo{pool: pool} }

func (r *membershipRepo) FindBySubject(ctx context.Context, tx repository.Tx, subjectID string) (*model.Membership, error) {
	q := forUpdate(`SELECT subject_id, tier, active_until, updated_at FROM memberships WHERE subject_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, subjectID)
	if err != nil {
		return nil, err
	}
	var m model.Membership
	if err := row.Scan(&m.SubjectID, &m.Tier, &m.ActiveUntil, &m.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrNotFound
		}
		return nil, domain.ErrReadDatabaseRow
	}
	return &m, nil
}

func (r *membershipRepo) Save(ctx context.Context, tx repository.Tx, m *model.Membership) error {
	const q = `
INSERT INTO memberships (subject_id, tier, active_until, updated_at)
VALUES ($1,$2,$3,$4)
ON CONFLICT (subject_id) DO UPDATE SET tier=$2, active_until=$3, updated_at=$4;`
	_, err := execSQL(ctx, r.pool, tx, q, m.SubjectID, m.Tier, m.ActiveUntil, m.UpdatedAt)
	return mapErr(err)
}

type boostRepo struct{ pool *pgxpool.Pool }

func NewBoostRepo(pool *pgxpool.Pool) *boostRepo { return &boostRepo{pool: pool} }

func (r *boostRepo) Create(ctx context.Context, tx repository.Tx, b *model.BoostWindow) error {
	const q = `
INSERT INTO boost_windows (id, subject_id, tier, multiplier, starts_at, ends_at, payment_request_id, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8);`
	_, err := execSQL(ctx, r.pool, tx, q, b.ID, b.SubjectID, b.Tier, b.Multiplier, b.StartsAt, b.EndsAt, b.PaymentRequestID, b.CreatedAt)
	return mapErr(err)
}

func (r *boostRepo) ListActive(ctx context.Context, tx repository.Tx, subjectID string, at time.Time) ([]*model.BoostWindow, error) {
	const q = `
SELECT id, subject_id, tier, multiplier, starts_at, ends_at, payment_request_id, created_at
FROM boost_windows
WHERE subject_id=$1 AND starts_at <= $2 AND ends_at > $2
ORDER BY ends_at;`
	rows, err := queryRows(ctx, r.pool, tx, q, subjectID, at)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.BoostWindow
	for rows.Next() {
		var b model.BoostWindow
		if err := rows.Scan(&b.ID, &b.SubjectID, &b.Tier, &b.Multiplier, &b.StartsAt, &b.EndsAt, &b.PaymentRequestID, &b.CreatedAt); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &b)
	}
	return out, mapErr(rows.Err())
}

type invitationCodeRepo struct{ pool *pgxpool.Pool }

func NewInvitationCodeRepo(pool *pgxpool.Pool) *invitationCodeRepo {
	return &invitationCodeRepo{pool: pool}
}

func (r *invitationCodeRepo) CreateBatch(ctx context.Context, tx repository.Tx, codes []*model.InvitationCode) error {
	if len(codes) == 0 {
		return nil
	}
	t, ok := tx.(pgx.Tx)
	if !ok {
		// outside a transaction the batch would not be atomic
		return domain.ErrInvalidExecContext
	}
	batch := &pgx.Batch{}
	for _, c := range codes {
		batch.Queue(`INSERT INTO invitation_codes (id, code, subject_id, payment_request_id, created_at) VALUES ($1,$2,$3,$4,$5);`,
			c.ID, c.Code, c.SubjectID, c.PaymentRequestID, c.CreatedAt)
	}
	br := t.SendBatch(ctx, batch)
	defer br.Close()
	for range codes {
		if _, err := br.Exec(); err != nil {
			return mapErr(err)
		}
	}
	return nil
}

func (r *invitationCodeRepo) ListUnused(ctx context.Context, tx repository.Tx, subjectID string) ([]*model.InvitationCode, error) {
	const q = `
SELECT id, code, subject_id, payment_request_id, created_at, used_at, used_by
FROM invitation_codes
WHERE subject_id=$1 AND used_at IS NULL
ORDER BY created_at, code;`
	rows, err := queryRows(ctx, r.pool, tx, q, subjectID)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.InvitationCode
	for rows.Next() {
		var c model.InvitationCode
		if err := rows.Scan(&c.ID, &c.Code, &c.SubjectID, &c.PaymentRequestID, &c.CreatedAt, &c.UsedAt, &c.UsedBy); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		out = append(out, &c)
	}
	return out, mapErr(rows.Err())
}
