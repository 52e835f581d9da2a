package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

var _ repository.PaymentRequestRepository = (*paymentRequestRepo)(nil)

type paymentRequestRepo struct{ pool *pgxpool.Pool }

func NewPaymentRequestRepo(pool *pgxpool.Pool) *paymentRequestRepo {
	return &paymentRequestRepo{pool: pool}
}

const paymentRequestColumns = `id, kind, target_entitlement_id, subject_id, amount, code, qr_payload, bank_deeplinks,
account_info, status, created_at, expires_at, settled_at, transfer_ref, failure_reason, updated_at`

func (r *paymentRequestRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRequest) error {
	links, err := json.Marshal(p.BankDeeplinks)
	if err != nil {
		return err
	}
	acc, err := json.Marshal(p.AccountInfo)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO payment_requests (` + paymentRequestColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`
	_, err = execSQL(ctx, r.pool, tx, q,
		p.ID, p.Kind, p.TargetEntitlementID, p.SubjectID, p.Amount, p.Code, p.QRPayload, links,
		acc, p.Status, p.CreatedAt, p.ExpiresAt, p.SettledAt, p.TransferRef, p.FailureReason, p.UpdatedAt)
	return mapErr(err)
}

func scanPaymentRequest(row pgx.Row) (*model.PaymentRequest, error) {
	var (
		p     model.PaymentRequest
		links []byte
		acc   []byte
	)
	err := row.Scan(&p.ID, &p.Kind, &p.TargetEntitlementID, &p.SubjectID, &p.Amount, &p.Code, &p.QRPayload, &links,
		&acc, &p.Status, &p.CreatedAt, &p.ExpiresAt, &p.SettledAt, &p.TransferRef, &p.FailureReason, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	if len(links) > 0 {
		if err := json.Unmarshal(links, &p.BankDeeplinks); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	if len(acc) > 0 {
		if err := json.Unmarshal(acc, &p.AccountInfo); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &p, nil
}

func (r *paymentRequestRepo) findOne(ctx context.Context, tx repository.Tx, q string, args ...interface{}) (*model.PaymentRequest, error) {
	row, err := pickRow(ctx, r.pool, tx, q, args...)
	if err != nil {
		return nil, err
	}
	return scanPaymentRequest(row)
}

func (r *paymentRequestRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRequest, error) {
	q := forUpdate(`SELECT `+paymentRequestColumns+` FROM payment_requests WHERE id=$1`, tx)
	return r.findOne(ctx, tx, q, id)
}

func (r *paymentRequestRepo) FindPending(ctx context.Context, tx repository.Tx, subjectID string, kind model.ProductKind, target string) (*model.PaymentRequest, error) {
	q := forUpdate(`SELECT `+paymentRequestColumns+` FROM payment_requests
WHERE subject_id=$1 AND kind=$2 AND target_entitlement_id=$3 AND status='pending'`, tx)
	return r.findOne(ctx, tx, q, subjectID, kind, target)
}

func (r *paymentRequestRepo) FindLatestByCode(ctx context.Context, tx repository.Tx, code string) (*model.PaymentRequest, error) {
	const q = `SELECT ` + paymentRequestColumns + ` FROM payment_requests
WHERE code=$1
ORDER BY (status='pending') DESC, created_at DESC
LIMIT 1`
	return r.findOne(ctx, tx, q, code)
}

func (r *paymentRequestRepo) CodeInUse(ctx context.Context, tx repository.Tx, code string) (bool, error) {
	row, err := pickRow(ctx, r.pool, tx, `SELECT EXISTS (SELECT 1 FROM payment_requests WHERE code=$1 AND status='pending');`, code)
	if err != nil {
		return false, err
	}
	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false, domain.ErrReadDatabaseRow
	}
	return exists, nil
}

func (r *paymentRequestRepo) ListPending(ctx context.Context, tx repository.Tx, limit int) ([]*model.PaymentRequest, error) {
	const q = `SELECT ` + paymentRequestColumns + ` FROM payment_requests
WHERE status='pending'
ORDER BY created_at ASC
LIMIT $1;`
	rows, err := queryRows(ctx, r.pool, tx, q, limit)
	if err != nil {
		return nil, mapErr(err)
	}
	defer rows.Close()

	var out []*model.PaymentRequest
	for rows.Next() {
		p, err := scanPaymentRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, mapErr(rows.Err())
}

func (r *paymentRequestRepo) LockTuple(ctx context.Context, tx repository.Tx, subjectID string, kind model.ProductKind, target string) error {
	t, ok := tx.(pgx.Tx)
	if !ok {
		return domain.ErrInvalidExecContext
	}
	_, err := t.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(subjectID+"|"+string(kind)+"|"+target))
	return mapErr(err)
}

// casFromPending runs an UPDATE guarded by status='pending' and reports
// whether it fired.
func (r *paymentRequestRepo) casFromPending(ctx context.Context, tx repository.Tx, set string, args ...interface{}) (bool, error) {
	q := `UPDATE payment_requests SET ` + set + `, updated_at=NOW() WHERE id=$1 AND status='pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, args...)
	if err != nil {
		return false, mapErr(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *paymentRequestRepo) MarkSettledIfPending(ctx context.Context, tx repository.Tx, id string, settledAt time.Time, transferRef string) (bool, error) {
	return r.casFromPending(ctx, tx, `status='settled', settled_at=$2, transfer_ref=$3`, id, settledAt, transferRef)
}

func (r *paymentRequestRepo) MarkExpiredIfPending(ctx context.Context, tx repository.Tx, id string) (bool, error) {
	return r.casFromPending(ctx, tx, `status='expired'`, id)
}

func (r *paymentRequestRepo) MarkFailedIfPending(ctx context.Context, tx repository.Tx, id string, reason string) (bool, error) {
	return r.casFromPending(ctx, tx, `status='failed', failure_reason=$2`, id, reason)
}

func (r *paymentRequestRepo) ExpirePendingBefore(ctx context.Context, tx repository.Tx, cutoff time.Time, limit int) (int, error) {
	const q = `
UPDATE payment_requests SET status='expired', updated_at=NOW()
WHERE status='pending' AND id IN (
  SELECT id FROM payment_requests
  WHERE status='pending' AND expires_at < $1
  ORDER BY expires_at
  LIMIT $2
  FOR UPDATE SKIP LOCKED
);`
	tag, err := execSQL(ctx, r.pool, tx, q, cutoff, limit)
	if err != nil {
		return 0, mapErr(err)
	}
	return int(tag.RowsAffected()), nil
}
