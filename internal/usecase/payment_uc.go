package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ PaymentLedger = (*paymentUC)(nil)

// PaymentLedger owns the lifecycle of payment requests up to settlement.
type PaymentLedger interface {
	// Create returns the live pending request for the tuple when one exists,
	// otherwise issues a new one priced from the catalog.
	Create(ctx context.Context, subjectID string, kind model.ProductKind, tierCode string) (*model.PaymentRequest, error)
	Get(ctx context.Context, id string) (*model.PaymentRequest, error)
	// GetStatus expires the request on read once its window is over.
	GetStatus(ctx context.Context, id string) (*model.StatusView, error)
	// ExpireStale sweeps pending requests whose window ended more than the
	// sweep grace ago.
	ExpireStale(ctx context.Context) (int, error)
	// MarkFailed cancels a pending request on an operator's behalf.
	MarkFailed(ctx context.Context, id, reason string) (*model.PaymentRequest, error)
}

type LedgerConfig struct {
	Account      model.BankAccount
	Window       time.Duration
	CodeCooldown time.Duration
	SweepGrace   time.Duration
	SweepBatch   int
	Codes        CodeGenerator
}

const maxCodeAttempts = 8

type paymentUC struct {
	tm       repository.TransactionManager
	payments repository.PaymentRequestRepository
	subjects repository.SubjectRepository
	catalog  CatalogUseCase
	instr    adapter.TransferInstructions
	reserver adapter.CodeReserver // optional
	detector SettlementDetector   // optional
	cfg      LedgerConfig
	log      *zerolog.Logger
	now      func() time.Time
}

func NewPaymentLedger(
	tm repository.TransactionManager,
	payments repository.PaymentRequestRepository,
	subjects repository.SubjectRepository,
	catalog CatalogUseCase,
	instr adapter.TransferInstructions,
	reserver adapter.CodeReserver,
	cfg LedgerConfig,
	logger *zerolog.Logger,
) *paymentUC {
	if cfg.SweepBatch <= 0 {
		cfg.SweepBatch = 500
	}
	l := logger.With().Str("component", "ledger").Logger()
	return &paymentUC{
		tm: tm, payments: payments, subjects: subjects, catalog: catalog,
		instr: instr, reserver: reserver, cfg: cfg, log: &l, now: time.Now,
	}
}

// SetClock replaces the time source; tests use it to cross window boundaries.
func (u *paymentUC) SetClock(now func() time.Time) { u.now = now }

// SetDetector lets Create run a final settlement check on a request whose
// window closed before it is replaced.
func (u *paymentUC) SetDetector(d SettlementDetector) { u.detector = d }

func (u *paymentUC) Create(ctx context.Context, subjectID string, kind model.ProductKind, tierCode string) (*model.PaymentRequest, error) {
	subjectID = strings.TrimSpace(subjectID)
	if subjectID == "" || !kind.Valid() || strings.TrimSpace(tierCode) == "" {
		return nil, domain.ErrInvalidArgument
	}
	tier, err := u.catalog.GetTier(ctx, kind, tierCode)
	if err != nil {
		return nil, err
	}
	if err := u.checkStale(ctx, subjectID, kind, tier.Code); err != nil {
		return nil, err
	}

	var out *model.PaymentRequest
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		if err := u.payments.LockTuple(ctx, tx, subjectID, kind, tier.Code); err != nil {
			return err
		}
		ok, err := u.subjects.Exists(ctx, tx, subjectID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrSubjectNotFound
		}

		now := u.now()
		existing, err := u.payments.FindPending(ctx, tx, subjectID, kind, tier.Code)
		switch {
		case err == nil && !existing.ExpiredAt(now):
			out = existing
			return nil
		case err == nil:
			if _, err := u.payments.MarkExpiredIfPending(ctx, tx, existing.ID); err != nil {
				return err
			}
			u.log.Debug().Str("payment_request_id", existing.ID).Msg("stale pending request expired before re-issue")
		case !errors.Is(err, domain.ErrNotFound):
			return err
		}

		code, err := u.allocateCode(ctx, tx)
		if err != nil {
			return err
		}
		qr, err := u.instr.QRPayload(u.cfg.Account, tier.Price, code)
		if err != nil {
			return fmt.Errorf("build qr payload: %w", err)
		}
		p := &model.PaymentRequest{
			ID:                  model.NewPaymentRequestID(now),
			Kind:                kind,
			TargetEntitlementID: tier.Code,
			SubjectID:           subjectID,
			Amount:              tier.Price,
			Code:                code,
			QRPayload:           qr,
			BankDeeplinks:       u.instr.Deeplinks(u.cfg.Account, tier.Price, code),
			AccountInfo:         u.cfg.Account,
			CreatedAt:           now,
			ExpiresAt:           now.Add(u.cfg.Window),
			Status:              model.PaymentStatusPending,
			UpdatedAt:           now,
		}
		if err := u.payments.Save(ctx, tx, p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	u.log.Info().
		Str("payment_request_id", out.ID).
		Str("subject_id", subjectID).
		Str("kind", string(kind)).
		Str("tier", out.TargetEntitlementID).
		Int64("amount", out.Amount).
		Time("expires_at", out.ExpiresAt).
		Msg("payment request issued")
	return out, nil
}

// checkStale polls the rail once for a pending request whose window is over,
// so a transfer made in time but not yet observed settles instead of being
// expired by the re-issue. Runs outside the create transaction.
func (u *paymentUC) checkStale(ctx context.Context, subjectID string, kind model.ProductKind, target string) error {
	if u.detector == nil {
		return nil
	}
	p, err := u.payments.FindPending(ctx, repository.NoTX, subjectID, kind, target)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	now := u.now()
	if !p.ExpiredAt(now) {
		return nil
	}
	if _, err := u.detector.CheckSettlement(ctx, p.ID); err != nil {
		if now.After(p.ExpiresAt.Add(u.cfg.SweepGrace)) {
			u.log.Warn().Err(err).Str("payment_request_id", p.ID).Msg("final settlement check failed after grace, re-issuing anyway")
			return nil
		}
		return fmt.Errorf("final settlement check for %s: %w", p.ID, err)
	}
	return nil
}

// allocateCode draws codes until one is neither carried by a pending request
// nor still inside another request's window plus cooldown.
func (u *paymentUC) allocateCode(ctx context.Context, tx repository.Tx) (string, error) {
	ttl := u.cfg.Window + u.cfg.CodeCooldown
	for i := 0; i < maxCodeAttempts; i++ {
		code, err := u.cfg.Codes.New()
		if err != nil {
			return "", err
		}
		inUse, err := u.payments.CodeInUse(ctx, tx, code)
		if err != nil {
			return "", err
		}
		if inUse {
			continue
		}
		if u.reserver == nil {
			return code, nil
		}
		ok, err := u.reserver.Reserve(ctx, code, ttl)
		if err != nil {
			// the pending-code unique index still guards live requests
			u.log.Warn().Err(err).Msg("code reservation unavailable, relying on store uniqueness")
			return code, nil
		}
		if ok {
			return code, nil
		}
	}
	return "", domain.ErrCodeSpaceExhausted
}

func (u *paymentUC) Get(ctx context.Context, id string) (*model.PaymentRequest, error) {
	return u.payments.FindByID(ctx, repository.NoTX, id)
}

func (u *paymentUC) GetStatus(ctx context.Context, id string) (*model.StatusView, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if p.Status == model.PaymentStatusPending && p.ExpiredAt(u.now()) {
		changed, err := u.payments.MarkExpiredIfPending(ctx, repository.NoTX, id)
		if err != nil {
			return nil, err
		}
		if changed {
			p.Status = model.PaymentStatusExpired
			u.log.Debug().Str("payment_request_id", id).Msg("expired on read")
		} else {
			// lost the race; report whatever won
			if p, err = u.payments.FindByID(ctx, repository.NoTX, id); err != nil {
				return nil, err
			}
		}
	}
	v := p.View()
	return &v, nil
}

func (u *paymentUC) ExpireStale(ctx context.Context) (int, error) {
	cutoff := u.now().Add(-u.cfg.SweepGrace)
	total := 0
	for {
		n, err := u.payments.ExpirePendingBefore(ctx, repository.NoTX, cutoff, u.cfg.SweepBatch)
		total += n
		if err != nil {
			return total, err
		}
		if n < u.cfg.SweepBatch {
			return total, nil
		}
		if ctx.Err() != nil {
			return total, ctx.Err()
		}
	}
}

func (u *paymentUC) MarkFailed(ctx context.Context, id, reason string) (*model.PaymentRequest, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, domain.ErrInvalidArgument
	}
	changed, err := u.payments.MarkFailedIfPending(ctx, repository.NoTX, id, reason)
	if err != nil {
		return nil, err
	}
	p, err := u.payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return nil, err
	}
	if !changed {
		return p, domain.ErrPaymentTerminal
	}
	u.log.Warn().Str("payment_request_id", id).Str("reason", reason).Msg("payment request marked failed")
	return p, nil
}
