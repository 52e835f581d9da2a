package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ SettlementDetector = (*settlementUC)(nil)

const (
	SourcePoll = "poll"
	SourcePush = "push"
)

// SettlementDetector decides whether a pending request has been paid. The
// periodic pull (CheckSettlement) and the bank push (HandleTransfer) both end
// in the same idempotent routine, so duplicate or reordered signals are safe.
type SettlementDetector interface {
	CheckSettlement(ctx context.Context, id string) (model.SettlementOutcome, error)
	HandleTransfer(ctx context.Context, t model.IncomingTransfer) (model.SettlementOutcome, error)
}

type DetectorConfig struct {
	// Lookback widens the rail query before the request's creation time to
	// absorb clock skew between us and the bank.
	Lookback time.Duration
	LockTTL  time.Duration
	Codes    CodeGenerator
}

type settlementUC struct {
	payments  repository.PaymentRequestRepository
	rail      adapter.BankingRail
	activator EntitlementActivator
	recon     ReconciliationUseCase
	locker    adapter.Locker // optional
	cfg       DetectorConfig
	log       *zerolog.Logger
	now       func() time.Time
}

func NewSettlementDetector(
	payments repository.PaymentRequestRepository,
	rail adapter.BankingRail,
	activator EntitlementActivator,
	recon ReconciliationUseCase,
	locker adapter.Locker,
	cfg DetectorConfig,
	logger *zerolog.Logger,
) *settlementUC {
	l := logger.With().Str("component", "detector").Logger()
	return &settlementUC{
		payments: payments, rail: rail, activator: activator, recon: recon,
		locker: locker, cfg: cfg, log: &l, now: time.Now,
	}
}

func (u *settlementUC) SetClock(now func() time.Time) { u.now = now }

func terminalOutcome(s model.PaymentStatus) model.SettlementOutcome {
	if s == model.PaymentStatusSettled {
		return model.OutcomeSettled
	}
	return model.OutcomeExpired
}

func (u *settlementUC) CheckSettlement(ctx context.Context, id string) (model.SettlementOutcome, error) {
	p, err := u.payments.FindByID(ctx, repository.NoTX, id)
	if err != nil {
		return model.OutcomePending, err
	}
	if p.Status.Terminal() {
		return terminalOutcome(p.Status), nil
	}

	if u.locker != nil {
		key := "settle:" + id
		token, err := u.locker.TryLock(ctx, key, u.cfg.LockTTL)
		switch {
		case errors.Is(err, domain.ErrLockHeld):
			return model.OutcomePending, nil
		case err != nil:
			u.log.Warn().Err(err).Str("payment_request_id", id).Msg("detector lock unavailable, continuing unlocked")
		default:
			defer func() {
				// detached so a cancelled check still releases the key
				_ = u.locker.Unlock(context.WithoutCancel(ctx), key, token)
			}()
		}
	}

	since := p.CreatedAt.Add(-u.cfg.Lookback)
	transfers, err := u.rail.FindIncomingTransfers(ctx, p.AccountInfo, since)
	if err != nil {
		return model.OutcomePending, err
	}
	return u.settle(ctx, p, transfers, SourcePoll)
}

func (u *settlementUC) HandleTransfer(ctx context.Context, t model.IncomingTransfer) (model.SettlementOutcome, error) {
	if t.Reference == "" {
		return model.OutcomePending, domain.ErrInvalidArgument
	}
	candidates := u.cfg.Codes.Candidates(t.Description)
	if len(candidates) == 0 {
		u.log.Debug().Str("transfer_ref", t.Reference).Msg("incoming transfer carries no payment code, ignored")
		return model.OutcomePending, nil
	}
	var terminal *model.PaymentRequest
	for _, code := range candidates {
		p, err := u.payments.FindLatestByCode(ctx, repository.NoTX, code)
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if err != nil {
			return model.OutcomePending, err
		}
		if p.Status == model.PaymentStatusPending {
			return u.settle(ctx, p, []model.IncomingTransfer{t}, SourcePush)
		}
		if terminal == nil {
			terminal = p
		}
	}
	// no candidate names a live request
	switch {
	case terminal == nil:
		u.park(ctx, nil, t, model.ReconcileUnmatchedCode)
		return model.OutcomePending, nil
	case terminal.Status == model.PaymentStatusSettled && terminal.TransferRef != nil && *terminal.TransferRef == t.Reference:
		return model.OutcomeSettled, nil
	case terminal.Status == model.PaymentStatusSettled:
		u.park(ctx, terminal, t, model.ReconcileDuplicate)
		return model.OutcomeSettled, nil
	default:
		u.park(ctx, terminal, t, model.ReconcileExpiredSettlement)
		return model.OutcomeExpired, nil
	}
}

// settle is the routine both paths converge on. Every transfer carrying the
// code is accounted for: one exact-amount transfer settles, the rest are
// parked for an operator.
func (u *settlementUC) settle(ctx context.Context, p *model.PaymentRequest, transfers []model.IncomingTransfer, source string) (model.SettlementOutcome, error) {
	var (
		match      *model.IncomingTransfer
		extras     []model.IncomingTransfer
		mismatches []model.IncomingTransfer
	)
	for i := range transfers {
		t := transfers[i]
		if !DescriptionContains(t.Description, p.Code) {
			continue
		}
		switch {
		case t.Amount != p.Amount:
			mismatches = append(mismatches, t)
		case match == nil:
			match = &t
		case p.ExpiredAt(match.ReceivedAt) && !p.ExpiredAt(t.ReceivedAt):
			// an in-window payment wins over a late one
			extras = append(extras, *match)
			match = &t
		default:
			extras = append(extras, t)
		}
	}

	for _, t := range mismatches {
		u.park(ctx, p, t, model.ReconcileAmountMismatch)
	}

	if match != nil {
		outcome, err := u.apply(ctx, p, *match, source)
		reason := model.ReconcileDuplicate
		if outcome == model.OutcomeExpired {
			reason = model.ReconcileExpiredSettlement
		}
		for _, t := range extras {
			u.park(ctx, p, t, reason)
		}
		return outcome, err
	}

	if p.ExpiredAt(u.now()) {
		changed, err := u.payments.MarkExpiredIfPending(ctx, repository.NoTX, p.ID)
		if err != nil {
			return model.OutcomePending, err
		}
		if !changed {
			fresh, err := u.payments.FindByID(ctx, repository.NoTX, p.ID)
			if err != nil {
				return model.OutcomePending, err
			}
			return terminalOutcome(fresh.Status), nil
		}
		return model.OutcomeExpired, nil
	}
	if len(mismatches) > 0 {
		return model.OutcomeAmountMismatch, nil
	}
	return model.OutcomePending, nil
}

func (u *settlementUC) apply(ctx context.Context, p *model.PaymentRequest, t model.IncomingTransfer, source string) (model.SettlementOutcome, error) {
	sig := model.SettlementSignal{
		TransferRef: t.Reference,
		Amount:      t.Amount,
		ReceivedAt:  t.ReceivedAt,
		Source:      source,
	}
	_, err := u.activator.ApplySettlement(ctx, p.ID, sig)
	switch {
	case err == nil:
		return model.OutcomeSettled, nil
	case errors.Is(err, domain.ErrExpiredSettlement):
		u.park(ctx, p, t, model.ReconcileExpiredSettlement)
		return model.OutcomeExpired, nil
	case errors.Is(err, domain.ErrPaymentTerminal):
		u.park(ctx, p, t, model.ReconcileDuplicate)
		return model.OutcomeExpired, nil
	case errors.Is(err, domain.ErrActivationFailure):
		u.park(ctx, p, t, model.ReconcileActivationFailed)
		return model.OutcomePending, err
	default:
		return model.OutcomePending, err
	}
}

func (u *settlementUC) park(ctx context.Context, p *model.PaymentRequest, t model.IncomingTransfer, reason model.ReconciliationReason) {
	item := &model.ReconciliationItem{
		TransferRef:    t.Reference,
		Reason:         reason,
		ReceivedAmount: t.Amount,
		Description:    t.Description,
		ReceivedAt:     t.ReceivedAt,
	}
	if p != nil {
		id := p.ID
		item.PaymentRequestID = &id
		item.ExpectedAmount = p.Amount
	}
	if _, err := u.recon.Record(ctx, item); err != nil {
		u.log.Error().Err(err).Str("transfer_ref", t.Reference).Str("reason", string(reason)).Msg("could not record reconciliation item")
	}
}
