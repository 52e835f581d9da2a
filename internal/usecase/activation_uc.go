package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ EntitlementActivator = (*activationUC)(nil)

// EntitlementActivator turns a confirmed transfer into the purchased
// entitlement. The status flip and the effect commit together or not at all.
type EntitlementActivator interface {
	ApplySettlement(ctx context.Context, id string, sig model.SettlementSignal) (*model.PaymentRequest, error)
}

type activationUC struct {
	tm          repository.TransactionManager
	payments    repository.PaymentRequestRepository
	subjects    repository.SubjectRepository
	memberships repository.MembershipRepository
	boosts      repository.BoostRepository
	invites     repository.InvitationCodeRepository
	catalog     CatalogUseCase
	notifier    adapter.OpsNotifier // optional
	log         *zerolog.Logger
	now         func() time.Time
}

func NewEntitlementActivator(
	tm repository.TransactionManager,
	payments repository.PaymentRequestRepository,
	subjects repository.SubjectRepository,
	memberships repository.MembershipRepository,
	boosts repository.BoostRepository,
	invites repository.InvitationCodeRepository,
	catalog CatalogUseCase,
	notifier adapter.OpsNotifier,
	logger *zerolog.Logger,
) *activationUC {
	l := logger.With().Str("component", "activator").Logger()
	return &activationUC{
		tm: tm, payments: payments, subjects: subjects, memberships: memberships,
		boosts: boosts, invites: invites, catalog: catalog, notifier: notifier,
		log: &l, now: time.Now,
	}
}

func (u *activationUC) SetClock(now func() time.Time) { u.now = now }

func (u *activationUC) ApplySettlement(ctx context.Context, id string, sig model.SettlementSignal) (*model.PaymentRequest, error) {
	if sig.ReceivedAt.IsZero() {
		sig.ReceivedAt = u.now()
	}
	var (
		out      *model.PaymentRequest
		expired  bool
		applied  bool
		terminal error
	)
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByID(ctx, tx, id)
		if err != nil {
			return err
		}
		out = p
		switch p.Status {
		case model.PaymentStatusSettled:
			return nil
		case model.PaymentStatusExpired:
			terminal = domain.ErrExpiredSettlement
			return nil
		case model.PaymentStatusFailed:
			terminal = domain.ErrPaymentTerminal
			return nil
		}

		if p.ExpiredAt(sig.ReceivedAt) {
			if _, err := u.payments.MarkExpiredIfPending(ctx, tx, id); err != nil {
				return err
			}
			p.Status = model.PaymentStatusExpired
			expired = true
			return nil
		}
		if sig.Amount != p.Amount {
			return domain.ErrAmountMismatch
		}

		now := u.now()
		ok, err := u.payments.MarkSettledIfPending(ctx, tx, id, now, sig.TransferRef)
		if err != nil {
			return err
		}
		if !ok {
			// another settler won; nothing left to do
			fresh, err := u.payments.FindByID(ctx, tx, id)
			if err != nil {
				return err
			}
			out = fresh
			if fresh.Status == model.PaymentStatusExpired {
				terminal = domain.ErrExpiredSettlement
			}
			return nil
		}
		if err := u.applyEffect(ctx, tx, p, now); err != nil {
			return fmt.Errorf("%w: %w", domain.ErrActivationFailure, err)
		}
		p.Status = model.PaymentStatusSettled
		p.SettledAt = &now
		ref := sig.TransferRef
		p.TransferRef = &ref
		p.UpdatedAt = now
		applied = true
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrActivationFailure) {
			u.log.Error().Err(err).Str("payment_request_id", id).Str("transfer_ref", sig.TransferRef).Msg("activation rolled back")
		}
		return nil, err
	}
	if expired {
		u.log.Warn().
			Str("payment_request_id", id).
			Str("transfer_ref", sig.TransferRef).
			Time("received_at", sig.ReceivedAt).
			Time("expires_at", out.ExpiresAt).
			Msg("settlement arrived after window, request expired")
		return out, domain.ErrExpiredSettlement
	}
	if terminal != nil {
		return out, terminal
	}
	if applied {
		u.log.Info().
			Str("payment_request_id", id).
			Str("subject_id", out.SubjectID).
			Str("kind", string(out.Kind)).
			Str("tier", out.TargetEntitlementID).
			Str("source", sig.Source).
			Msg("payment settled, entitlement applied")
		if u.notifier != nil {
			if err := u.notifier.NotifySettled(ctx, out); err != nil {
				u.log.Warn().Err(err).Msg("settled notification failed")
			}
		}
	}
	return out, nil
}

func (u *activationUC) applyEffect(ctx context.Context, tx repository.Tx, p *model.PaymentRequest, now time.Time) error {
	ok, err := u.subjects.Exists(ctx, tx, p.SubjectID)
	if err != nil {
		return err
	}
	if !ok {
		return domain.ErrSubjectNotFound
	}
	tier, err := u.catalog.GetTier(ctx, p.Kind, p.TargetEntitlementID)
	if err != nil {
		return err
	}

	switch p.Kind {
	case model.KindMembership:
		m, err := u.memberships.FindBySubject(ctx, tx, p.SubjectID)
		if errors.Is(err, domain.ErrNotFound) {
			m = &model.Membership{SubjectID: p.SubjectID}
		} else if err != nil {
			return err
		}
		m.Extend(tier.Code, now, tier.Duration())
		return u.memberships.Save(ctx, tx, m)

	case model.KindBoost:
		return u.boosts.Create(ctx, tx, &model.BoostWindow{
			ID:               uuid.NewString(),
			SubjectID:        p.SubjectID,
			Tier:             tier.Code,
			Multiplier:       tier.Multiplier,
			StartsAt:         now,
			EndsAt:           now.Add(tier.Duration()),
			PaymentRequestID: p.ID,
			CreatedAt:        now,
		})

	case model.KindInvitationPackage:
		gen := CodeGenerator{Prefix: "INV", Length: 8}
		codes := make([]*model.InvitationCode, 0, tier.CodeCount)
		for i := 0; i < tier.CodeCount; i++ {
			c, err := gen.New()
			if err != nil {
				return err
			}
			codes = append(codes, &model.InvitationCode{
				ID:               uuid.NewString(),
				Code:             c,
				SubjectID:        p.SubjectID,
				PaymentRequestID: p.ID,
				CreatedAt:        now,
			})
		}
		return u.invites.CreateBatch(ctx, tx, codes)
	}
	return fmt.Errorf("unknown product kind %q: %w", p.Kind, domain.ErrInvalidArgument)
}
