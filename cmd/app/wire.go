package main

import (
	"context"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/rs/zerolog"

	"companion-billing/internal/config"
	"companion-billing/internal/domain/ports/repository"
	"companion-billing/internal/infra/db/memory"
	pg "companion-billing/internal/infra/db/postgres"
	"companion-billing/internal/infra/db/seed"
	red "companion-billing/internal/infra/redis"
	"companion-billing/internal/usecase"
)

// stores is the persistence wiring shared by both backends.
type stores struct {
	tm             repository.TransactionManager
	payments       repository.PaymentRequestRepository
	pricing        repository.PricingRepository
	subjects       repository.SubjectRepository
	memberships    repository.MembershipRepository
	boosts         repository.BoostRepository
	invites        repository.InvitationCodeRepository
	reconciliation repository.ReconciliationRepository

	pool  *pgxpool.Pool // nil for the memory backend
	mem   *memory.Store // nil for postgres
	ready func(ctx context.Context) error
}

func isMemoryURL(u string) bool { return strings.HasPrefix(u, "memory://") }

func openStores(ctx context.Context, cfg *config.Config, rc *red.Client, logger *zerolog.Logger) (*stores, error) {
	if isMemoryURL(cfg.Database.URL) {
		m := memory.NewStore()
		return &stores{
			tm: m, payments: m.Payments(), pricing: m.Pricing(), subjects: m.Subjects(),
			memberships: m.Memberships(), boosts: m.Boosts(), invites: m.Invitations(),
			reconciliation: m.Reconciliation(), mem: m,
			ready: func(context.Context) error { return nil },
		}, nil
	}

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		return nil, err
	}
	var pricing repository.PricingRepository = pg.NewPricingRepo(pool)
	if rc != nil {
		pricing = pg.NewPricingRepoCacheDecorator(pricing, rc, cfg.Scheduler.CatalogRefresh)
	}
	logger.Info().Int32("max_conns", cfg.Database.MaxConns).Msg("postgres connected")
	return &stores{
		tm:             pg.NewTxManager(pool),
		payments:       pg.NewPaymentRequestRepo(pool),
		pricing:        pricing,
		subjects:       pg.NewSubjectRepo(pool),
		memberships:    pg.NewMembershipRepo(pool),
		boosts:         pg.NewBoostRepo(pool),
		invites:        pg.NewInvitationCodeRepo(pool),
		reconciliation: pg.NewReconciliationRepo(pool),
		pool:           pool,
		ready:          func(ctx context.Context) error { return pool.Ping(ctx) },
	}, nil
}

// seedMemory gives a memory-backed dev server something to sell.
func seedMemory(ctx context.Context, s *stores, catalog usecase.CatalogUseCase) error {
	if s.mem == nil {
		return nil
	}
	for _, id := range []string{"subject-1", "subject-2", "subject-3"} {
		s.mem.AddSubject(id)
	}
	_, err := seed.Catalog(ctx, catalog, seed.DefaultTiers())
	return err
}

func (s *stores) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}
