// File: cmd/app/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"companion-billing/internal/config"
	"companion-billing/internal/domain/ports/adapter"
	"companion-billing/internal/infra/adapters/bank"
	tele "companion-billing/internal/infra/adapters/telegram"
	"companion-billing/internal/infra/api"
	pg "companion-billing/internal/infra/db/postgres"
	"companion-billing/internal/infra/logging"
	"companion-billing/internal/infra/metrics"
	red "companion-billing/internal/infra/redis"
	"companion-billing/internal/infra/sched"
	"companion-billing/internal/infra/worker"
	"companion-billing/internal/usecase"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- CLI flags ----
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "enable developer mode (memory rail, simulated transfers)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("[DEV MODE] Enabled")
	}
	metrics.MustRegister()

	// ---- Redis (optional) ----
	var (
		rc       *red.Client
		locker   adapter.Locker
		reserver adapter.CodeReserver
		limiter  adapter.RateLimiter
	)
	if cfg.Redis.URL != "" {
		rc, err = red.NewClient(ctx, &cfg.Redis)
		if err != nil {
			logger.Fatal().Err(err).Msg("redis")
		}
		defer rc.Close()
		locker = red.NewLocker(rc)
		reserver = red.NewCodeReserver(rc)
		limiter = red.NewRateLimiter(rc)
	} else {
		logger.Warn().Msg("redis not configured: no detector lock, code reservation or rate limit")
	}

	// ---- Persistence ----
	st, err := openStores(ctx, cfg, rc, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("database")
	}
	defer st.Close()

	// ---- Adapters ----
	var rail adapter.BankingRail
	var devRail *bank.MemoryRail
	switch cfg.Bank.Rail {
	case "http":
		rail, err = bank.NewHTTPRail(cfg.Bank.APIBaseURL, cfg.Bank.APIKey, cfg.Bank.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("bank rail")
		}
	default:
		devRail = bank.NewMemoryRail()
		rail = devRail
	}
	logger.Info().Str("rail", rail.Name()).
		Str("account", logging.Redact(cfg.Bank.Account.AccountNumber, cfg.Runtime.Dev)).Msg("banking rail ready")

	var notifier adapter.OpsNotifier = tele.NewNoopNotifier(logger)
	if cfg.Telegram.Token != "" {
		n, err := tele.NewOpsNotifier(&cfg.Telegram, logger)
		if err != nil {
			logger.Error().Err(err).Msg("telegram notifier disabled")
		} else {
			notifier = n
		}
	}
	notifier = tele.NewMetered(notifier)

	// ---- Use cases ----
	codes := usecase.CodeGenerator{Prefix: cfg.Payment.CodePrefix, Length: cfg.Payment.CodeLength}
	catalog := usecase.NewCatalogUseCase(st.pricing, logger)
	if err := seedMemory(ctx, st, catalog); err != nil {
		logger.Fatal().Err(err).Msg("seed memory store")
	}
	// the snapshot must exist before any transaction reads it
	if err := catalog.Refresh(ctx); err != nil {
		logger.Fatal().Err(err).Msg("load catalog")
	}

	ledger := usecase.NewPaymentLedger(st.tm, st.payments, st.subjects, catalog, bank.NewVietQR(cfg.Bank.DeeplinkBanks), reserver,
		usecase.LedgerConfig{
			Account:      cfg.Bank.Account,
			Window:       cfg.Payment.Window,
			CodeCooldown: cfg.Payment.CodeCooldown,
			SweepGrace:   cfg.Scheduler.SweepGrace,
			Codes:        codes,
		}, logger)
	activator := usecase.NewEntitlementActivator(st.tm, st.payments, st.subjects, st.memberships, st.boosts, st.invites, catalog, notifier, logger)
	recon := usecase.NewReconciliationUseCase(st.reconciliation, notifier, logger)
	detector := usecase.NewSettlementDetector(st.payments, rail, activator, recon, locker,
		usecase.DetectorConfig{Lookback: cfg.Scheduler.SettlementLookback, LockTTL: cfg.Scheduler.DetectorLockTTL, Codes: codes}, logger)
	ledger.SetDetector(detector)
	entitlements := usecase.NewEntitlementQuery(st.subjects, st.memberships, st.boosts, st.invites)

	// ---- Workers ----
	pool := worker.NewPool(cfg.Scheduler.PollWorkers, logger)
	pool.Start(ctx)

	var wg sync.WaitGroup
	runJob := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error().Err(err).Str("job", name).Msg("background job stopped")
			}
		}()
	}
	runJob("settlement_poll", sched.NewSettlementPoller(cfg.Scheduler.PollInterval, cfg.Scheduler.PollBatch, st.payments, detector, pool, logger).Run)
	runJob("expiry_sweep", sched.NewExpirySweeper(cfg.Scheduler.SweepInterval, ledger, logger).Run)
	runJob("catalog_refresh", sched.NewCatalogRefresher(cfg.Scheduler.CatalogRefresh, catalog, logger).Run)
	if st.pool != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			pg.ReportPoolStats(ctx, st.pool, 15*time.Second)
		}()
	}

	// ---- HTTP ----
	deps := api.Deps{
		Ledger:         ledger,
		Detector:       detector,
		Catalog:        catalog,
		Fees:           usecase.NewFeePolicy(cfg.Fees),
		Entitlements:   entitlements,
		Recon:          recon,
		Auth:           api.NewAuthManager(cfg.Admin.JWTSecret, cfg.Admin.TokenTTL),
		Limiter:        limiter,
		CreateLimit:    cfg.HTTP.CreateRateLimit,
		WebhookSecret:  cfg.Bank.WebhookSecret,
		Account:        cfg.Bank.Account,
		Ready:          st.ready,
		RequestTimeout: cfg.HTTP.RequestTimeout,
		Dev:            cfg.Runtime.Dev,
	}
	if cfg.Runtime.Dev {
		deps.DevRail = devRail
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.HTTP.Port),
		Handler:           api.NewServer(deps, logger).Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info().Str("addr", server.Addr).Msg("http listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("http server error")
			cancel()
		}
	}()

	// ---- Graceful shutdown ----
	sigc := make(chan os.Signal, 1)
	signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigc:
	case <-ctx.Done():
	}
	logger.Info().Msg("shutdown requested")
	shutdown(server, cancel, pool, &wg, logger)
}

func shutdown(server *http.Server, cancel context.CancelFunc, pool *worker.Pool, wg *sync.WaitGroup, logger *zerolog.Logger) {
	sctx, scancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer scancel()
	if err := server.Shutdown(sctx); err != nil {
		logger.Warn().Err(err).Msg("http shutdown")
	}
	cancel()
	wg.Wait()
	pool.Stop()
	logger.Info().Msg("bye")
}
