// File: internal/infra/api/server.go
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/adapter"
	"companion-billing/internal/infra/adapters/bank"
	"companion-billing/internal/usecase"
)

// Deps are the collaborators behind the HTTP surface. Limiter, DevRail and
// Ready are optional.
type Deps struct {
	Ledger       usecase.PaymentLedger
	Detector     usecase.SettlementDetector
	Catalog      usecase.CatalogUseCase
	Fees         *usecase.FeePolicy
	Entitlements *usecase.EntitlementQuery
	Recon        usecase.ReconciliationUseCase
	Auth         *AuthManager

	Limiter     adapter.RateLimiter
	CreateLimit int // per subject per minute

	WebhookSecret string
	// DevRail receives simulated transfers; only set in dev mode.
	DevRail *bank.MemoryRail
	Account model.BankAccount

	Ready          func(ctx context.Context) error
	RequestTimeout time.Duration
	Dev            bool
}

type Server struct {
	d        Deps
	validate *validator.Validate
	log      *zerolog.Logger
	now      func() time.Time
}

func NewServer(d Deps, logger *zerolog.Logger) *Server {
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 10 * time.Second
	}
	if d.CreateLimit <= 0 {
		d.CreateLimit = 10
	}
	if d.Auth == nil {
		// no secret: every admin call is rejected
		d.Auth = NewAuthManager("", 0)
	}
	l := logger.With().Str("component", "api").Logger()
	return &Server{d: d, validate: validator.New(), log: &l, now: time.Now}
}

// SetClock aligns the expiry check in the status handler with a test clock.
func (s *Server) SetClock(now func() time.Time) { s.now = now }

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(TraceID())
	r.Use(Recover(s.log))
	r.Use(Metrics())
	r.Use(RequestLog(s.log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/readyz", s.ready)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(Timeout(s.d.RequestTimeout))

		r.Post("/payment-requests", s.createPaymentRequest)
		r.Get("/payment-requests/{id}", s.getPaymentRequest)
		r.Get("/payment-requests/{id}/status", s.getPaymentStatus)

		r.Get("/tiers/{kind}", s.listTiers)
		r.Get("/tiers/{kind}/{tier}", s.getTier)
		r.Get("/fees/booking", s.bookingQuote)
		r.Get("/fees/withdrawal", s.withdrawalFee)

		r.Get("/subjects/{id}/entitlements", s.getEntitlements)

		r.Post("/bank/notifications", s.bankNotification)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.d.Auth.RequireAdmin)
			r.Put("/tiers", s.upsertTier)
			r.Get("/reconciliation", s.listReconciliation)
			r.Post("/reconciliation/{id}/resolve", s.resolveReconciliation)
			r.Post("/payment-requests/{id}/fail", s.failPaymentRequest)
			r.Post("/payment-requests/{id}/check", s.checkPaymentRequest)
		})

		if s.d.DevRail != nil {
			r.Post("/dev/transfers", s.devTransfer)
		}
	})
	return r
}

func (s *Server) ready(w http.ResponseWriter, r *http.Request) {
	if s.d.Ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.d.Ready(ctx); err != nil {
			s.log.Warn().Err(err).Msg("readiness check failed")
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "not ready"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}
