package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"companion-billing/internal/infra/metrics"
	"companion-billing/internal/usecase"
)

// ExpirySweeper periodically expires pending requests whose window is over,
// so abandoned requests do not wait for a status read.
type ExpirySweeper struct {
	interval time.Duration
	ledger   usecase.PaymentLedger
	log      *zerolog.Logger
}

func NewExpirySweeper(interval time.Duration, ledger usecase.PaymentLedger, logger *zerolog.Logger) *ExpirySweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	l := logger.With().Str("component", "ExpirySweeper").Logger()
	return &ExpirySweeper{interval: interval, ledger: ledger, log: &l}
}

func (w *ExpirySweeper) Run(ctx context.Context) error {
	w.log.Info().Msg("Starting expiry sweeper")
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping expiry sweeper")
			return ctx.Err()
		case <-ticker.C:
			w.Tick(ctx)
		}
	}
}

func (w *ExpirySweeper) Tick(ctx context.Context) int {
	start := time.Now()
	n, err := w.ledger.ExpireStale(ctx)
	if err != nil {
		w.log.Error().Err(err).Int("expired", n).Msg("expiry sweep error")
		metrics.ObserveJob("expiry_sweep", "error", time.Since(start))
	} else {
		metrics.ObserveJob("expiry_sweep", "ok", time.Since(start))
	}
	if n > 0 {
		metrics.AddExpired("sweep", n)
		w.log.Info().Int("count", n).Msg("expired stale payment requests")
	}
	return n
}
