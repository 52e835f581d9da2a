package sched

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"companion-billing/internal/domain/ports/repository"
	"companion-billing/internal/infra/metrics"
	"companion-billing/internal/infra/worker"
	"companion-billing/internal/usecase"
)

// SettlementPoller periodically asks the detector about every pending request.
// Checks fan out to the worker pool; a request already being checked is
// skipped until its check finishes.
type SettlementPoller struct {
	interval time.Duration
	batch    int
	payments repository.PaymentRequestRepository
	detector usecase.SettlementDetector
	pool     *worker.Pool
	log      *zerolog.Logger

	mu       sync.Mutex
	inflight map[string]struct{}
}

func NewSettlementPoller(interval time.Duration, batch int, payments repository.PaymentRequestRepository, detector usecase.SettlementDetector, pool *worker.Pool, logger *zerolog.Logger) *SettlementPoller {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 200
	}
	l := logger.With().Str("component", "SettlementPoller").Logger()
	return &SettlementPoller{
		interval: interval,
		batch:    batch,
		payments: payments,
		detector: detector,
		pool:     pool,
		log:      &l,
		inflight: make(map[string]struct{}),
	}
}

func (w *SettlementPoller) Run(ctx context.Context) error {
	w.log.Info().Dur("interval", w.interval).Msg("Starting settlement poller")
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("Stopping settlement poller")
			return ctx.Err()
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick lists pending requests and submits one check per request. It returns
// the number of checks submitted.
func (w *SettlementPoller) Tick(ctx context.Context) int {
	start := time.Now()
	pending, err := w.payments.ListPending(ctx, repository.NoTX, w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("list pending failed")
		metrics.ObserveJob("settlement_poll", "error", time.Since(start))
		return 0
	}

	submitted := 0
	for _, p := range pending {
		id := p.ID
		if !w.claim(id) {
			continue
		}
		err := w.pool.Submit(func(ctx context.Context) error {
			defer w.release(id)
			outcome, err := w.detector.CheckSettlement(ctx, id)
			if err != nil {
				metrics.IncSettlementOutcome(usecase.SourcePoll, "error")
				return err
			}
			metrics.IncSettlementOutcome(usecase.SourcePoll, string(outcome))
			return nil
		})
		if err != nil {
			w.release(id)
			w.log.Debug().Err(err).Str("payment_id", id).Msg("check not submitted")
			continue
		}
		submitted++
	}

	status := "ok"
	if len(pending) == 0 {
		status = "skipped"
	}
	metrics.ObserveJob("settlement_poll", status, time.Since(start))
	return submitted
}

func (w *SettlementPoller) claim(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.inflight[id]; ok {
		return false
	}
	w.inflight[id] = struct{}{}
	return true
}

func (w *SettlementPoller) release(id string) {
	w.mu.Lock()
	delete(w.inflight, id)
	w.mu.Unlock()
}
