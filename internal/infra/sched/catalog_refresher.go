package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/infra/metrics"
)

type catalogSource interface {
	Refresh(ctx context.Context) error
	Counts() map[model.ProductKind]int
}

// CatalogRefresher reloads the in-memory catalog snapshot so tiers changed
// directly in the database show up without a restart.
type CatalogRefresher struct {
	interval time.Duration
	catalog  catalogSource
	log      *zerolog.Logger
}

func NewCatalogRefresher(interval time.Duration, catalog catalogSource, logger *zerolog.Logger) *CatalogRefresher {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	l := logger.With().Str("component", "CatalogRefresher").Logger()
	return &CatalogRefresher{interval: interval, catalog: catalog, log: &l}
}

func (w *CatalogRefresher) Run(ctx context.Context) error {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			_ = w.Tick(ctx)
		}
	}
}

func (w *CatalogRefresher) Tick(ctx context.Context) error {
	start := time.Now()
	if err := w.catalog.Refresh(ctx); err != nil {
		// keep serving the previous snapshot
		w.log.Warn().Err(err).Msg("catalog refresh failed")
		metrics.ObserveJob("catalog_refresh", "error", time.Since(start))
		return err
	}
	for kind, n := range w.catalog.Counts() {
		metrics.SetCatalogTiers(string(kind), n)
	}
	metrics.ObserveJob("catalog_refresh", "ok", time.Since(start))
	return nil
}
