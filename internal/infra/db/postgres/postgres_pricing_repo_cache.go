package postgres

import (
	"context"
	"encoding/json"
	"time"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
	"companion-billing/internal/infra/metrics"
	red "companion-billing/internal/infra/redis"
)

var _ repository.PricingRepository = (*pricingRepoCacheDecorator)(nil)

const catalogCacheKey = "catalog:all"

// pricingRepoCacheDecorator shares one catalog read across replicas: each
// refresher tick hits redis instead of every instance scanning the table.
type pricingRepoCacheDecorator struct {
	inner repository.PricingRepository
	cache red.RedisClient
	ttl   time.Duration
}

func NewPricingRepoCacheDecorator(inner repository.PricingRepository, cache red.RedisClient, ttl time.Duration) repository.PricingRepository {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &pricingRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl}
}

// For write operations, we must invalidate the cache.
func (d *pricingRepoCacheDecorator) Upsert(ctx context.Context, tx repository.Tx, t *model.PricingTier) error {
	if err := d.inner.Upsert(ctx, tx, t); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, catalogCacheKey)
	return nil
}

func (d *pricingRepoCacheDecorator) ListAll(ctx context.Context, tx repository.Tx) ([]*model.PricingTier, error) {
	// reads inside a transaction must see the transaction's view
	if tx != nil {
		return d.inner.ListAll(ctx, tx)
	}
	val, err := d.cache.Get(ctx, catalogCacheKey)
	if err == nil {
		var tiers []*model.PricingTier
		if json.Unmarshal([]byte(val), &tiers) == nil {
			metrics.IncCacheRequest("catalog", "hit")
			return tiers, nil
		}
	}

	metrics.IncCacheRequest("catalog", "miss")
	tiers, err := d.inner.ListAll(ctx, tx)
	if err != nil {
		return nil, err
	}
	if b, err := json.Marshal(tiers); err == nil {
		_ = d.cache.Set(ctx, catalogCacheKey, b, d.ttl)
	}
	return tiers, nil
}
