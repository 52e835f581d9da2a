//go:build !integration

package seed

import (
	"context"
	"testing"

	"github.com/rs/zerolog"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/infra/db/memory"
	"companion-billing/internal/usecase"
)

func TestCatalog_Idempotent(t *testing.T) {
	ctx := context.Background()
	logger := zerolog.Nop()
	store := memory.NewStore()
	catalog := usecase.NewCatalogUseCase(store.Pricing(), &logger)

	for i := 0; i < 2; i++ {
		n, err := Catalog(ctx, catalog, DefaultTiers())
		if err != nil {
			t.Fatalf("seed run %d: %v", i, err)
		}
		if n != len(DefaultTiers()) {
			t.Fatalf("seeded %d", n)
		}
	}

	boosts, err := catalog.ListTiers(ctx, model.KindBoost)
	if err != nil || len(boosts) != 3 {
		t.Fatalf("boosts = %v, %v", boosts, err)
	}
	std, err := catalog.GetTier(ctx, model.KindBoost, "STANDARD")
	if err != nil {
		t.Fatalf("GetTier: %v", err)
	}
	if std.Price != 99_000 || std.DurationHours != 24 || std.Multiplier != 1.5 {
		t.Fatalf("STANDARD = %+v", std)
	}
}
