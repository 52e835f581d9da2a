package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"companion-billing/internal/config"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
	pg "companion-billing/internal/infra/db/postgres"
	"companion-billing/internal/infra/db/seed"
	"companion-billing/internal/infra/logging"
	"companion-billing/internal/usecase"
)

func main() {
	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	subjects := flag.String("subjects", "", "comma-separated subject ids to register (demo data)")
	flag.Parse()

	// ---- Config ----
	cfg, err := config.LoadConfig(*cfgPath, false)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	logger := logging.New(config.LogConfig{Level: "warn", Format: "console"}, true)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Connect Postgres
	dbCfg := cfg.Database
	dbCfg.MaxConns = 2
	pool, err := pg.NewPgxPool(ctx, dbCfg)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer pool.Close()

	catalog := usecase.NewCatalogUseCase(pg.NewPricingRepo(pool), logger)
	if _, err := seed.Catalog(ctx, catalog, seed.DefaultTiers()); err != nil {
		log.Fatalf("seed catalog: %v", err)
	}
	for _, kind := range []model.ProductKind{model.KindBoost, model.KindMembership, model.KindInvitationPackage} {
		tiers, err := catalog.ListTiers(ctx, kind)
		if err != nil {
			log.Fatalf("list %s: %v", kind, err)
		}
		fmt.Printf("%s:\n", kind)
		for _, t := range tiers {
			fmt.Printf("  - %-14s %-16s price=%d VND hours=%d days=%d x%.1f codes=%d\n",
				t.Code, t.Name, t.Price, t.DurationHours, t.DurationDays, t.Multiplier, t.CodeCount)
		}
	}

	if *subjects != "" {
		repo := pg.NewSubjectRepo(pool)
		for _, id := range strings.Split(*subjects, ",") {
			id = strings.TrimSpace(id)
			if id == "" {
				continue
			}
			if err := repo.Upsert(ctx, repository.NoTX, id, id); err != nil {
				log.Fatalf("subject %q: %v", id, err)
			}
			fmt.Printf("subject: %s\n", id)
		}
	}

	fmt.Println("✅ Seeding complete.")
}
