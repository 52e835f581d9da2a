package usecase

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"companion-billing/internal/domain"
	"companion-billing/internal/domain/model"
	"companion-billing/internal/domain/ports/repository"
)

// Compile-time check
var _ CatalogUseCase = (*catalogUC)(nil)

// CatalogUseCase serves the pricing reference data. Reads never touch the
// database: they hit an immutable in-process snapshot that Refresh swaps.
type CatalogUseCase interface {
	GetTier(ctx context.Context, kind model.ProductKind, code string) (*model.PricingTier, error)
	ListTiers(ctx context.Context, kind model.ProductKind) ([]*model.PricingTier, error)
	// Upsert writes through to the store and reloads the snapshot.
	Upsert(ctx context.Context, t *model.PricingTier) (*model.PricingTier, error)
	Refresh(ctx context.Context) error
}

type catalogKey struct {
	kind model.ProductKind
	code string
}

type catalogSnapshot struct {
	byKey    map[catalogKey]*model.PricingTier
	byKind   map[model.ProductKind][]*model.PricingTier
	loadedAt time.Time
}

type catalogUC struct {
	repo     repository.PricingRepository
	snap     atomic.Pointer[catalogSnapshot]
	validate *validator.Validate
	log      *zerolog.Logger
	now      func() time.Time
}

func NewCatalogUseCase(repo repository.PricingRepository, logger *zerolog.Logger) *catalogUC {
	l := logger.With().Str("component", "catalog").Logger()
	return &catalogUC{repo: repo, validate: validator.New(), log: &l, now: time.Now}
}

func (u *catalogUC) snapshot(ctx context.Context) (*catalogSnapshot, error) {
	if s := u.snap.Load(); s != nil {
		return s, nil
	}
	if err := u.Refresh(ctx); err != nil {
		return nil, err
	}
	return u.snap.Load(), nil
}

func (u *catalogUC) GetTier(ctx context.Context, kind model.ProductKind, code string) (*model.PricingTier, error) {
	if !kind.Valid() {
		return nil, domain.ErrTierNotFound
	}
	s, err := u.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	t, ok := s.byKey[catalogKey{kind, model.NormalizeTierCode(kind, code)}]
	if !ok {
		return nil, domain.ErrTierNotFound
	}
	cp := *t
	return &cp, nil
}

func (u *catalogUC) ListTiers(ctx context.Context, kind model.ProductKind) ([]*model.PricingTier, error) {
	if !kind.Valid() {
		return nil, domain.ErrInvalidArgument
	}
	s, err := u.snapshot(ctx)
	if err != nil {
		return nil, err
	}
	src := s.byKind[kind]
	out := make([]*model.PricingTier, 0, len(src))
	for _, t := range src {
		cp := *t
		out = append(out, &cp)
	}
	return out, nil
}

func (u *catalogUC) Upsert(ctx context.Context, t *model.PricingTier) (*model.PricingTier, error) {
	if t == nil {
		return nil, domain.ErrInvalidArgument
	}
	t.Code = model.NormalizeTierCode(t.Kind, t.Code)
	if err := u.validate.Struct(t); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	if err := t.CheckKindFields(); err != nil {
		return nil, fmt.Errorf("tier %s/%s: %w", t.Kind, t.Code, err)
	}
	t.UpdatedAt = u.now()
	if err := u.repo.Upsert(ctx, repository.NoTX, t); err != nil {
		return nil, err
	}
	u.log.Info().Str("kind", string(t.Kind)).Str("tier", t.Code).Int64("price", t.Price).Msg("tier upserted")
	if err := u.Refresh(ctx); err != nil {
		return nil, err
	}
	return u.GetTier(ctx, t.Kind, t.Code)
}

// Refresh loads the whole catalog and publishes it as one snapshot.
func (u *catalogUC) Refresh(ctx context.Context) error {
	all, err := u.repo.ListAll(ctx, repository.NoTX)
	if err != nil {
		return fmt.Errorf("load catalog: %w", err)
	}
	s := &catalogSnapshot{
		byKey:    make(map[catalogKey]*model.PricingTier, len(all)),
		byKind:   make(map[model.ProductKind][]*model.PricingTier, 3),
		loadedAt: u.now(),
	}
	for _, t := range all {
		cp := *t
		s.byKey[catalogKey{cp.Kind, cp.Code}] = &cp
		s.byKind[cp.Kind] = append(s.byKind[cp.Kind], &cp)
	}
	for _, list := range s.byKind {
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].SortOrder != list[j].SortOrder {
				return list[i].SortOrder < list[j].SortOrder
			}
			return list[i].Price < list[j].Price
		})
	}
	u.snap.Store(s)
	u.log.Debug().Int("tiers", len(all)).Msg("catalog snapshot refreshed")
	return nil
}

// Counts reports tiers per kind in the current snapshot.
func (u *catalogUC) Counts() map[model.ProductKind]int {
	out := map[model.ProductKind]int{}
	s := u.snap.Load()
	if s == nil {
		return out
	}
	for k, list := range s.byKind {
		out[k] = len(list)
	}
	return out
}
