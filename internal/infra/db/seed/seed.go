// Package seed holds the launch catalog and loads it through the catalog use
// case, so seeded rows pass the same validation as admin upserts.
package seed

import (
	"context"

	"companion-billing/internal/domain/model"
	"companion-billing/internal/usecase"
)

// DefaultTiers is the launch catalog. Prices are VND.
func DefaultTiers() []*model.PricingTier {
	return []*model.PricingTier{
		{Kind: model.KindBoost, Code: "BASIC", Name: "Basic boost", Price: 49_000, DurationHours: 6, Multiplier: 1.2, SortOrder: 1,
			Capabilities: model.Capabilities{ProfileHighlight: true}},
		{Kind: model.KindBoost, Code: "STANDARD", Name: "Standard boost", Price: 99_000, DurationHours: 24, Multiplier: 1.5, SortOrder: 2,
			Capabilities: model.Capabilities{ProfileHighlight: true, FeaturedPlacement: true}},
		{Kind: model.KindBoost, Code: "PREMIUM", Name: "Premium boost", Price: 199_000, DurationHours: 72, Multiplier: 2, SortOrder: 3,
			Capabilities: model.Capabilities{ProfileHighlight: true, FeaturedPlacement: true, TopOfSearch: true}},

		{Kind: model.KindMembership, Code: "SILVER", Name: "Silver", Price: 99_000, DurationDays: 30, SortOrder: 1,
			Capabilities: model.Capabilities{UnlimitedMessages: true}},
		{Kind: model.KindMembership, Code: "GOLD", Name: "Gold", Price: 199_000, DurationDays: 30, SortOrder: 2,
			Capabilities: model.Capabilities{UnlimitedMessages: true, SeeProfileViewers: true, VerifiedBadge: true}},
		{Kind: model.KindMembership, Code: "PLATINUM", Name: "Platinum", Price: 499_000, DurationDays: 90, SortOrder: 3,
			Capabilities: model.Capabilities{UnlimitedMessages: true, SeeProfileViewers: true, VerifiedBadge: true, PrioritySupport: true, ReducedFees: true}},

		{Kind: model.KindInvitationPackage, Code: "Starter Pack", Name: "Starter Pack", Price: 50_000, PriceUSD: 199, CodeCount: 5, SortOrder: 1},
		{Kind: model.KindInvitationPackage, Code: "Social Pack", Name: "Social Pack", Price: 90_000, PriceUSD: 349, CodeCount: 10, SortOrder: 2},
		{Kind: model.KindInvitationPackage, Code: "Party Pack", Name: "Party Pack", Price: 200_000, PriceUSD: 799, CodeCount: 25, SortOrder: 3},
	}
}

// Catalog upserts tiers. Re-running it is harmless.
func Catalog(ctx context.Context, catalog usecase.CatalogUseCase, tiers []*model.PricingTier) (int, error) {
	n := 0
	for _, t := range tiers {
		cp := *t
		if _, err := catalog.Upsert(ctx, &cp); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}
