package model

import (
	"strings"
	"time"

	"companion-billing/internal/domain"
)

// ProductKind identifies which catalog a purchase targets.
type ProductKind string

const (
	KindBoost             ProductKind = "boost"
	KindMembership        ProductKind = "membership"
	KindInvitationPackage ProductKind = "invitation_package"
)

func (k ProductKind) Valid() bool {
	switch k {
	case KindBoost, KindMembership, KindInvitationPackage:
		return true
	}
	return false
}

// ParseProductKind accepts the wire names case-insensitively.
func ParseProductKind(s string) (ProductKind, error) {
	k := ProductKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", domain.ErrInvalidArgument
	}
	return k, nil
}

// Capabilities are the tier-specific feature flags. Boost tiers use the
// placement flags, membership tiers the account flags.
type Capabilities struct {
	FeaturedPlacement bool `json:"featured_placement,omitempty"`
	ProfileHighlight  bool `json:"profile_highlight,omitempty"`
	TopOfSearch       bool `json:"top_of_search,omitempty"`
	VerifiedBadge     bool `json:"verified_badge,omitempty"`
	PrioritySupport   bool `json:"priority_support,omitempty"`
	UnlimitedMessages bool `json:"unlimited_messages,omitempty"`
	SeeProfileViewers bool `json:"see_profile_viewers,omitempty"`
	ReducedFees       bool `json:"reduced_fees,omitempty"`
}

// PricingTier is one purchasable catalog row. Boost and membership tiers are
// keyed by Code; invitation packages use their unique name as Code.
//
// Price is in VND (no minor unit). PriceUSD is in cents and only meaningful for
// invitation packages.
type PricingTier struct {
	Kind          ProductKind  `json:"kind" validate:"required,oneof=boost membership invitation_package"`
	Code          string       `json:"tier" validate:"required,max=64"`
	Name          string       `json:"name" validate:"required,max=128"`
	Price         int64        `json:"price" validate:"gt=0"`
	PriceUSD      int64        `json:"price_usd,omitempty" validate:"gte=0"`
	DurationHours int          `json:"duration_hours,omitempty" validate:"gte=0"`
	DurationDays  int          `json:"duration_days,omitempty" validate:"gte=0"`
	Multiplier    float64      `json:"multiplier,omitempty" validate:"gte=0"`
	CodeCount     int          `json:"code_count,omitempty" validate:"gte=0"`
	Capabilities  Capabilities `json:"capabilities"`
	SortOrder     int          `json:"sort_order"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// NormalizeTierCode upper-cases tier codes; package names keep their case but
// lose surrounding whitespace.
func NormalizeTierCode(kind ProductKind, code string) string {
	code = strings.TrimSpace(code)
	if kind == KindInvitationPackage {
		return code
	}
	return strings.ToUpper(code)
}

// CheckKindFields enforces the per-kind shape that struct tags can't express.
func (t *PricingTier) CheckKindFields() error {
	switch t.Kind {
	case KindBoost:
		if t.DurationHours <= 0 || t.Multiplier < 1 {
			return domain.ErrInvalidArgument
		}
	case KindMembership:
		if t.DurationDays <= 0 {
			return domain.ErrInvalidArgument
		}
	case KindInvitationPackage:
		if t.CodeCount <= 0 {
			return domain.ErrInvalidArgument
		}
	default:
		return domain.ErrInvalidArgument
	}
	return nil
}

// Duration is the entitlement length granted by this tier (zero for packages).
func (t *PricingTier) Duration() time.Duration {
	switch t.Kind {
	case KindBoost:
		return time.Duration(t.DurationHours) * time.Hour
	case KindMembership:
		return time.Duration(t.DurationDays) * 24 * time.Hour
	}
	return 0
}
