package plan

import (
	"context"
	"errors"
	"fmt"
)

// Source defines how tier limits are loaded into the catalog.
type Source interface {
	Load(ctx context.Context) (map[Tier]Limits, error)
}

// Catalog is a static lookup table from plan tier to usage limits.
// The table is immutable after construction, so lookups are safe for
// concurrent use without locking.
type Catalog struct {
	limits map[Tier]Limits
}

// NewCatalog loads tier limits from the source and validates them.
// Every tier of the closed enum must have an entry so that LimitsFor
// stays a total function.
func NewCatalog(ctx context.Context, src Source) (*Catalog, error) {
	if src == nil {
		panic("plan: Source is required")
	}

	limits, err := src.Load(ctx)
	if err != nil {
		return nil, errors.Join(ErrFailedToLoadCatalog, err)
	}

	if err := validateLimits(limits); err != nil {
		return nil, err
	}

	return &Catalog{limits: limits}, nil
}

// LimitsFor returns the limits for a tier. The function is total: an unknown
// tier falls back to the most restrictive configured limits with overage
// disabled, never to unlimited access. Callers that must fail closed on a
// corrupted tier should check Tier.Valid separately.
func (c *Catalog) LimitsFor(tier Tier) Limits {
	if l, ok := c.limits[tier]; ok {
		return l
	}
	return c.MostRestrictive()
}

// MostRestrictive returns the limits with the smallest monthly quota and
// overage disabled. Used as the fail-closed fallback for unknown tiers.
func (c *Catalog) MostRestrictive() Limits {
	var out Limits
	first := true
	for _, l := range c.limits {
		if first || lessRestrictive(out, l) {
			out = l
			first = false
		}
	}
	out.OverageUnitPrice = Money{}
	out.Features = nil
	return out
}

// HasFeature reports whether a feature is enabled for the tier.
// Fails closed: unknown tiers have no features.
func (c *Catalog) HasFeature(tier Tier, feature Feature) bool {
	l, ok := c.limits[tier]
	if !ok {
		return false
	}
	for _, f := range l.Features {
		if f == feature {
			return true
		}
	}
	return false
}

// lessRestrictive reports whether candidate is more restrictive than current.
func lessRestrictive(current, candidate Limits) bool {
	if current.MonthlyQuota == Unlimited {
		return candidate.MonthlyQuota != Unlimited
	}
	if candidate.MonthlyQuota == Unlimited {
		return false
	}
	return candidate.MonthlyQuota < current.MonthlyQuota
}

// validateLimits ensures the catalog is internally consistent.
// Catches configuration errors at startup rather than at decision time.
func validateLimits(limits map[Tier]Limits) error {
	if len(limits) == 0 {
		return errors.Join(ErrInvalidCatalog, errors.New("catalog is empty"))
	}

	for _, tier := range []Tier{TierFree, TierBasic, TierPro, TierAgency} {
		if _, ok := limits[tier]; !ok {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("missing entry for tier %q", tier))
		}
	}

	for tier, l := range limits {
		if !tier.Valid() {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("unknown tier %q in catalog", tier))
		}
		if l.MonthlyQuota < Unlimited {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("tier %s has invalid monthly quota %d", tier, l.MonthlyQuota))
		}
		if l.DailyQuota < 0 {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("tier %s has negative daily quota %d", tier, l.DailyQuota))
		}
		if l.OverageUnitPrice.Amount < 0 {
			return errors.Join(ErrInvalidCatalog,
				fmt.Errorf("tier %s has negative overage price %d", tier, l.OverageUnitPrice.Amount))
		}
	}

	return nil
}
