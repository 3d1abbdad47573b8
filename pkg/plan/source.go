package plan

import (
	"context"
	"slices"
)

// inMemSource implements the Source interface using an in-memory limits map.
type inMemSource struct {
	limits map[Tier]Limits
}

// NewInMemSource returns an in-memory Source with a deep copy of the given limits.
func NewInMemSource(limits map[Tier]Limits) Source {
	return &inMemSource{limits: cloneLimits(limits)}
}

// Load returns a copy of all configured tier limits.
func (s *inMemSource) Load(ctx context.Context) (map[Tier]Limits, error) {
	return cloneLimits(s.limits), nil
}

func cloneLimits(limits map[Tier]Limits) map[Tier]Limits {
	out := make(map[Tier]Limits, len(limits))
	for tier, l := range limits {
		l.Features = slices.Clone(l.Features)
		out[tier] = l
	}
	return out
}

// DefaultLimits returns the built-in tier table used when no external catalog
// source is configured. Quotas are metered generation credits per period.
func DefaultLimits() map[Tier]Limits {
	return map[Tier]Limits{
		TierFree: {
			MonthlyQuota: 5,
		},
		TierBasic: {
			MonthlyQuota:     100,
			DailyQuota:       20,
			OverageUnitPrice: Money{Amount: 15, Currency: "USD"},
			Features:         []Feature{FeatureAPI},
		},
		TierPro: {
			MonthlyQuota:     500,
			DailyQuota:       100,
			OverageUnitPrice: Money{Amount: 12, Currency: "USD"},
			Features:         []Feature{FeatureAPI, FeatureBulkExport, FeatureCustomVoice},
		},
		TierAgency: {
			MonthlyQuota:     2500,
			OverageUnitPrice: Money{Amount: 10, Currency: "USD"},
			Features: []Feature{
				FeatureAPI, FeatureBulkExport, FeatureCustomVoice,
				FeatureTeamSeats, FeatureWhiteLabel, FeaturePrioritySlots,
			},
		},
	}
}
