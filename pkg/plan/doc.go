// Package plan provides the static catalog of subscription tiers and their
// metered-usage limits.
//
// The catalog is a pure lookup table: every tier of the closed enum maps to a
// monthly quota, an optional daily quota, a per-unit overage price, and a set
// of feature flags. Lookups are total and fail closed: an unknown tier
// resolves to the most restrictive configured limits with overage disabled,
// never to unlimited access.
//
// Limits are loaded once at startup through a Source (in-memory or YAML file)
// and are immutable afterwards, so the catalog is safe for concurrent use.
//
//	catalog, err := plan.NewCatalog(ctx, plan.NewInMemSource(plan.DefaultLimits()))
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	limits := catalog.LimitsFor(plan.TierPro)
//	// limits.MonthlyQuota, limits.DailyQuota, limits.OverageUnitPrice
package plan
