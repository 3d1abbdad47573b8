package usagegate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/entitlement"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/plan"
)

// EntitlementReader is the read-only slice of the entitlement store the gate
// needs. The gate never mutates entitlements.
type EntitlementReader interface {
	Get(ctx context.Context, tenantID uuid.UUID) (entitlement.Entitlement, error)
}

// ConsentResolver reports whether the tenant has opted in to overage billing.
// Must be computable from local state: the gate's decision path cannot stall
// behind a slow external dependency.
type ConsentResolver func(ctx context.Context, tenantID uuid.UUID) bool

// Gate is the synchronous decision point called on every metered request.
// It reads the entitlement and the usage ledger, decides
// allow / allow-with-overage / deny, and performs the counter and overage
// writes. It owns no other side effects; the caller performs the metered
// action only after an allowed decision.
type Gate struct {
	entitlements EntitlementReader
	counters     ledger.Store
	overages     ledger.OverageStore
	catalog      *plan.Catalog
	consent      ConsentResolver
	now          func() time.Time
}

// New creates a usage gate. Panics on nil required dependencies to fail fast
// during initialization.
func New(entitlements EntitlementReader, counters ledger.Store, overages ledger.OverageStore, catalog *plan.Catalog, opts ...Option) *Gate {
	if entitlements == nil {
		panic("usagegate: EntitlementReader is required")
	}
	if counters == nil {
		panic("usagegate: ledger.Store is required")
	}
	if overages == nil {
		panic("usagegate: ledger.OverageStore is required")
	}
	if catalog == nil {
		panic("usagegate: plan.Catalog is required")
	}

	g := &Gate{
		entitlements: entitlements,
		counters:     counters,
		overages:     overages,
		catalog:      catalog,
		consent:      func(context.Context, uuid.UUID) bool { return false },
		now:          func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// CheckAndConsume decides whether a metered request may proceed and records
// its consumption.
//
// Ledger policy: the attempt is counted even when the decision is a denial.
// The counter increment is the atomic quota check, so unwinding it would
// reintroduce the check-then-act race; the Allowed/Denied signal alone gates
// the side effect that follows, and the ledger stays monotonically accurate
// for rejected attempts a caller insists on retrying.
func (g *Gate) CheckAndConsume(ctx context.Context, tenantID uuid.UUID, units int64, opts ...ConsumeOption) (Decision, error) {
	if units <= 0 {
		units = 1
	}

	var co consumeOptions
	for _, opt := range opts {
		opt(&co)
	}

	ent, err := g.entitlements.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, entitlement.ErrNotFound) {
			// A tenant that never subscribed runs on the free-tier default.
			ent = entitlement.New(tenantID)
		} else {
			return Decision{}, fmt.Errorf("failed to read entitlement: %w", err)
		}
	}

	// Corrupted or unknown tier fails closed: deny rather than risk granting
	// unmetered access.
	if !ent.Tier.Valid() {
		return denied(DenySubscriptionRequired, 0, 0), nil
	}

	// A paid-tier tenant without an active subscription is blocked outright.
	// Letting them silently burn free-tier quota would mask the payment
	// problem instead of surfacing it.
	if ent.Tier != plan.TierFree && !ent.HasActiveSubscription() {
		return denied(DenySubscriptionRequired, 0, 0), nil
	}

	limits := g.catalog.LimitsFor(ent.Tier)
	overageOK := limits.OverageSupported() && (co.overageOptIn || g.consent(ctx, tenantID))

	now := g.now()

	if limits.HasDailyQuota() {
		dailyTotal, err := g.counters.Increment(ctx, tenantID, ledger.Daily(now), units)
		if err != nil {
			return Decision{}, fmt.Errorf("failed to increment daily counter: %w", err)
		}
		if dailyTotal > limits.DailyQuota && !overageOK {
			monthly, _ := g.counters.Count(ctx, tenantID, ledger.Monthly(now))
			return denied(DenyDailyLimitExceeded, monthly, limits.MonthlyQuota), nil
		}
	}

	monthlyPeriod := ledger.Monthly(now)
	monthlyTotal, err := g.counters.Increment(ctx, tenantID, monthlyPeriod, units)
	if err != nil {
		return Decision{}, fmt.Errorf("failed to increment monthly counter: %w", err)
	}

	if limits.MonthlyQuota != plan.Unlimited && monthlyTotal > limits.MonthlyQuota {
		if !overageOK {
			return denied(DenyMonthlyLimitExceeded, monthlyTotal, limits.MonthlyQuota), nil
		}

		// Only the units past the quota are billed as overage; a request that
		// straddles the boundary pays for the excess portion alone.
		overUnits := min(units, monthlyTotal-limits.MonthlyQuota)
		rec := ledger.NewOverageRecord(tenantID, overUnits, limits.OverageUnitPrice, monthlyPeriod)
		if err := g.overages.Record(ctx, rec); err != nil {
			// A lost overage record means unbilled consumption; surface the
			// failure so the caller retries instead of swallowing it.
			return Decision{}, fmt.Errorf("failed to record overage: %w", err)
		}

		return allowedWithOverage(limits.OverageUnitPrice, monthlyTotal, limits.MonthlyQuota), nil
	}

	return allowed(monthlyTotal, limits.MonthlyQuota), nil
}

// UsageSummary is a read-only snapshot for dashboards and usage meters.
// Never used for gating: gating always goes through CheckAndConsume.
type UsageSummary struct {
	Tier         plan.Tier
	Status       entitlement.Status
	MonthlyUsed  int64
	MonthlyQuota int64
	DailyUsed    int64
	DailyQuota   int64
}

// Usage returns the tenant's current consumption against the plan limits.
func (g *Gate) Usage(ctx context.Context, tenantID uuid.UUID) (UsageSummary, error) {
	ent, err := g.entitlements.Get(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, entitlement.ErrNotFound) {
			return UsageSummary{}, fmt.Errorf("failed to read entitlement: %w", err)
		}
		ent = entitlement.New(tenantID)
	}

	limits := g.catalog.LimitsFor(ent.Tier)
	now := g.now()

	monthly, err := g.counters.Count(ctx, tenantID, ledger.Monthly(now))
	if err != nil {
		return UsageSummary{}, fmt.Errorf("failed to read monthly counter: %w", err)
	}

	summary := UsageSummary{
		Tier:         ent.Tier,
		Status:       ent.Status,
		MonthlyUsed:  monthly,
		MonthlyQuota: limits.MonthlyQuota,
		DailyQuota:   limits.DailyQuota,
	}

	if limits.HasDailyQuota() {
		daily, err := g.counters.Count(ctx, tenantID, ledger.Daily(now))
		if err != nil {
			return UsageSummary{}, fmt.Errorf("failed to read daily counter: %w", err)
		}
		summary.DailyUsed = daily
	}

	return summary, nil
}
