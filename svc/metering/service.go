package metering

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/entitlement"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/plan"
	"github.com/dmitrymomot/meterkit/pkg/reconciler"
	"github.com/dmitrymomot/meterkit/pkg/usagegate"
)

// Dependencies are the injected collaborators of the metering service.
// Stores are constructed once at startup by the host and passed in
// explicitly. The engine owns no hidden globals, which keeps the atomicity
// guarantees testable and makes scaling across processes a deliberate choice
// of store backend rather than an accident of process memory.
type Dependencies struct {
	Provider     billing.Provider
	Entitlements entitlement.Store
	Counters     ledger.Store
	Overages     ledger.OverageStore
	Processed    reconciler.ProcessedStore

	// Consent resolves per-tenant overage opt-in. Optional; without it only
	// request-level opt-in enables overage.
	Consent usagegate.ConsentResolver

	Logger *slog.Logger
}

// Service wires the metering engine together: the usage gate on the request
// path and the event reconciler on the webhook path, sharing one entitlement
// store.
type Service struct {
	cfg          Config
	gate         *usagegate.Gate
	reconciler   *reconciler.Reconciler
	entitlements entitlement.Store
	provider     billing.Provider
	catalog      *plan.Catalog
	log          *slog.Logger
}

// New constructs the metering service. Panics on nil required dependencies to
// fail fast during initialization.
func New(ctx context.Context, cfg Config, deps Dependencies) (*Service, error) {
	if deps.Provider == nil {
		panic("metering: billing.Provider is required")
	}
	if deps.Entitlements == nil {
		panic("metering: entitlement.Store is required")
	}
	if deps.Counters == nil {
		panic("metering: ledger.Store is required")
	}
	if deps.Overages == nil {
		panic("metering: ledger.OverageStore is required")
	}
	if deps.Processed == nil {
		panic("metering: reconciler.ProcessedStore is required")
	}

	log := deps.Logger
	if log == nil {
		log = slog.Default()
	}

	src := plan.Source(plan.NewInMemSource(plan.DefaultLimits()))
	if cfg.CatalogPath != "" {
		src = plan.NewYAMLSource(cfg.CatalogPath)
	}

	catalog, err := plan.NewCatalog(ctx, src)
	if err != nil {
		return nil, fmt.Errorf("failed to build plan catalog: %w", err)
	}

	resolveTier, err := tierResolver(cfg.PriceTiers)
	if err != nil {
		return nil, err
	}

	gateOpts := []usagegate.Option{}
	if deps.Consent != nil {
		gateOpts = append(gateOpts, usagegate.WithConsentResolver(deps.Consent))
	}

	return &Service{
		cfg: cfg,
		gate: usagegate.New(
			deps.Entitlements, deps.Counters, deps.Overages, catalog, gateOpts...,
		),
		reconciler: reconciler.New(
			deps.Provider, deps.Entitlements, deps.Processed, resolveTier,
			reconciler.WithLogger(log),
		),
		entitlements: deps.Entitlements,
		provider:     deps.Provider,
		catalog:      catalog,
		log:          log,
	}, nil
}

// Gate returns the usage gate for in-process callers that meter actions
// without going through HTTP.
func (s *Service) Gate() *usagegate.Gate {
	return s.gate
}

// Reconciler returns the lifecycle event reconciler.
func (s *Service) Reconciler() *reconciler.Reconciler {
	return s.reconciler
}

// tierResolver builds the price-reference-to-tier mapping from configuration.
// Misconfigured tier names fail startup instead of silently resolving nothing.
func tierResolver(priceTiers map[string]string) (entitlement.TierResolver, error) {
	mapping := make(map[string]plan.Tier, len(priceTiers))
	for priceID, tierName := range priceTiers {
		tier := plan.Tier(tierName)
		if !tier.Valid() {
			return nil, fmt.Errorf("invalid tier %q for price %q in BILLING_PRICE_TIERS", tierName, priceID)
		}
		mapping[priceID] = tier
	}

	return func(priceID string) (plan.Tier, bool) {
		tier, ok := mapping[priceID]
		return tier, ok
	}, nil
}
