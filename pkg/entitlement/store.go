package entitlement

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plan"
)

// Store is the single source of truth for tenant entitlements.
//
// Apply persists the result of a state-machine transition and must serialize
// writes per tenant: a concurrently applied later event must never be
// clobbered by an older one. Implementations enforce this with a conditional
// write keyed on LastEventAt and report rejected writes with ErrStaleEvent.
type Store interface {
	// Get returns the current entitlement for a tenant.
	// Returns ErrNotFound if the tenant has no entitlement record yet.
	Get(ctx context.Context, tenantID uuid.UUID) (Entitlement, error)

	// GetBySubscriptionID resolves a tenant entitlement from the gateway's
	// subscription reference. Used by the reconciler for events that carry no
	// usable customer reference. Returns ErrNotFound when no tenant matches.
	GetBySubscriptionID(ctx context.Context, subscriptionID string) (Entitlement, error)

	// Apply upserts the entitlement produced by a transition. The write only
	// succeeds when next.LastEventAt is newer than the stored marker;
	// otherwise the stored entitlement is returned alongside ErrStaleEvent so
	// the caller can acknowledge the event as a no-op.
	Apply(ctx context.Context, next Entitlement) (Entitlement, error)

	// OverrideAdmin is the administrative escape hatch: it bypasses the state
	// machine and sets tier and status directly. The override advances the
	// last-applied-event marker so a stale queued gateway event cannot undo
	// an operator action. Implementations must audit every call.
	OverrideAdmin(ctx context.Context, tenantID uuid.UUID, tier plan.Tier, status Status) (Entitlement, error)
}
