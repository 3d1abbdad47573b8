package entitlement

import (
	"time"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/plan"
)

// TierResolver maps the gateway's price reference to a plan tier.
// Returns false when the price is not part of the catalog mapping.
type TierResolver func(priceID string) (plan.Tier, bool)

// Transition is the pure function mapping (current entitlement, lifecycle
// event) to the next entitlement. It encodes the legal transitions and the
// activation policy in one place so the rules are unit-testable in isolation
// from any HTTP handling.
//
// The returned bool reports whether the event changes the entitlement at all.
// Informational events (receipts, trial reminders, unknown types) return the
// current entitlement unchanged and false; callers acknowledge them without a
// store write.
func Transition(current Entitlement, ev billing.LifecycleEvent, resolveTier TierResolver) (Entitlement, bool) {
	switch ev.Type {
	case billing.EventSubscriptionCreated, billing.EventSubscriptionUpdated:
		return transitionSubscription(current, ev, resolveTier)

	case billing.EventSubscriptionDeleted:
		next := current
		next.Tier = plan.TierFree
		next.Status = StatusInactive
		next.RenewalAt = nil
		next.LastEventAt = ev.OccurredAt
		next.UpdatedAt = time.Now().UTC()
		return next, true

	case billing.EventInvoiceFailed:
		// A single failed charge marks the tenant past due but never silently
		// downgrades the plan; only an explicit deletion demotes to free.
		next := current
		next.Status = StatusPastDue
		next.LastEventAt = ev.OccurredAt
		next.UpdatedAt = time.Now().UTC()
		return next, true

	case billing.EventInvoicePaid, billing.EventTrialEnding:
		// Receipt / reminder only, no entitlement change.
		return current, false

	default:
		// Forward-compatible: new gateway event types are acknowledged as
		// no-ops instead of failing webhook deliveries.
		return current, false
	}
}

func transitionSubscription(current Entitlement, ev billing.LifecycleEvent, resolveTier TierResolver) (Entitlement, bool) {
	var status Status
	switch ev.Status {
	case billing.GatewayStatusActive:
		status = StatusActive
	case billing.GatewayStatusTrialing:
		status = StatusTrialing
	case billing.GatewayStatusPastDue:
		status = StatusPastDue
	case billing.GatewayStatusCanceled:
		// Some gateways report cancellation as an update rather than a
		// dedicated deletion event; treat both identically.
		next := current
		next.Tier = plan.TierFree
		next.Status = StatusInactive
		next.RenewalAt = nil
		next.LastEventAt = ev.OccurredAt
		next.UpdatedAt = time.Now().UTC()
		return next, true
	case billing.GatewayStatusIncomplete:
		if !ev.PaymentConfirmed {
			// Incomplete without a settled payment: stay on the prior plan
			// until the gateway reports a definitive status.
			return current, false
		}
		// Optimistic activation: a subscription with a confirmed payment
		// method must not leave the tenant locked out while the gateway
		// finishes settling the charge asynchronously.
		status = StatusActive
	default:
		return current, false
	}

	tier, ok := resolveTier(ev.PriceID)
	if !ok {
		// An unmapped price reference means we cannot know what was bought.
		// Keep the prior plan rather than guessing; the reconciler logs the
		// unresolved reference for operator visibility.
		if current.Tier.Valid() {
			tier = current.Tier
		} else {
			tier = plan.TierFree
		}
	}

	next := current
	next.Tier = tier
	next.Status = status
	next.SubscriptionID = ev.SubscriptionID
	if ev.NextBilledAt != nil {
		next.RenewalAt = ev.NextBilledAt
	}
	next.LastEventAt = ev.OccurredAt
	next.UpdatedAt = time.Now().UTC()
	return next, true
}
