package billing

import "time"

// EventType represents the normalized lifecycle event type.
// Each provider implementation maps its specific events to these types.
type EventType string

const (
	EventSubscriptionCreated EventType = "subscription_created"
	EventSubscriptionUpdated EventType = "subscription_updated"
	EventSubscriptionDeleted EventType = "subscription_deleted"

	EventInvoicePaid   EventType = "invoice_paid"
	EventInvoiceFailed EventType = "invoice_failed"

	EventTrialEnding EventType = "trial_ending"
)

// Gateway subscription statuses that grant access. Kept here so the activation
// policy is defined once instead of being re-derived at every call site.
const (
	GatewayStatusActive     = "active"
	GatewayStatusTrialing   = "trialing"
	GatewayStatusPastDue    = "past_due"
	GatewayStatusCanceled   = "canceled"
	GatewayStatusIncomplete = "incomplete"
)

// LifecycleEvent is a gateway-delivered fact describing a change to a
// subscription's billing state. Delivery is at-least-once and order is not
// guaranteed; the event ID is globally unique and used for deduplication.
type LifecycleEvent struct {
	ID             string    // globally unique event id
	Type           EventType // normalized event type
	ProviderEvent  string    // original provider event name
	SubscriptionID string    // provider's subscription reference
	CustomerID     string    // tenant reference carried in the event
	PriceID        string    // provider's price reference, resolved to a plan tier
	Status         string    // raw gateway status string
	OccurredAt     time.Time // effective timestamp, drives the ordering rule

	// NextBilledAt is the renewal timestamp of the subscription, when the
	// gateway includes one.
	NextBilledAt *time.Time

	// PaymentConfirmed reports that a payment for this subscription has been
	// captured or that a valid payment method is already attached. Used for
	// optimistic activation of "incomplete" subscriptions.
	PaymentConfirmed bool

	Raw map[string]any // full provider payload for diagnostics
}
