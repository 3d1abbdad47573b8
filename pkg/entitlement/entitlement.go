package entitlement

import (
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plan"
)

// Status represents the lifecycle status of a tenant's subscription.
type Status string

const (
	StatusActive         Status = "active"
	StatusTrialing       Status = "trialing"
	StatusPastDue        Status = "past_due"
	StatusCanceled       Status = "canceled"
	StatusInactive       Status = "inactive"
	StatusPendingPayment Status = "pending_payment"
)

// Entitlement is the durable record of what a tenant may do right now: the
// current plan tier, lifecycle status, and renewal date. It is mutated only
// through state-machine transitions (Store.Apply) or an explicit
// administrative override.
type Entitlement struct {
	TenantID uuid.UUID
	Tier     plan.Tier
	Status   Status

	// RenewalAt is the next billing renewal, nil for tenants without a paid
	// subscription or after the subscription was deleted.
	RenewalAt *time.Time

	// SubscriptionID is the opaque reference issued by the payment gateway.
	// Empty until the tenant's first paid subscription.
	SubscriptionID string

	// LastEventAt is the effective timestamp of the last applied lifecycle
	// event. Events older than this marker are discarded, which makes
	// at-least-once, out-of-order delivery converge on the causally latest
	// state.
	LastEventAt time.Time

	UpdatedAt time.Time
}

// New returns the default entitlement for a tenant that never subscribed:
// free tier, inactive status.
func New(tenantID uuid.UUID) Entitlement {
	return Entitlement{
		TenantID: tenantID,
		Tier:     plan.TierFree,
		Status:   StatusInactive,
	}
}

// HasActiveSubscription reports whether the lifecycle status grants access to
// paid-tier quota.
func (e Entitlement) HasActiveSubscription() bool {
	return e.Status == StatusActive || e.Status == StatusTrialing
}

// IsPastDue reports whether the last charge failed without the subscription
// being deleted yet.
func (e Entitlement) IsPastDue() bool {
	return e.Status == StatusPastDue
}
