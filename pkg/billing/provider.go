package billing

import (
	"context"
	"time"
)

// Provider defines the minimal interface for payment gateway integrations.
// The abstraction keeps the metering engine independent of a specific vendor:
// the engine only consumes the lifecycle event feed and the hosted
// checkout/portal session API. Implementations must validate webhook
// signatures internally to prevent spoofed events.
type Provider interface {
	// ParseWebhook verifies a raw webhook delivery and returns the normalized
	// lifecycle event. Must fail with ErrWebhookVerificationFailed when the
	// signature does not match so callers can signal the gateway not to
	// redeliver a forged payload.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*LifecycleEvent, error)

	// CreateCheckoutLink creates a hosted checkout session for a price.
	CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error)

	// GetCustomerPortalLink returns a temporary link to the customer portal
	// where a tenant can update payment methods, cancel, or change plans.
	GetCustomerPortalLink(ctx context.Context, customerID, subscriptionID string) (*PortalLink, error)
}

// CheckoutRequest contains data needed to create a checkout session.
type CheckoutRequest struct {
	PriceID    string // provider's price identifier
	CustomerID string // internal tenant ID, echoed back in webhook custom data
	Email      string // optional billing email
	SuccessURL string // redirect after successful payment
	CancelURL  string // redirect if customer cancels
}

// CheckoutLink represents a hosted checkout session.
type CheckoutLink struct {
	URL       string
	SessionID string
	ExpiresAt time.Time
}

// PortalLink represents a customer portal session.
type PortalLink struct {
	URL              string
	CancelURL        string // direct link to cancellation flow, if available
	UpdatePaymentURL string // direct link to payment method update, if available
	ExpiresAt        time.Time
}
