package usagegate

import "time"

// Option configures a Gate.
type Option func(*Gate)

// WithConsentResolver sets the per-tenant overage consent lookup. Without a
// resolver, overage is only granted on an explicit request-level opt-in.
func WithConsentResolver(resolver ConsentResolver) Option {
	return func(g *Gate) {
		if resolver != nil {
			g.consent = resolver
		}
	}
}

// WithClock overrides the time source. Used by tests to pin period keys.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) {
		if now != nil {
			g.now = now
		}
	}
}

// ConsumeOption configures a single CheckAndConsume call.
type ConsumeOption func(*consumeOptions)

type consumeOptions struct {
	overageOptIn bool
}

// WithOverageOptIn opts this request in to overage billing regardless of the
// tenant's stored consent. The plan must still support overage pricing.
func WithOverageOptIn() ConsumeOption {
	return func(co *consumeOptions) {
		co.overageOptIn = true
	}
}
