// Package billing defines the boundary with the external payment gateway.
//
// The metering engine never talks to the gateway's internals. It consumes two
// things through the Provider interface: the signed lifecycle event feed
// (webhooks) and the hosted checkout/portal session API. Provider
// implementations are responsible for signature verification and for
// normalizing vendor-specific event names into the LifecycleEvent type that
// the rest of the engine understands.
//
// A complete Paddle implementation is included. Events are delivered
// at-least-once and possibly out of order; deduplication and ordering are the
// reconciler's job, not the provider's.
package billing
