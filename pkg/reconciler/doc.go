// Package reconciler keeps tenant entitlements convergent with the payment
// gateway's asynchronous, at-least-once, possibly reordered event feed.
//
// Handle runs the full pipeline for one delivery: verify the signature,
// deduplicate by event ID, resolve the tenant from the subscription or
// customer reference, run the entitlement state machine, persist the result
// through the conditional entitlement write, and only then record the event
// as processed. Ordering is by the event's effective timestamp: a delivery
// older than the last applied event for the tenant is discarded and
// acknowledged, so the stored state is always the causally latest one.
//
// Failure semantics follow the redelivery contract: integrity failures
// (signature, malformed payload) are terminal and map to 4xx so the gateway
// stops retrying; storage failures are transient, keep the event
// unacknowledged, and rely on the gateway's own redelivery, which is safe
// because the whole pipeline is idempotent.
package reconciler
