// Package entitlement holds the durable record of what a tenant may do right
// now (plan tier, lifecycle status, renewal date) and the state machine
// that mutates it.
//
// Transition is a pure function from (current entitlement, lifecycle event)
// to the next entitlement, encoding every legal state change in one
// unit-testable table: activation (including optimistic activation of
// incomplete subscriptions with a confirmed payment), past-due marking on
// failed charges, and demotion to free only on explicit deletion.
//
// The Store persists transition results with a conditional write keyed on the
// event's effective timestamp. Combined with the reconciler's deduplication
// this makes event processing idempotent and order-tolerant: older events are
// rejected with ErrStaleEvent and acknowledged as no-ops, so the stored state
// always converges on the causally latest one regardless of delivery order.
package entitlement
