// Package usagegate implements the synchronous allow/deny decision for
// metered requests.
//
// CheckAndConsume reads the tenant's entitlement and the usage ledger,
// resolves the plan limits, and returns one of three typed outcomes: Allowed,
// AllowedWithOverage (billed per unit past the monthly quota), or Denied with
// a specific actionable reason. The counter increment itself is the quota
// check: the gate never does a separate read followed by a conditional
// write, so concurrent bursts for the same tenant can never over-grant the
// paid allotment.
//
// Policy denials are returned as Decision values, never as errors; errors
// from CheckAndConsume are storage failures the enclosing request should
// retry or fail on.
package usagegate
