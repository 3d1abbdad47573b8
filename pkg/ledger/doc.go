// Package ledger provides per-tenant usage counters with atomic
// check-and-increment semantics, plus append-only overage records.
//
// Counters are keyed by (tenant, period) where a period is a UTC calendar
// bucket, YYYY-MM for monthly quotas and YYYY-MM-DD for daily caps. Rollover is
// implicit: touching a new period key starts a fresh counter at zero, so
// there is no batch reset job and no "did the reset run" failure mode.
//
// Increment is the only mutating operation and is atomic in every backend:
// a mutex-guarded read-modify-write in memory, INCRBY in Redis, a single
// upsert in Postgres. Counters are monotonically non-decreasing within a
// period. Count exists for dashboards only; gating decisions must go through
// Increment because a separate read-then-write check races under concurrency.
package ledger
