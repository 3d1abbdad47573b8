package ledger

import (
	"context"

	"github.com/google/uuid"
)

// Store is the per-tenant usage counter backend.
//
// Increment is the only mutating entry point and must be atomic: the
// read-modify-write has to execute as a single unit so that two concurrent
// callers can never both observe "one slot left" and both succeed. Counters
// never decrease within a period; a new period key starts at zero on first
// touch.
type Store interface {
	// Increment adds n units to the tenant's counter for the period and
	// returns the new total, atomically.
	Increment(ctx context.Context, tenantID uuid.UUID, period Period, n int64) (int64, error)

	// Count returns the current counter value without mutating it. Intended
	// for display and estimation only; gating decisions always go through
	// Increment to avoid check-then-act races.
	Count(ctx context.Context, tenantID uuid.UUID, period Period) (int64, error)
}
