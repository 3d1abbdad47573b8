package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plan"
)

// OverageStatus tracks the billing state of an overage record.
type OverageStatus string

const (
	OverageStatusPending OverageStatus = "pending"
	OverageStatusBilled  OverageStatus = "billed"
)

// OverageRecord is an append-only fact: units consumed past the monthly quota
// at the unit price in effect when they were consumed. Records are never
// mutated after creation except the pending-to-billed status transition
// performed by the billing-period-close process.
type OverageRecord struct {
	ID        uuid.UUID
	TenantID  uuid.UUID
	Units     int64
	UnitPrice plan.Money // price at time of consumption, not current catalog price
	PeriodKey string     // monthly period the overage belongs to
	Status    OverageStatus
	CreatedAt time.Time
}

// NewOverageRecord creates a pending overage record for the given consumption.
func NewOverageRecord(tenantID uuid.UUID, units int64, unitPrice plan.Money, period Period) OverageRecord {
	return OverageRecord{
		ID:        uuid.New(),
		TenantID:  tenantID,
		Units:     units,
		UnitPrice: unitPrice,
		PeriodKey: period.Key,
		Status:    OverageStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

// OverageStore persists overage records.
type OverageStore interface {
	// Record appends an overage record.
	Record(ctx context.Context, rec OverageRecord) error

	// ListPending returns the tenant's unbilled overage records for a period.
	ListPending(ctx context.Context, tenantID uuid.UUID, periodKey string) ([]OverageRecord, error)

	// MarkBilled transitions records from pending to billed. Called by the
	// billing-period-close process once the gateway has invoiced the units.
	MarkBilled(ctx context.Context, ids []uuid.UUID) error
}
