package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/plan"
)

func TestNewOverageRecord(t *testing.T) {
	t.Parallel()

	tenantID := uuid.New()
	period := ledger.Monthly(time.Now())
	price := plan.Money{Amount: 12, Currency: "USD"}

	rec := ledger.NewOverageRecord(tenantID, 3, price, period)

	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, tenantID, rec.TenantID)
	assert.Equal(t, int64(3), rec.Units)
	assert.Equal(t, price, rec.UnitPrice)
	assert.Equal(t, period.Key, rec.PeriodKey)
	assert.Equal(t, ledger.OverageStatusPending, rec.Status)
	assert.False(t, rec.CreatedAt.IsZero())
}

func TestMemoryOverageStore(t *testing.T) {
	t.Parallel()

	t.Run("records are append-only per tenant and period", func(t *testing.T) {
		t.Parallel()

		store := ledger.NewMemoryOverageStore()
		tenantID := uuid.New()
		period := ledger.Monthly(time.Now())
		price := plan.Money{Amount: 10, Currency: "USD"}

		require.NoError(t, store.Record(context.Background(), ledger.NewOverageRecord(tenantID, 1, price, period)))
		require.NoError(t, store.Record(context.Background(), ledger.NewOverageRecord(tenantID, 2, price, period)))
		require.NoError(t, store.Record(context.Background(), ledger.NewOverageRecord(uuid.New(), 5, price, period)))

		pending, err := store.ListPending(context.Background(), tenantID, period.Key)
		require.NoError(t, err)
		require.Len(t, pending, 2)
		assert.Equal(t, int64(1), pending[0].Units)
		assert.Equal(t, int64(2), pending[1].Units)
	})

	t.Run("mark billed transitions status", func(t *testing.T) {
		t.Parallel()

		store := ledger.NewMemoryOverageStore()
		tenantID := uuid.New()
		period := ledger.Monthly(time.Now())

		rec := ledger.NewOverageRecord(tenantID, 4, plan.Money{Amount: 15, Currency: "USD"}, period)
		require.NoError(t, store.Record(context.Background(), rec))

		require.NoError(t, store.MarkBilled(context.Background(), []uuid.UUID{rec.ID}))

		pending, err := store.ListPending(context.Background(), tenantID, period.Key)
		require.NoError(t, err)
		assert.Empty(t, pending, "billed records are no longer pending")
	})
}
