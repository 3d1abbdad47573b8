package entitlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/entitlement"
	"github.com/dmitrymomot/meterkit/pkg/plan"
)

func TestMemoryStore_Get(t *testing.T) {
	t.Parallel()

	store := entitlement.NewMemoryStore()
	ctx := context.Background()

	t.Run("unknown tenant returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := store.Get(ctx, uuid.New())
		require.ErrorIs(t, err, entitlement.ErrNotFound)
	})

	t.Run("seeded entitlement is returned as stored", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		seeded := entitlement.Entitlement{
			TenantID:       tenantID,
			Tier:           plan.TierPro,
			Status:         entitlement.StatusActive,
			SubscriptionID: "sub_seeded",
			LastEventAt:    time.Now().UTC(),
		}
		store.Seed(seeded)

		got, err := store.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, seeded, got)
	})
}

func TestMemoryStore_GetBySubscriptionID(t *testing.T) {
	t.Parallel()

	store := entitlement.NewMemoryStore()
	ctx := context.Background()

	tenantID := uuid.New()
	store.Seed(entitlement.Entitlement{
		TenantID:       tenantID,
		Tier:           plan.TierBasic,
		Status:         entitlement.StatusActive,
		SubscriptionID: "sub_42",
		LastEventAt:    time.Now().UTC(),
	})

	t.Run("known subscription resolves to the tenant", func(t *testing.T) {
		t.Parallel()

		got, err := store.GetBySubscriptionID(ctx, "sub_42")
		require.NoError(t, err)
		assert.Equal(t, tenantID, got.TenantID)
	})

	t.Run("unknown subscription returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		_, err := store.GetBySubscriptionID(ctx, "sub_missing")
		require.ErrorIs(t, err, entitlement.ErrNotFound)
	})
}

func TestMemoryStore_Apply(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("first write for a tenant succeeds", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		tenantID := uuid.New()

		next := entitlement.Entitlement{
			TenantID:    tenantID,
			Tier:        plan.TierBasic,
			Status:      entitlement.StatusActive,
			LastEventAt: base,
		}

		applied, err := store.Apply(ctx, next)
		require.NoError(t, err)
		assert.Equal(t, next, applied)
	})

	t.Run("newer event replaces the stored record", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		tenantID := uuid.New()
		store.Seed(entitlement.Entitlement{TenantID: tenantID, Tier: plan.TierBasic, Status: entitlement.StatusActive, LastEventAt: base})

		applied, err := store.Apply(ctx, entitlement.Entitlement{
			TenantID:    tenantID,
			Tier:        plan.TierPro,
			Status:      entitlement.StatusActive,
			LastEventAt: base.Add(time.Minute),
		})
		require.NoError(t, err)
		assert.Equal(t, plan.TierPro, applied.Tier)
	})

	t.Run("older event is rejected with ErrStaleEvent", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		tenantID := uuid.New()
		store.Seed(entitlement.Entitlement{TenantID: tenantID, Tier: plan.TierPro, Status: entitlement.StatusActive, LastEventAt: base})

		current, err := store.Apply(ctx, entitlement.Entitlement{
			TenantID:    tenantID,
			Tier:        plan.TierBasic,
			Status:      entitlement.StatusActive,
			LastEventAt: base.Add(-time.Minute),
		})
		require.ErrorIs(t, err, entitlement.ErrStaleEvent)
		assert.Equal(t, plan.TierPro, current.Tier, "stored record is untouched")
	})

	t.Run("equal timestamp is rejected as stale", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		tenantID := uuid.New()
		store.Seed(entitlement.Entitlement{TenantID: tenantID, Tier: plan.TierPro, Status: entitlement.StatusActive, LastEventAt: base})

		_, err := store.Apply(ctx, entitlement.Entitlement{
			TenantID:    tenantID,
			Tier:        plan.TierBasic,
			Status:      entitlement.StatusActive,
			LastEventAt: base,
		})
		require.ErrorIs(t, err, entitlement.ErrStaleEvent)
	})

	t.Run("apply indexes the subscription reference", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		tenantID := uuid.New()

		_, err := store.Apply(ctx, entitlement.Entitlement{
			TenantID:       tenantID,
			Tier:           plan.TierBasic,
			Status:         entitlement.StatusActive,
			SubscriptionID: "sub_indexed",
			LastEventAt:    base,
		})
		require.NoError(t, err)

		got, err := store.GetBySubscriptionID(ctx, "sub_indexed")
		require.NoError(t, err)
		assert.Equal(t, tenantID, got.TenantID)
	})
}

func TestMemoryStore_OverrideAdmin(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	t.Run("override creates a record for an unknown tenant", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		tenantID := uuid.New()

		got, err := store.OverrideAdmin(ctx, tenantID, plan.TierAgency, entitlement.StatusActive)
		require.NoError(t, err)
		assert.Equal(t, plan.TierAgency, got.Tier)
		assert.Equal(t, entitlement.StatusActive, got.Status)
	})

	t.Run("override advances the marker so stale queued events cannot undo it", func(t *testing.T) {
		t.Parallel()

		store := entitlement.NewMemoryStore()
		tenantID := uuid.New()
		store.Seed(entitlement.Entitlement{TenantID: tenantID, Tier: plan.TierBasic, Status: entitlement.StatusPastDue, LastEventAt: base})

		overridden, err := store.OverrideAdmin(ctx, tenantID, plan.TierPro, entitlement.StatusActive)
		require.NoError(t, err)
		assert.True(t, overridden.LastEventAt.After(base))

		// A late delivery timestamped before the override must bounce.
		_, err = store.Apply(ctx, entitlement.Entitlement{
			TenantID:    tenantID,
			Tier:        plan.TierFree,
			Status:      entitlement.StatusInactive,
			LastEventAt: base.Add(time.Minute),
		})
		require.ErrorIs(t, err, entitlement.ErrStaleEvent)

		got, err := store.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, plan.TierPro, got.Tier)
	})
}
