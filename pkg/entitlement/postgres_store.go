package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/meterkit/pkg/plan"
)

// PostgresStore implements Store on a pgx connection pool.
//
// Per-tenant write serialization is delegated to the database: Apply is a
// single conditional upsert keyed on last_event_at, so concurrent webhook
// handlers for the same tenant cannot race the ordering rule even across
// multiple processes.
type PostgresStore struct {
	pool *pgxpool.Pool
	log  *slog.Logger
}

// NewPostgresStore creates an entitlement store backed by the entitlements table.
func NewPostgresStore(pool *pgxpool.Pool, log *slog.Logger) *PostgresStore {
	if pool == nil {
		panic("entitlement: pgx pool is required")
	}
	if log == nil {
		log = slog.Default()
	}
	return &PostgresStore{pool: pool, log: log}
}

const entitlementColumns = "tenant_id, tier, status, renewal_at, subscription_id, last_event_at, updated_at"

func (s *PostgresStore) Get(ctx context.Context, tenantID uuid.UUID) (Entitlement, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+entitlementColumns+" FROM entitlements WHERE tenant_id = $1",
		tenantID,
	)
	return scanEntitlement(row)
}

func (s *PostgresStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (Entitlement, error) {
	row := s.pool.QueryRow(ctx,
		"SELECT "+entitlementColumns+" FROM entitlements WHERE subscription_id = $1",
		subscriptionID,
	)
	return scanEntitlement(row)
}

func (s *PostgresStore) Apply(ctx context.Context, next Entitlement) (Entitlement, error) {
	// The WHERE clause on the conflict update makes staleness detection and
	// the write one atomic statement. No row returned means the stored
	// marker is already at or past the event's effective timestamp.
	row := s.pool.QueryRow(ctx, `
		INSERT INTO entitlements (`+entitlementColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (tenant_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			renewal_at = EXCLUDED.renewal_at,
			subscription_id = EXCLUDED.subscription_id,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = EXCLUDED.updated_at
		WHERE entitlements.last_event_at < EXCLUDED.last_event_at
		RETURNING `+entitlementColumns,
		next.TenantID, next.Tier, next.Status, next.RenewalAt,
		next.SubscriptionID, next.LastEventAt, next.UpdatedAt,
	)

	applied, err := scanEntitlement(row)
	if err == nil {
		return applied, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return Entitlement{}, err
	}

	current, getErr := s.Get(ctx, next.TenantID)
	if getErr != nil {
		return Entitlement{}, fmt.Errorf("failed to load entitlement after stale apply: %w", getErr)
	}
	return current, ErrStaleEvent
}

func (s *PostgresStore) OverrideAdmin(ctx context.Context, tenantID uuid.UUID, tier plan.Tier, status Status) (Entitlement, error) {
	now := time.Now().UTC()
	row := s.pool.QueryRow(ctx, `
		INSERT INTO entitlements (tenant_id, tier, status, last_event_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		ON CONFLICT (tenant_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			status = EXCLUDED.status,
			last_event_at = EXCLUDED.last_event_at,
			updated_at = EXCLUDED.updated_at
		RETURNING `+entitlementColumns,
		tenantID, tier, status, now,
	)

	e, err := scanEntitlement(row)
	if err != nil {
		return Entitlement{}, err
	}

	s.log.InfoContext(ctx, "entitlement admin override",
		slog.String("tenant_id", tenantID.String()),
		slog.String("tier", string(tier)),
		slog.String("status", string(status)),
	)

	return e, nil
}

func scanEntitlement(row pgx.Row) (Entitlement, error) {
	var e Entitlement
	err := row.Scan(
		&e.TenantID, &e.Tier, &e.Status, &e.RenewalAt,
		&e.SubscriptionID, &e.LastEventAt, &e.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entitlement{}, ErrNotFound
		}
		return Entitlement{}, fmt.Errorf("failed to scan entitlement: %w", err)
	}
	return e, nil
}
