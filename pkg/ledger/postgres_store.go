package ledger

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore implements Store on the usage_counters table. The increment
// is one upsert statement, so atomicity comes from the database's row lock
// rather than application-level coordination. Prefer the Redis store for hot
// paths and this one where counters must survive in the system of record.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a usage counter store backed by Postgres.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	if pool == nil {
		panic("ledger: pgx pool is required")
	}
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) Increment(ctx context.Context, tenantID uuid.UUID, period Period, n int64) (int64, error) {
	if n < 0 {
		return 0, ErrNegativeIncrement
	}

	var total int64
	err := s.pool.QueryRow(ctx, `
		INSERT INTO usage_counters (tenant_id, granularity, period_key, count, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (tenant_id, granularity, period_key) DO UPDATE SET
			count = usage_counters.count + EXCLUDED.count,
			updated_at = now()
		RETURNING count`,
		tenantID, period.Granularity, period.Key, n,
	).Scan(&total)
	if err != nil {
		return 0, errors.Join(ErrStorageFailure, err)
	}

	return total, nil
}

func (s *PostgresStore) Count(ctx context.Context, tenantID uuid.UUID, period Period) (int64, error) {
	var total int64
	err := s.pool.QueryRow(ctx,
		"SELECT count FROM usage_counters WHERE tenant_id = $1 AND granularity = $2 AND period_key = $3",
		tenantID, period.Granularity, period.Key,
	).Scan(&total)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, errors.Join(ErrStorageFailure, err)
	}
	return total, nil
}
