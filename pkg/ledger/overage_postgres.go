package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresOverageStore implements OverageStore on the overage_records table.
type PostgresOverageStore struct {
	pool *pgxpool.Pool
}

// NewPostgresOverageStore creates an overage store backed by Postgres.
func NewPostgresOverageStore(pool *pgxpool.Pool) *PostgresOverageStore {
	if pool == nil {
		panic("ledger: pgx pool is required")
	}
	return &PostgresOverageStore{pool: pool}
}

func (s *PostgresOverageStore) Record(ctx context.Context, rec OverageRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO overage_records (id, tenant_id, units, unit_price_amount, unit_price_currency, period_key, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		rec.ID, rec.TenantID, rec.Units,
		rec.UnitPrice.Amount, rec.UnitPrice.Currency,
		rec.PeriodKey, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return errors.Join(ErrStorageFailure, err)
	}
	return nil
}

func (s *PostgresOverageStore) ListPending(ctx context.Context, tenantID uuid.UUID, periodKey string) ([]OverageRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, tenant_id, units, unit_price_amount, unit_price_currency, period_key, status, created_at
		FROM overage_records
		WHERE tenant_id = $1 AND period_key = $2 AND status = $3
		ORDER BY created_at`,
		tenantID, periodKey, OverageStatusPending,
	)
	if err != nil {
		return nil, errors.Join(ErrStorageFailure, err)
	}
	defer rows.Close()

	var out []OverageRecord
	for rows.Next() {
		var rec OverageRecord
		if err := rows.Scan(
			&rec.ID, &rec.TenantID, &rec.Units,
			&rec.UnitPrice.Amount, &rec.UnitPrice.Currency,
			&rec.PeriodKey, &rec.Status, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan overage record: %w", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Join(ErrStorageFailure, err)
	}
	return out, nil
}

func (s *PostgresOverageStore) MarkBilled(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		"UPDATE overage_records SET status = $1 WHERE id = ANY($2) AND status = $3",
		OverageStatusBilled, ids, OverageStatusPending,
	)
	if err != nil {
		return errors.Join(ErrStorageFailure, err)
	}
	return nil
}
