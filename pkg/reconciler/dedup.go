package reconciler

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

// ProcessedStore durably records which event IDs have been applied.
// The record is written after the entitlement write commits, so a crash
// between the two leaves at most one re-application, which the conditional
// entitlement apply tolerates as a no-op.
type ProcessedStore interface {
	// IsProcessed reports whether the event ID was already applied.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// MarkProcessed records the event ID as applied.
	MarkProcessed(ctx context.Context, eventID string) error
}

// MemoryProcessedStore implements ProcessedStore in process memory.
type MemoryProcessedStore struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// NewMemoryProcessedStore creates an empty in-memory dedup store.
func NewMemoryProcessedStore() *MemoryProcessedStore {
	return &MemoryProcessedStore{seen: make(map[string]struct{})}
}

func (s *MemoryProcessedStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.seen[eventID]
	return ok, nil
}

func (s *MemoryProcessedStore) MarkProcessed(ctx context.Context, eventID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[eventID] = struct{}{}
	return nil
}

// RedisProcessedStore implements ProcessedStore on Redis. Records expire
// after the retention window; gateways stop redelivering long before that.
type RedisProcessedStore struct {
	client    redis.UniversalClient
	keyPrefix string
	retention time.Duration
}

// NewRedisProcessedStore creates a dedup store backed by Redis with a
// 30-day retention window.
func NewRedisProcessedStore(client redis.UniversalClient) *RedisProcessedStore {
	if client == nil {
		panic("reconciler: redis client is required")
	}
	return &RedisProcessedStore{
		client:    client,
		keyPrefix: "billing:event",
		retention: 30 * 24 * time.Hour,
	}
}

func (s *RedisProcessedStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	n, err := s.client.Exists(ctx, s.keyPrefix+":"+eventID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *RedisProcessedStore) MarkProcessed(ctx context.Context, eventID string) error {
	return s.client.Set(ctx, s.keyPrefix+":"+eventID, 1, s.retention).Err()
}

// PostgresProcessedStore implements ProcessedStore on the processed_events
// table, for deployments where Postgres is the only durable store.
type PostgresProcessedStore struct {
	pool *pgxpool.Pool
}

// NewPostgresProcessedStore creates a dedup store backed by Postgres.
func NewPostgresProcessedStore(pool *pgxpool.Pool) *PostgresProcessedStore {
	if pool == nil {
		panic("reconciler: pgx pool is required")
	}
	return &PostgresProcessedStore{pool: pool}
}

func (s *PostgresProcessedStore) IsProcessed(ctx context.Context, eventID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM processed_events WHERE event_id = $1)",
		eventID,
	).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

func (s *PostgresProcessedStore) MarkProcessed(ctx context.Context, eventID string) error {
	_, err := s.pool.Exec(ctx,
		"INSERT INTO processed_events (event_id, processed_at) VALUES ($1, now()) ON CONFLICT (event_id) DO NOTHING",
		eventID,
	)
	return err
}
