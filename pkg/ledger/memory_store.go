package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// counter holds one tenant/period usage count.
type counter struct {
	total     int64
	periodEnd time.Time // counters from closed periods are garbage collected
}

// MemoryStore implements Store using in-memory counters. A single mutex
// guards the map; contention is acceptable because the critical section is a
// map lookup and an addition. Counters from past periods are garbage
// collected in the background since nothing ever touches their keys again.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string]*counter

	cleanupInterval time.Duration
	stopCleanup     chan struct{}
	closeOnce       sync.Once
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithCleanupInterval sets how often stale counters are removed.
// Set to 0 to disable automatic cleanup.
func WithCleanupInterval(interval time.Duration) MemoryStoreOption {
	return func(ms *MemoryStore) {
		ms.cleanupInterval = interval
	}
}

// NewMemoryStore creates a new in-memory usage counter store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	ms := &MemoryStore{
		counters:        make(map[string]*counter),
		cleanupInterval: time.Hour,
		stopCleanup:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(ms)
	}

	if ms.cleanupInterval > 0 {
		go ms.cleanup()
	}

	return ms
}

func counterKey(tenantID uuid.UUID, period Period) string {
	return tenantID.String() + ":" + string(period.Granularity) + ":" + period.Key
}

func (ms *MemoryStore) Increment(ctx context.Context, tenantID uuid.UUID, period Period, n int64) (int64, error) {
	if n < 0 {
		return 0, ErrNegativeIncrement
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	key := counterKey(tenantID, period)
	c, ok := ms.counters[key]
	if !ok {
		c = &counter{periodEnd: period.End()}
		ms.counters[key] = c
	}

	c.total += n
	return c.total, nil
}

func (ms *MemoryStore) Count(ctx context.Context, tenantID uuid.UUID, period Period) (int64, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	c, ok := ms.counters[counterKey(tenantID, period)]
	if !ok {
		return 0, nil
	}
	return c.total, nil
}

func (ms *MemoryStore) cleanup() {
	ticker := time.NewTicker(ms.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ms.removeStale()
		case <-ms.stopCleanup:
			return
		}
	}
}

// removeStale drops counters whose period closed more than a day ago. A
// grace window keeps just-closed periods readable for billing-period-close
// reporting before the memory is reclaimed.
func (ms *MemoryStore) removeStale() {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	grace := 24 * time.Hour
	now := time.Now()
	for key, c := range ms.counters {
		if !c.periodEnd.IsZero() && now.Sub(c.periodEnd) > grace {
			delete(ms.counters, key)
		}
	}
}

// Close stops the cleanup goroutine. Safe to call multiple times.
func (ms *MemoryStore) Close() {
	ms.closeOnce.Do(func() {
		close(ms.stopCleanup)
	})
}
