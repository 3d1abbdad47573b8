package ledger

import (
	"context"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryOverageStore implements OverageStore with in-process state.
type MemoryOverageStore struct {
	mu      sync.Mutex
	records []OverageRecord
}

// NewMemoryOverageStore creates an empty in-memory overage store.
func NewMemoryOverageStore() *MemoryOverageStore {
	return &MemoryOverageStore{}
}

func (s *MemoryOverageStore) Record(ctx context.Context, rec OverageRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.records = append(s.records, rec)
	return nil
}

func (s *MemoryOverageStore) ListPending(ctx context.Context, tenantID uuid.UUID, periodKey string) ([]OverageRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []OverageRecord
	for _, rec := range s.records {
		if rec.TenantID == tenantID && rec.PeriodKey == periodKey && rec.Status == OverageStatusPending {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (s *MemoryOverageStore) MarkBilled(ctx context.Context, ids []uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if slices.Contains(ids, s.records[i].ID) {
			s.records[i].Status = OverageStatusBilled
		}
	}
	return nil
}
