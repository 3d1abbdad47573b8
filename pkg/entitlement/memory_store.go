package entitlement

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/plan"
)

// MemoryStore implements Store with in-process state. Suitable for tests and
// single-process deployments; multi-process deployments should use the
// Postgres store so all replicas share one source of truth.
type MemoryStore struct {
	mu       sync.Mutex
	byTenant map[uuid.UUID]Entitlement
	bySubRef map[string]uuid.UUID
	log      *slog.Logger
}

// MemoryStoreOption configures a MemoryStore.
type MemoryStoreOption func(*MemoryStore)

// WithAuditLogger sets the logger used to audit administrative overrides.
func WithAuditLogger(log *slog.Logger) MemoryStoreOption {
	return func(s *MemoryStore) {
		if log != nil {
			s.log = log
		}
	}
}

// NewMemoryStore creates an empty in-memory entitlement store.
func NewMemoryStore(opts ...MemoryStoreOption) *MemoryStore {
	s := &MemoryStore{
		byTenant: make(map[uuid.UUID]Entitlement),
		bySubRef: make(map[string]uuid.UUID),
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, tenantID uuid.UUID) (Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byTenant[tenantID]
	if !ok {
		return Entitlement{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) GetBySubscriptionID(ctx context.Context, subscriptionID string) (Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenantID, ok := s.bySubRef[subscriptionID]
	if !ok {
		return Entitlement{}, ErrNotFound
	}
	e, ok := s.byTenant[tenantID]
	if !ok {
		return Entitlement{}, ErrNotFound
	}
	return e, nil
}

// Apply upserts the entitlement. The whole read-compare-write runs under the
// store mutex, which is the per-tenant serialization the ordering rule needs.
func (s *MemoryStore) Apply(ctx context.Context, next Entitlement) (Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.byTenant[next.TenantID]; ok {
		if !current.LastEventAt.Before(next.LastEventAt) {
			return current, ErrStaleEvent
		}
	}

	s.byTenant[next.TenantID] = next
	if next.SubscriptionID != "" {
		s.bySubRef[next.SubscriptionID] = next.TenantID
	}
	return next, nil
}

// Seed stores an entitlement without the staleness check. Intended for
// provisioning new tenants and for tests.
func (s *MemoryStore) Seed(e Entitlement) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byTenant[e.TenantID] = e
	if e.SubscriptionID != "" {
		s.bySubRef[e.SubscriptionID] = e.TenantID
	}
}

func (s *MemoryStore) OverrideAdmin(ctx context.Context, tenantID uuid.UUID, tier plan.Tier, status Status) (Entitlement, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byTenant[tenantID]
	if !ok {
		e = New(tenantID)
	}

	now := time.Now().UTC()
	e.Tier = tier
	e.Status = status
	// Advancing the marker prevents a stale queued gateway event from undoing
	// the operator's change.
	e.LastEventAt = now
	e.UpdatedAt = now
	s.byTenant[tenantID] = e

	s.log.InfoContext(ctx, "entitlement admin override",
		slog.String("tenant_id", tenantID.String()),
		slog.String("tier", string(tier)),
		slog.String("status", string(status)),
	)

	return e, nil
}
