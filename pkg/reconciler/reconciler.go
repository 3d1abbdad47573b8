package reconciler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/entitlement"
)

// WebhookParser is the slice of the billing provider the reconciler needs:
// signature verification plus payload normalization.
type WebhookParser interface {
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.LifecycleEvent, error)
}

// Reconciler consumes raw gateway deliveries and keeps the entitlement store
// convergent with the gateway's view of each subscription. It verifies
// authenticity, deduplicates by event ID, orders by the event's effective
// timestamp rather than by arrival, and drives the state machine.
type Reconciler struct {
	parser       WebhookParser
	entitlements entitlement.Store
	processed    ProcessedStore
	resolveTier  entitlement.TierResolver
	log          *slog.Logger
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithLogger sets the structured logger for operator-visibility events.
func WithLogger(log *slog.Logger) Option {
	return func(r *Reconciler) {
		if log != nil {
			r.log = log
		}
	}
}

// New creates a reconciler. Panics on nil required dependencies to fail fast
// during initialization.
func New(parser WebhookParser, entitlements entitlement.Store, processed ProcessedStore, resolveTier entitlement.TierResolver, opts ...Option) *Reconciler {
	if parser == nil {
		panic("reconciler: WebhookParser is required")
	}
	if entitlements == nil {
		panic("reconciler: entitlement.Store is required")
	}
	if processed == nil {
		panic("reconciler: ProcessedStore is required")
	}
	if resolveTier == nil {
		panic("reconciler: TierResolver is required")
	}

	r := &Reconciler{
		parser:       parser,
		entitlements: entitlements,
		processed:    processed,
		resolveTier:  resolveTier,
		log:          slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Handle processes one raw gateway delivery.
//
// A nil return acknowledges the delivery: the event was applied, was a
// duplicate, was causally stale, or is a no-op the engine deliberately
// ignores. A returned error is either terminal (ErrInvalidSignature,
// ErrMalformedEvent, the gateway must not redeliver) or transient (storage
// failures, the gateway should redeliver, which is safe because processing
// is idempotent).
func (r *Reconciler) Handle(ctx context.Context, payload []byte, signature string) error {
	ev, err := r.parser.ParseWebhook(ctx, payload, signature)
	if err != nil {
		switch {
		case errors.Is(err, billing.ErrWebhookVerificationFailed):
			r.log.WarnContext(ctx, "rejected webhook with invalid signature", slog.Any("error", err))
			return errors.Join(ErrInvalidSignature, err)
		case errors.Is(err, billing.ErrMalformedPayload):
			r.log.WarnContext(ctx, "rejected malformed webhook payload", slog.Any("error", err))
			return errors.Join(ErrMalformedEvent, err)
		default:
			return fmt.Errorf("failed to parse webhook: %w", err)
		}
	}

	done, err := r.processed.IsProcessed(ctx, ev.ID)
	if err != nil {
		return fmt.Errorf("failed to check event dedup record: %w", err)
	}
	if done {
		// Idempotent re-delivery: already applied, acknowledge without
		// touching the entitlement again.
		r.log.DebugContext(ctx, "skipping duplicate lifecycle event",
			slog.String("event_id", ev.ID))
		return nil
	}

	tenantID, ok, err := r.resolveTenant(ctx, ev)
	if err != nil {
		return err
	}
	if !ok {
		// An event that will never resolve must not be retried forever.
		// Record it and acknowledge; the log line is the operator's signal.
		r.log.WarnContext(ctx, "lifecycle event references unknown tenant",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)),
			slog.String("subscription_id", ev.SubscriptionID),
			slog.String("customer_id", ev.CustomerID),
		)
		return r.markProcessed(ctx, ev.ID)
	}

	current, err := r.entitlements.Get(ctx, tenantID)
	if err != nil {
		if !errors.Is(err, entitlement.ErrNotFound) {
			return fmt.Errorf("failed to read entitlement: %w", err)
		}
		current = entitlement.New(tenantID)
	}

	next, changed := entitlement.Transition(current, *ev, r.resolveTier)
	if !changed {
		r.log.DebugContext(ctx, "lifecycle event is a no-op",
			slog.String("event_id", ev.ID),
			slog.String("event_type", string(ev.Type)),
			slog.String("status", ev.Status),
		)
		return r.markProcessed(ctx, ev.ID)
	}

	if _, err := r.entitlements.Apply(ctx, next); err != nil {
		if errors.Is(err, entitlement.ErrStaleEvent) {
			// Ordering rule: a causally older event is discarded but still
			// acknowledged so the gateway stops redelivering it.
			r.log.DebugContext(ctx, "discarded stale lifecycle event",
				slog.String("event_id", ev.ID),
				slog.Time("occurred_at", ev.OccurredAt),
			)
			return r.markProcessed(ctx, ev.ID)
		}
		// Entitlement write failed: do not acknowledge, the gateway's retry
		// is our retry.
		return fmt.Errorf("failed to apply entitlement transition: %w", err)
	}

	r.log.InfoContext(ctx, "applied lifecycle event",
		slog.String("event_id", ev.ID),
		slog.String("event_type", string(ev.Type)),
		slog.String("tenant_id", tenantID.String()),
		slog.String("tier", string(next.Tier)),
		slog.String("status", string(next.Status)),
	)

	return r.markProcessed(ctx, ev.ID)
}

// resolveTenant maps the event's references to a local tenant. The customer
// reference carries our tenant UUID when the checkout was created by this
// system; otherwise fall back to the subscription reference, which covers
// events arriving after the subscription row exists.
func (r *Reconciler) resolveTenant(ctx context.Context, ev *billing.LifecycleEvent) (uuid.UUID, bool, error) {
	if ev.CustomerID != "" {
		if tenantID, err := uuid.Parse(ev.CustomerID); err == nil {
			return tenantID, true, nil
		}
	}

	if ev.SubscriptionID != "" {
		ent, err := r.entitlements.GetBySubscriptionID(ctx, ev.SubscriptionID)
		if err == nil {
			return ent.TenantID, true, nil
		}
		if !errors.Is(err, entitlement.ErrNotFound) {
			return uuid.Nil, false, fmt.Errorf("failed to resolve tenant by subscription: %w", err)
		}
	}

	return uuid.Nil, false, nil
}

// markProcessed records the event ID as applied. Failing to record is a
// transient error surfaced to the gateway; redelivery is safe because the
// conditional entitlement write makes re-application a no-op.
func (r *Reconciler) markProcessed(ctx context.Context, eventID string) error {
	if err := r.processed.MarkProcessed(ctx, eventID); err != nil {
		return fmt.Errorf("failed to record processed event: %w", err)
	}
	return nil
}
