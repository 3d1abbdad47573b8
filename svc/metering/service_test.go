package metering_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/entitlement"
	"github.com/dmitrymomot/meterkit/pkg/ledger"
	"github.com/dmitrymomot/meterkit/pkg/plan"
	"github.com/dmitrymomot/meterkit/pkg/reconciler"
	"github.com/dmitrymomot/meterkit/svc/metering"
)

// stubProvider implements billing.Provider with canned responses. Webhook
// payloads are JSON-encoded lifecycle events and the signature "valid" is the
// only accepted one, which lets tests drive both paths without real
// gateway crypto.
type stubProvider struct {
	checkoutErr error
}

func (p *stubProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*billing.LifecycleEvent, error) {
	if signature != "valid" {
		return nil, billing.ErrWebhookVerificationFailed
	}
	var ev billing.LifecycleEvent
	if err := json.Unmarshal(payload, &ev); err != nil {
		return nil, billing.ErrMalformedPayload
	}
	return &ev, nil
}

func (p *stubProvider) CreateCheckoutLink(ctx context.Context, req billing.CheckoutRequest) (*billing.CheckoutLink, error) {
	if p.checkoutErr != nil {
		return nil, p.checkoutErr
	}
	return &billing.CheckoutLink{
		URL:       "https://checkout.example.com/" + req.PriceID,
		SessionID: "txn_stub",
		ExpiresAt: time.Now().Add(time.Hour),
	}, nil
}

func (p *stubProvider) GetCustomerPortalLink(ctx context.Context, customerID, subscriptionID string) (*billing.PortalLink, error) {
	return &billing.PortalLink{URL: "https://portal.example.com/" + customerID}, nil
}

func newTestService(t *testing.T) (*metering.Service, *entitlement.MemoryStore) {
	t.Helper()

	cfg := metering.Config{
		ServiceName:     "metering",
		Environment:     "test",
		SignatureHeader: "Paddle-Signature",
		PriceTiers: map[string]string{
			"pri_basic":  "basic",
			"pri_pro":    "pro",
			"pri_agency": "agency",
		},
	}

	entitlements := entitlement.NewMemoryStore()
	counters := ledger.NewMemoryStore()
	t.Cleanup(func() { counters.Close() })

	svc, err := metering.New(context.Background(), cfg, metering.Dependencies{
		Provider:     &stubProvider{},
		Entitlements: entitlements,
		Counters:     counters,
		Overages:     ledger.NewMemoryOverageStore(),
		Processed:    reconciler.NewMemoryProcessedStore(),
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)

	return svc, entitlements
}

func postWebhook(t *testing.T, srv *httptest.Server, ev billing.LifecycleEvent, signature string) *http.Response {
	t.Helper()

	payload, err := json.Marshal(ev)
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/webhooks/billing", bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Paddle-Signature", signature)

	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestService_New(t *testing.T) {
	t.Parallel()

	t.Run("rejects a misconfigured tier name at startup", func(t *testing.T) {
		t.Parallel()

		cfg := metering.Config{
			PriceTiers: map[string]string{"pri_x": "platinum"},
		}

		counters := ledger.NewMemoryStore()
		t.Cleanup(func() { counters.Close() })

		_, err := metering.New(context.Background(), cfg, metering.Dependencies{
			Provider:     &stubProvider{},
			Entitlements: entitlement.NewMemoryStore(),
			Counters:     counters,
			Overages:     ledger.NewMemoryOverageStore(),
			Processed:    reconciler.NewMemoryProcessedStore(),
		})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "platinum")
	})

	t.Run("panics on missing provider", func(t *testing.T) {
		t.Parallel()

		counters := ledger.NewMemoryStore()
		t.Cleanup(func() { counters.Close() })

		assert.Panics(t, func() {
			_, _ = metering.New(context.Background(), metering.Config{}, metering.Dependencies{
				Entitlements: entitlement.NewMemoryStore(),
				Counters:     counters,
				Overages:     ledger.NewMemoryOverageStore(),
				Processed:    reconciler.NewMemoryProcessedStore(),
			})
		})
	})
}

func TestService_WebhookToConsumeFlow(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)

	tenantID := uuid.New()
	occurredAt := time.Now().UTC().Add(-time.Minute)

	resp := postWebhook(t, srv, billing.LifecycleEvent{
		ID:             "evt_flow_1",
		Type:           billing.EventSubscriptionCreated,
		SubscriptionID: "sub_flow",
		CustomerID:     tenantID.String(),
		PriceID:        "pri_pro",
		Status:         billing.GatewayStatusActive,
		OccurredAt:     occurredAt,
	}, "valid")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	// The activated tenant now consumes against the pro quota.
	consumeURL := fmt.Sprintf("%s/tenants/%s/consume", srv.URL, tenantID)
	consumeResp, err := srv.Client().Post(consumeURL, "application/json", bytes.NewReader([]byte(`{"units":10}`)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = consumeResp.Body.Close() })

	require.Equal(t, http.StatusOK, consumeResp.StatusCode)
	body := decodeBody(t, consumeResp)
	assert.Equal(t, true, body["allowed"])
	assert.EqualValues(t, 10, body["monthly_used"])
	assert.EqualValues(t, 500, body["monthly_quota"])
}

func TestService_Webhook(t *testing.T) {
	t.Parallel()

	t.Run("rejects an invalid signature with 400", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t)
		srv := httptest.NewServer(svc.Router())
		t.Cleanup(srv.Close)

		resp := postWebhook(t, srv, billing.LifecycleEvent{ID: "evt_forged"}, "forged")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("acknowledges a replayed event", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t)
		srv := httptest.NewServer(svc.Router())
		t.Cleanup(srv.Close)

		ev := billing.LifecycleEvent{
			ID:         "evt_replayed",
			Type:       billing.EventSubscriptionCreated,
			CustomerID: uuid.NewString(),
			PriceID:    "pri_basic",
			Status:     billing.GatewayStatusActive,
			OccurredAt: time.Now().UTC(),
		}

		first := postWebhook(t, srv, ev, "valid")
		assert.Equal(t, http.StatusOK, first.StatusCode)

		second := postWebhook(t, srv, ev, "valid")
		assert.Equal(t, http.StatusOK, second.StatusCode)
	})
}

func TestService_ConsumeStatusContract(t *testing.T) {
	t.Parallel()

	t.Run("quota exhaustion answers 429", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t)
		srv := httptest.NewServer(svc.Router())
		t.Cleanup(srv.Close)

		tenantID := uuid.New() // free tier, 5 credits
		consumeURL := fmt.Sprintf("%s/tenants/%s/consume", srv.URL, tenantID)

		resp, err := srv.Client().Post(consumeURL, "application/json", bytes.NewReader([]byte(`{"units":5}`)))
		require.NoError(t, err)
		_ = resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)

		resp, err = srv.Client().Post(consumeURL, "application/json", bytes.NewReader([]byte(`{"units":1}`)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, false, body["allowed"])
		assert.Equal(t, "monthly_limit_exceeded", body["reason"])
	})

	t.Run("paid tier without active subscription answers 402", func(t *testing.T) {
		t.Parallel()

		svc, entitlements := newTestService(t)
		srv := httptest.NewServer(svc.Router())
		t.Cleanup(srv.Close)

		tenantID := uuid.New()
		entitlements.Seed(entitlement.Entitlement{
			TenantID:    tenantID,
			Tier:        plan.TierPro,
			Status:      entitlement.StatusPastDue,
			LastEventAt: time.Now().UTC(),
		})

		consumeURL := fmt.Sprintf("%s/tenants/%s/consume", srv.URL, tenantID)
		resp, err := srv.Client().Post(consumeURL, "application/json", bytes.NewReader([]byte(`{"units":1}`)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		assert.Equal(t, http.StatusPaymentRequired, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "subscription_required", body["reason"])
	})

	t.Run("malformed tenant id answers 400", func(t *testing.T) {
		t.Parallel()

		svc, _ := newTestService(t)
		srv := httptest.NewServer(svc.Router())
		t.Cleanup(srv.Close)

		resp, err := srv.Client().Post(srv.URL+"/tenants/not-a-uuid/consume", "application/json", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestService_UsageAndEntitlement(t *testing.T) {
	t.Parallel()

	svc, entitlements := newTestService(t)
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)

	tenantID := uuid.New()
	entitlements.Seed(entitlement.Entitlement{
		TenantID:    tenantID,
		Tier:        plan.TierBasic,
		Status:      entitlement.StatusActive,
		LastEventAt: time.Now().UTC(),
	})

	consumeURL := fmt.Sprintf("%s/tenants/%s/consume", srv.URL, tenantID)
	resp, err := srv.Client().Post(consumeURL, "application/json", bytes.NewReader([]byte(`{"units":7}`)))
	require.NoError(t, err)
	_ = resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	t.Run("usage meter reflects consumption", func(t *testing.T) {
		resp, err := srv.Client().Get(fmt.Sprintf("%s/tenants/%s/usage", srv.URL, tenantID))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "basic", body["tier"])
		assert.EqualValues(t, 7, body["monthly_used"])
		assert.EqualValues(t, 100, body["monthly_quota"])
		assert.EqualValues(t, 7, body["daily_used"])
	})

	t.Run("entitlement endpoint returns the current record", func(t *testing.T) {
		resp, err := srv.Client().Get(fmt.Sprintf("%s/tenants/%s/entitlement", srv.URL, tenantID))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "basic", body["tier"])
		assert.Equal(t, "active", body["status"])
	})

	t.Run("unknown tenant reads as the free default", func(t *testing.T) {
		resp, err := srv.Client().Get(fmt.Sprintf("%s/tenants/%s/entitlement", srv.URL, uuid.New()))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "free", body["tier"])
		assert.Equal(t, "inactive", body["status"])
	})
}

func TestService_Checkout(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t)
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)

	tenantID := uuid.New()
	checkoutURL := fmt.Sprintf("%s/tenants/%s/checkout", srv.URL, tenantID)

	resp, err := srv.Client().Post(checkoutURL, "application/json",
		bytes.NewReader([]byte(`{"price_id":"pri_pro","email":"owner@example.com"}`)))
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	assert.Equal(t, "https://checkout.example.com/pri_pro", body["url"])
	assert.Equal(t, "txn_stub", body["session_id"])
}

func TestService_Portal(t *testing.T) {
	t.Parallel()

	svc, entitlements := newTestService(t)
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)

	t.Run("returns a portal session for a subscribed tenant", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		entitlements.Seed(entitlement.Entitlement{
			TenantID:       tenantID,
			Tier:           plan.TierPro,
			Status:         entitlement.StatusActive,
			SubscriptionID: "sub_portal",
			LastEventAt:    time.Now().UTC(),
		})

		resp, err := srv.Client().Post(fmt.Sprintf("%s/tenants/%s/portal", srv.URL, tenantID), "application/json", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		require.Equal(t, http.StatusOK, resp.StatusCode)
		body := decodeBody(t, resp)
		assert.Equal(t, "https://portal.example.com/"+tenantID.String(), body["url"])
	})

	t.Run("answers 404 for a tenant without a subscription", func(t *testing.T) {
		t.Parallel()

		resp, err := srv.Client().Post(fmt.Sprintf("%s/tenants/%s/portal", srv.URL, uuid.New()), "application/json", nil)
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestService_AdminOverride(t *testing.T) {
	t.Parallel()

	svc, entitlements := newTestService(t)
	srv := httptest.NewServer(svc.Router())
	t.Cleanup(srv.Close)

	tenantID := uuid.New()
	overrideURL := fmt.Sprintf("%s/admin/tenants/%s/override", srv.URL, tenantID)

	t.Run("grants a tier without a payment event", func(t *testing.T) {
		resp, err := srv.Client().Post(overrideURL, "application/json",
			bytes.NewReader([]byte(`{"tier":"agency","status":"active"}`)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		require.Equal(t, http.StatusOK, resp.StatusCode)

		ent, err := entitlements.Get(context.Background(), tenantID)
		require.NoError(t, err)
		assert.Equal(t, plan.TierAgency, ent.Tier)
		assert.Equal(t, entitlement.StatusActive, ent.Status)
	})

	t.Run("rejects an unknown tier", func(t *testing.T) {
		resp, err := srv.Client().Post(overrideURL, "application/json",
			bytes.NewReader([]byte(`{"tier":"platinum","status":"active"}`)))
		require.NoError(t, err)
		t.Cleanup(func() { _ = resp.Body.Close() })

		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}
