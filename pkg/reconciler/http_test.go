package reconciler_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/entitlement"
	"github.com/dmitrymomot/meterkit/pkg/reconciler"
)

func TestWebhookHandler(t *testing.T) {
	t.Parallel()

	t.Run("acknowledges an applied event with 200", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		parser := &MockParser{}
		parser.On("ParseWebhook", mock.Anything, mock.Anything, "sig-valid").
			Return(activeProEvent(tenantID, "evt_http_ok", time.Now().UTC()), nil)

		r := reconciler.New(parser, entitlement.NewMemoryStore(), reconciler.NewMemoryProcessedStore(), resolveTier, reconciler.WithLogger(quietLogger()))
		handler := reconciler.WebhookHandler(r, "")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(`{"event":"payload"}`))
		req.Header.Set(reconciler.DefaultSignatureHeader, "sig-valid")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		parser.AssertExpectations(t)
	})

	t.Run("rejects an invalid signature with 400 so the gateway stops redelivering", func(t *testing.T) {
		t.Parallel()

		parser := &MockParser{}
		parser.On("ParseWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(nil, billing.ErrWebhookVerificationFailed)

		r := reconciler.New(parser, entitlement.NewMemoryStore(), reconciler.NewMemoryProcessedStore(), resolveTier, reconciler.WithLogger(quietLogger()))
		handler := reconciler.WebhookHandler(r, "")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("asks for redelivery with 500 on transient failure", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		parser := &MockParser{}
		parser.On("ParseWebhook", mock.Anything, mock.Anything, mock.Anything).
			Return(activeProEvent(tenantID, "evt_http_fail", time.Now().UTC()), nil)

		r := reconciler.New(parser, entitlement.NewMemoryStore(), &failingProcessedStore{markErr: assert.AnError}, resolveTier, reconciler.WithLogger(quietLogger()))
		handler := reconciler.WebhookHandler(r, "")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(`{}`))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("uses the configured signature header", func(t *testing.T) {
		t.Parallel()

		tenantID := uuid.New()
		parser := &MockParser{}
		parser.On("ParseWebhook", mock.Anything, mock.Anything, "custom-sig").
			Return(activeProEvent(tenantID, "evt_http_hdr", time.Now().UTC()), nil)

		r := reconciler.New(parser, entitlement.NewMemoryStore(), reconciler.NewMemoryProcessedStore(), resolveTier, reconciler.WithLogger(quietLogger()))
		handler := reconciler.WebhookHandler(r, "X-Gateway-Signature")

		req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(`{}`))
		req.Header.Set("X-Gateway-Signature", "custom-sig")
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)

		require.Equal(t, http.StatusOK, rec.Code)
		parser.AssertExpectations(t)
	})
}
