package metering

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/dmitrymomot/meterkit/pkg/billing"
	"github.com/dmitrymomot/meterkit/pkg/entitlement"
	"github.com/dmitrymomot/meterkit/pkg/plan"
	"github.com/dmitrymomot/meterkit/pkg/reconciler"
	"github.com/dmitrymomot/meterkit/pkg/usagegate"
)

// Router mounts the engine's HTTP surface:
//
//	POST /webhooks/billing                   gateway lifecycle event feed
//	POST /tenants/{tenantID}/consume         metered-action decision point
//	GET  /tenants/{tenantID}/usage           usage meter, display only
//	GET  /tenants/{tenantID}/entitlement     entitlement, display only
//	POST /tenants/{tenantID}/checkout        hosted checkout session
//	POST /tenants/{tenantID}/portal          customer portal session
//	POST /admin/tenants/{tenantID}/override  administrative escape hatch
func (s *Service) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)

	r.Method(http.MethodPost, "/webhooks/billing",
		reconciler.WebhookHandler(s.reconciler, s.cfg.SignatureHeader))

	r.Route("/tenants/{tenantID}", func(r chi.Router) {
		r.Post("/consume", s.handleConsume)
		r.Get("/usage", s.handleUsage)
		r.Get("/entitlement", s.handleEntitlement)
		r.Post("/checkout", s.handleCheckout)
		r.Post("/portal", s.handlePortal)
	})

	r.Post("/admin/tenants/{tenantID}/override", s.handleAdminOverride)

	return r
}

type consumeRequest struct {
	Units        int64 `json:"units"`
	OverageOptIn bool  `json:"overage_opt_in"`
}

type consumeResponse struct {
	Allowed          bool        `json:"allowed"`
	Reason           string      `json:"reason,omitempty"`
	Overage          bool        `json:"overage,omitempty"`
	OverageUnitPrice *plan.Money `json:"overage_unit_price,omitempty"`
	MonthlyUsed      int64       `json:"monthly_used"`
	MonthlyQuota     int64       `json:"monthly_quota"`
}

func (s *Service) handleConsume(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	var req consumeRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}

	var opts []usagegate.ConsumeOption
	if req.OverageOptIn {
		opts = append(opts, usagegate.WithOverageOptIn())
	}

	decision, err := s.gate.CheckAndConsume(r.Context(), tenantID, req.Units, opts...)
	if err != nil {
		// Storage failures must fail the request; a swallowed ledger write
		// would let a quota-consuming action through uncounted.
		s.log.ErrorContext(r.Context(), "usage gate failure",
			slog.String("tenant_id", tenantID.String()),
			slog.Any("error", err),
		)
		http.Error(w, "usage check failed", http.StatusInternalServerError)
		return
	}

	resp := consumeResponse{
		Allowed:      decision.Allowed,
		Reason:       string(decision.Reason),
		Overage:      decision.Overage,
		MonthlyUsed:  decision.MonthlyUsed,
		MonthlyQuota: decision.MonthlyQuota,
	}
	if decision.Overage {
		resp.OverageUnitPrice = &decision.OverageUnitPrice
	}

	writeJSON(w, decisionStatus(decision), resp)
}

// decisionStatus maps the typed decision to the HTTP contract: payment
// problems surface as 402 so clients can route the user to billing, quota
// exhaustion as 429 so clients can back off or prompt an upgrade.
func decisionStatus(d usagegate.Decision) int {
	if d.Allowed {
		return http.StatusOK
	}
	switch d.Reason {
	case usagegate.DenySubscriptionRequired:
		return http.StatusPaymentRequired
	default:
		return http.StatusTooManyRequests
	}
}

func (s *Service) handleUsage(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	summary, err := s.gate.Usage(r.Context(), tenantID)
	if err != nil {
		http.Error(w, "failed to read usage", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tier":          summary.Tier,
		"status":        summary.Status,
		"monthly_used":  summary.MonthlyUsed,
		"monthly_quota": summary.MonthlyQuota,
		"daily_used":    summary.DailyUsed,
		"daily_quota":   summary.DailyQuota,
	})
}

func (s *Service) handleEntitlement(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	ent, err := s.entitlements.Get(r.Context(), tenantID)
	if err != nil {
		if errors.Is(err, entitlement.ErrNotFound) {
			ent = entitlement.New(tenantID)
		} else {
			http.Error(w, "failed to read entitlement", http.StatusInternalServerError)
			return
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id":  ent.TenantID,
		"tier":       ent.Tier,
		"status":     ent.Status,
		"renewal_at": ent.RenewalAt,
	})
}

type checkoutRequest struct {
	PriceID    string `json:"price_id"`
	Email      string `json:"email"`
	SuccessURL string `json:"success_url"`
	CancelURL  string `json:"cancel_url"`
}

func (s *Service) handleCheckout(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	link, err := s.provider.CreateCheckoutLink(r.Context(), billing.CheckoutRequest{
		PriceID:    req.PriceID,
		CustomerID: tenantID.String(),
		Email:      req.Email,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		s.log.ErrorContext(r.Context(), "checkout link creation failed",
			slog.String("tenant_id", tenantID.String()),
			slog.Any("error", err),
		)
		http.Error(w, "failed to create checkout link", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":        link.URL,
		"session_id": link.SessionID,
		"expires_at": link.ExpiresAt,
	})
}

// handlePortal returns a temporary customer portal session where the tenant
// manages the subscription (payment method, cancellation, plan change). The
// subscription reference comes from the stored entitlement, so the endpoint
// only works for tenants that have one.
func (s *Service) handlePortal(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	ent, err := s.entitlements.Get(r.Context(), tenantID)
	if err != nil || ent.SubscriptionID == "" {
		http.Error(w, "tenant has no subscription", http.StatusNotFound)
		return
	}

	link, err := s.provider.GetCustomerPortalLink(r.Context(), tenantID.String(), ent.SubscriptionID)
	if err != nil {
		s.log.ErrorContext(r.Context(), "portal link creation failed",
			slog.String("tenant_id", tenantID.String()),
			slog.Any("error", err),
		)
		http.Error(w, "failed to create portal link", http.StatusBadGateway)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"url":                link.URL,
		"cancel_url":         link.CancelURL,
		"update_payment_url": link.UpdatePaymentURL,
		"expires_at":         link.ExpiresAt,
	})
}

type overrideRequest struct {
	Tier   plan.Tier          `json:"tier"`
	Status entitlement.Status `json:"status"`
}

func (s *Service) handleAdminOverride(w http.ResponseWriter, r *http.Request) {
	tenantID, ok := tenantIDFromRequest(w, r)
	if !ok {
		return
	}

	var req overrideRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Tier.Valid() {
		http.Error(w, "unknown plan tier", http.StatusBadRequest)
		return
	}

	ent, err := s.entitlements.OverrideAdmin(r.Context(), tenantID, req.Tier, req.Status)
	if err != nil {
		http.Error(w, "override failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": ent.TenantID,
		"tier":      ent.Tier,
		"status":    ent.Status,
	})
}

func tenantIDFromRequest(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	tenantID, err := uuid.Parse(chi.URLParam(r, "tenantID"))
	if err != nil {
		http.Error(w, "invalid tenant ID", http.StatusBadRequest)
		return uuid.Nil, false
	}
	return tenantID, true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
