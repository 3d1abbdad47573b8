package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	paddle "github.com/PaddleHQ/paddle-go-sdk/v4"
)

// PaddleConfig holds configuration for the Paddle billing provider.
type PaddleConfig struct {
	APIKey        string `env:"PADDLE_API_KEY,required"`
	WebhookSecret string `env:"PADDLE_WEBHOOK_SECRET,required"`
	Environment   string `env:"PADDLE_ENVIRONMENT" envDefault:"production"`
}

// PaddleProvider implements Provider for Paddle.
type PaddleProvider struct {
	client   *paddle.SDK
	verifier *paddle.WebhookVerifier
	config   PaddleConfig
}

// NewPaddleProvider creates a new Paddle billing provider.
func NewPaddleProvider(config PaddleConfig) (*PaddleProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingWebhookSecret
	}

	var client *paddle.SDK
	var err error

	switch strings.ToLower(config.Environment) {
	case "sandbox":
		client, err = paddle.NewSandbox(config.APIKey)
	case "production", "":
		client, err = paddle.New(config.APIKey)
	default:
		return nil, fmt.Errorf("%w: %s", ErrInvalidProviderEnvironment, config.Environment)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle client: %w", err)
	}

	return &PaddleProvider{
		client:   client,
		verifier: paddle.NewWebhookVerifier(config.WebhookSecret),
		config:   config,
	}, nil
}

// ParseWebhook validates and parses an incoming Paddle webhook delivery.
func (p *PaddleProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*LifecycleEvent, error) {
	// Paddle's verifier operates on the HTTP request, so rebuild one around
	// the raw payload and signature header.
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/webhook", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request for verification: %w", err)
	}
	req.Header.Set("Paddle-Signature", signature)

	valid, err := p.verifier.Verify(req)
	if err != nil {
		return nil, errors.Join(ErrWebhookVerificationFailed, err)
	}
	if !valid {
		return nil, ErrWebhookVerificationFailed
	}

	var paddleEvent struct {
		EventID    string         `json:"event_id"`
		EventType  string         `json:"event_type"`
		OccurredAt string         `json:"occurred_at"`
		Data       map[string]any `json:"data"`
	}
	if err := json.Unmarshal(payload, &paddleEvent); err != nil {
		return nil, errors.Join(ErrMalformedPayload, err)
	}
	if paddleEvent.EventID == "" || paddleEvent.EventType == "" {
		return nil, fmt.Errorf("%w: missing event_id or event_type", ErrMalformedPayload)
	}

	event := &LifecycleEvent{
		ID:            paddleEvent.EventID,
		Type:          mapPaddleEventType(paddleEvent.EventType),
		ProviderEvent: paddleEvent.EventType,
		Raw:           paddleEvent.Data,
	}

	if occurredAt, err := time.Parse(time.RFC3339, paddleEvent.OccurredAt); err == nil {
		event.OccurredAt = occurredAt.UTC()
	}

	if strings.HasPrefix(paddleEvent.EventType, "subscription.") {
		parsePaddleSubscription(event, paddleEvent.Data)
	}
	if strings.HasPrefix(paddleEvent.EventType, "transaction.") {
		parsePaddleTransaction(event, paddleEvent.Data)
	}

	return event, nil
}

func parsePaddleSubscription(event *LifecycleEvent, data map[string]any) {
	if subID, ok := data["id"].(string); ok {
		event.SubscriptionID = subID
	}
	if status, ok := data["status"].(string); ok {
		event.Status = status
	}
	if customData, ok := data["custom_data"].(map[string]any); ok {
		if customerID, ok := customData["customer_id"].(string); ok {
			event.CustomerID = customerID
		}
	}
	if nextBilled, ok := data["next_billed_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, nextBilled); err == nil {
			t = t.UTC()
			event.NextBilledAt = &t
		}
	}
	// Price reference lives inside the first subscription item
	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if price, ok := item["price"].(map[string]any); ok {
				if priceID, ok := price["id"].(string); ok {
					event.PriceID = priceID
				}
			}
		}
	}
	event.PaymentConfirmed = paddlePaymentConfirmed(event.Status, data)
}

func parsePaddleTransaction(event *LifecycleEvent, data map[string]any) {
	// Transactions carry the subscription reference when they belong to one
	if subID, ok := data["subscription_id"].(string); ok && subID != "" {
		event.SubscriptionID = subID
	} else if txnID, ok := data["id"].(string); ok {
		event.SubscriptionID = txnID
	}
	if status, ok := data["status"].(string); ok {
		event.Status = status
	}
	if customData, ok := data["custom_data"].(map[string]any); ok {
		if customerID, ok := customData["customer_id"].(string); ok {
			event.CustomerID = customerID
		}
	}
	if items, ok := data["items"].([]any); ok && len(items) > 0 {
		if item, ok := items[0].(map[string]any); ok {
			if priceID, ok := item["price_id"].(string); ok {
				event.PriceID = priceID
			}
		}
	}
	event.PaymentConfirmed = event.Status == "completed" || event.Status == "paid"
}

// paddlePaymentConfirmed determines whether a subscription has a settled
// payment or an attached payment method. Subscriptions the gateway already
// reports as active or trialing are confirmed by definition; for incomplete
// ones look for an attached payment method in the payload.
func paddlePaymentConfirmed(status string, data map[string]any) bool {
	switch status {
	case GatewayStatusActive, GatewayStatusTrialing:
		return true
	}
	if methodID, ok := data["payment_method_id"].(string); ok && methodID != "" {
		return true
	}
	if payment, ok := data["payment"].(map[string]any); ok {
		if s, ok := payment["status"].(string); ok && (s == "captured" || s == "authorized") {
			return true
		}
	}
	return false
}

// CreateCheckoutLink creates a hosted checkout session in Paddle.
func (p *PaddleProvider) CreateCheckoutLink(ctx context.Context, req CheckoutRequest) (*CheckoutLink, error) {
	if req.PriceID == "" {
		return nil, ErrMissingPriceID
	}
	if req.CustomerID == "" {
		return nil, ErrMissingCustomerID
	}

	item := paddle.NewCreateTransactionItemsTransactionItemFromCatalog(&paddle.TransactionItemFromCatalog{
		PriceID:  req.PriceID,
		Quantity: 1,
	})

	// customer_id in custom data is how webhook events are resolved back to a
	// tenant, so it must be present on every checkout we create.
	transactionReq := &paddle.CreateTransactionRequest{
		Items: []paddle.CreateTransactionItems{*item},
		CustomData: paddle.CustomData{
			"customer_id": req.CustomerID,
		},
	}
	if req.Email != "" {
		transactionReq.CustomData["email"] = req.Email
	}
	if req.SuccessURL != "" {
		transactionReq.Checkout = &paddle.TransactionCheckout{
			URL: paddle.PtrTo(req.SuccessURL),
		}
	}

	transaction, err := p.client.TransactionsClient.CreateTransaction(ctx, transactionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle transaction: %w", err)
	}

	if transaction.Checkout == nil || transaction.Checkout.URL == nil {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutLink{
		URL:       *transaction.Checkout.URL,
		SessionID: transaction.ID,
		ExpiresAt: time.Now().Add(24 * time.Hour), // Paddle checkout links expire in 24 hours
	}, nil
}

// GetCustomerPortalLink returns a link to Paddle's customer portal.
func (p *PaddleProvider) GetCustomerPortalLink(ctx context.Context, customerID, subscriptionID string) (*PortalLink, error) {
	if customerID == "" {
		return nil, ErrMissingCustomerID
	}

	portalSessionReq := &paddle.CreateCustomerPortalSessionRequest{
		CustomerID: customerID,
	}
	if subscriptionID != "" {
		portalSessionReq.SubscriptionIDs = []string{subscriptionID}
	}

	portalSession, err := p.client.CustomerPortalSessionsClient.CreateCustomerPortalSession(ctx, portalSessionReq)
	if err != nil {
		return nil, fmt.Errorf("failed to create paddle customer portal session: %w", err)
	}

	portalLink := &PortalLink{
		URL:       portalSession.URLs.General.Overview,
		ExpiresAt: time.Now().Add(24 * time.Hour),
	}

	for _, subURL := range portalSession.URLs.Subscriptions {
		if subURL.ID == subscriptionID {
			portalLink.CancelURL = subURL.CancelSubscription
			portalLink.UpdatePaymentURL = subURL.UpdateSubscriptionPaymentMethod
			break
		}
	}

	if portalLink.URL == "" {
		return nil, ErrNoPortalURL
	}

	return portalLink, nil
}

// mapPaddleEventType maps Paddle event types to normalized lifecycle types.
// Unmapped events keep their original name so the reconciler can acknowledge
// them as no-ops without treating new gateway event types as failures.
func mapPaddleEventType(paddleEvent string) EventType {
	switch paddleEvent {
	case "subscription.created":
		return EventSubscriptionCreated
	case "subscription.updated", "subscription.activated", "subscription.resumed",
		"subscription.paused", "subscription.past_due", "subscription.trialing":
		return EventSubscriptionUpdated
	case "subscription.canceled":
		return EventSubscriptionDeleted
	case "transaction.completed", "transaction.payment_succeeded":
		return EventInvoicePaid
	case "transaction.payment_failed":
		return EventInvoiceFailed
	default:
		return EventType(paddleEvent)
	}
}
