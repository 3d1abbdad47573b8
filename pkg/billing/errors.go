package billing

import "errors"

var (
	ErrMissingAPIKey              = errors.New("billing provider API key is required")
	ErrMissingWebhookSecret       = errors.New("billing provider webhook secret is required")
	ErrInvalidProviderEnvironment = errors.New("invalid billing provider environment")

	ErrWebhookVerificationFailed = errors.New("webhook signature verification failed")
	ErrMalformedPayload          = errors.New("malformed webhook payload")

	ErrMissingPriceID    = errors.New("price ID is required")
	ErrMissingCustomerID = errors.New("customer ID is required")
	ErrNoCheckoutURL     = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL       = errors.New("no portal URL returned from provider")
)
