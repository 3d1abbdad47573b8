package reconciler

import "errors"

var (
	// ErrInvalidSignature marks a delivery that failed authenticity
	// verification. Terminal: the gateway must not redeliver it.
	ErrInvalidSignature = errors.New("webhook signature verification failed")

	// ErrMalformedEvent marks a payload that verified but cannot be parsed.
	// Terminal for the same reason.
	ErrMalformedEvent = errors.New("malformed lifecycle event payload")
)
