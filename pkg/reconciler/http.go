package reconciler

import (
	"errors"
	"io"
	"net/http"
)

// DefaultSignatureHeader is the header Paddle uses for webhook signatures.
const DefaultSignatureHeader = "Paddle-Signature"

// WebhookHandler adapts a Reconciler to an http.Handler for the gateway's
// webhook deliveries. The response code is the redelivery contract: 2xx
// acknowledges, 4xx tells the gateway the delivery is permanently rejected,
// and 5xx asks for redelivery after a transient failure.
func WebhookHandler(r *Reconciler, signatureHeader string) http.Handler {
	if signatureHeader == "" {
		signatureHeader = DefaultSignatureHeader
	}

	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		payload, err := io.ReadAll(http.MaxBytesReader(w, req.Body, 1<<20))
		if err != nil {
			http.Error(w, "failed to read request body", http.StatusBadRequest)
			return
		}

		if err := r.Handle(req.Context(), payload, req.Header.Get(signatureHeader)); err != nil {
			if errors.Is(err, ErrInvalidSignature) || errors.Is(err, ErrMalformedEvent) {
				http.Error(w, "webhook rejected", http.StatusBadRequest)
				return
			}
			http.Error(w, "webhook processing failed", http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
	})
}
