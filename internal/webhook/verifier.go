// Package webhook authenticates provider callbacks and dispatches them by
// event type. Handlers receive the raw data.object bytes and decode only the
// fields they need.
package webhook

import (
	"encoding/json"
	"errors"
	"strings"
	"time"

	stripewebhook "github.com/stripe/stripe-go/v82/webhook"

	"billingsync/internal/types"
)

// Event is a verified provider event.
type Event struct {
	ID      string
	Type    string
	Created time.Time
	// Object is data.object exactly as delivered.
	Object json.RawMessage
}

// Verifier authenticates a raw webhook payload.
type Verifier interface {
	// Verify checks header against the exact bytes received and returns the
	// decoded event. Errors are AppErrors coded webhook_signature_missing,
	// webhook_signature_invalid or webhook_payload_invalid.
	Verify(payload []byte, header, secret string) (*Event, error)
}

// StripeVerifier verifies Stripe-Signature headers (HMAC-SHA256 with a
// timestamp tolerance) through stripe-go.
type StripeVerifier struct {
	// Tolerance overrides the default five minute replay window when positive.
	Tolerance time.Duration
}

var _ Verifier = StripeVerifier{}

// Verify implements Verifier.
func (v StripeVerifier) Verify(payload []byte, header, secret string) (*Event, error) {
	if strings.TrimSpace(header) == "" {
		return nil, types.NewAppError(types.ErrCodeWebhookSignatureMissing, "missing Stripe-Signature header", nil)
	}

	// API versions may differ between the account and the SDK; only a few
	// stable fields are decoded downstream.
	evt, err := stripewebhook.ConstructEventWithOptions(payload, header, secret, stripewebhook.ConstructEventOptions{
		Tolerance:                v.Tolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		if isSignatureError(err) {
			return nil, types.NewAppError(types.ErrCodeWebhookSignatureInvalid, "webhook signature verification failed", err)
		}
		return nil, types.NewAppError(types.ErrCodeWebhookPayloadInvalid, "webhook payload could not be decoded", err)
	}

	out := &Event{
		ID:      evt.ID,
		Type:    string(evt.Type),
		Created: types.TimeFromUnixSeconds(evt.Created),
	}
	if evt.Data != nil {
		out.Object = evt.Data.Raw
	}
	return out, nil
}

func isSignatureError(err error) bool {
	return errors.Is(err, stripewebhook.ErrNotSigned) ||
		errors.Is(err, stripewebhook.ErrInvalidHeader) ||
		errors.Is(err, stripewebhook.ErrNoValidSignature) ||
		errors.Is(err, stripewebhook.ErrTooOld)
}
