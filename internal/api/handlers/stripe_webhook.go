// Package handlers contains the HTTP handlers for billingsync.
//
// The Stripe webhook endpoint is not behind auth; it is authenticated by the
// Stripe-Signature header. Every other handler reads the optional user that
// core.AuthMiddleware attached to the request context.
package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"billingsync/internal/types"
	"billingsync/internal/webhook"
)

// maxWebhookBodySize bounds a Stripe webhook payload (64 KiB).
const maxWebhookBodySize = 64 * 1024

// Response bodies Stripe sees. These strings are part of the endpoint contract.
const (
	webhookMsgMissingSignature = "Missing Stripe signature"
	webhookMsgInvalidSignature = "Invalid signature"
	webhookMsgHandlerFailed    = "Webhook handler failed"
	webhookMsgInvalidPayload   = "Invalid payload"
)

// EventRouter dispatches a verified event.
type EventRouter interface {
	Route(ctx context.Context, evt *webhook.Event) error
}

// StripeWebhookHandler verifies and routes Stripe events.
type StripeWebhookHandler struct {
	verifier webhook.Verifier
	router   EventRouter
	secret   types.SecretString
	logger   *slog.Logger
}

// NewStripeWebhookHandler creates a StripeWebhookHandler.
func NewStripeWebhookHandler(
	verifier webhook.Verifier,
	router EventRouter,
	secret types.SecretString,
	logger *slog.Logger,
) *StripeWebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeWebhookHandler{
		verifier: verifier,
		router:   router,
		secret:   secret,
		logger:   logger,
	}
}

// RegisterRoutes mounts the webhook endpoint.
func (h *StripeWebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/webhooks/stripe", h.Handle)
}

// Handle implements POST /api/webhooks/stripe.
//
//  1. Read at most 64 KiB of raw body; the signature covers these exact bytes.
//  2. Verify Stripe-Signature. Failures answer 400 before any write.
//  3. Route by event type. Unknown types are acknowledged.
//  4. A handler error answers 400 so Stripe redelivers the event.
func (h *StripeWebhookHandler) Handle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodySize)
	payload, err := io.ReadAll(r.Body)
	if err != nil {
		h.logger.WarnContext(ctx, "failed to read webhook body", "error", err)
		writeWebhookError(w, webhookMsgInvalidPayload)
		return
	}

	// Proxies may split the comma-separated header into several values.
	sigHeader := strings.Join(r.Header.Values("Stripe-Signature"), ",")
	evt, err := h.verifier.Verify(payload, sigHeader, h.secret.Unmask())
	if err != nil {
		switch {
		case types.IsCode(err, types.ErrCodeWebhookSignatureMissing):
			h.logger.WarnContext(ctx, "missing Stripe-Signature header")
			writeWebhookError(w, webhookMsgMissingSignature)
		case types.IsCode(err, types.ErrCodeWebhookPayloadInvalid):
			h.logger.WarnContext(ctx, "signed webhook payload is not a valid event", "error", err)
			writeWebhookError(w, webhookMsgInvalidPayload)
		default:
			h.logger.WarnContext(ctx, "webhook signature verification failed", "error", err)
			writeWebhookError(w, webhookMsgInvalidSignature)
		}
		return
	}

	h.logger.InfoContext(ctx, "processing stripe webhook event",
		"event_id", evt.ID,
		"event_type", evt.Type,
	)

	if err := h.router.Route(ctx, evt); err != nil {
		h.logger.ErrorContext(ctx, "webhook event processing failed",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"error", err,
		)
		writeWebhookError(w, webhookMsgHandlerFailed)
		return
	}

	writeWebhookJSON(w, http.StatusOK, map[string]any{"received": true})
}

func writeWebhookError(w http.ResponseWriter, msg string) {
	writeWebhookJSON(w, http.StatusBadRequest, map[string]string{"error": msg})
}

func writeWebhookJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
