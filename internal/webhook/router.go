package webhook

import (
	"context"
	"log/slog"
	"sort"
)

// Event types the service reacts to.
const (
	EventCheckoutSessionCompleted = "checkout.session.completed"
	EventSubscriptionCreated      = "customer.subscription.created"
	EventSubscriptionUpdated      = "customer.subscription.updated"
	EventSubscriptionDeleted      = "customer.subscription.deleted"
	EventInvoicePaymentSucceeded  = "invoice.payment_succeeded"
)

// CatalogEventTypes change what the pricing page lists.
var CatalogEventTypes = []string{
	"product.created",
	"product.updated",
	"product.deleted",
	"price.created",
	"price.updated",
	"price.deleted",
}

// Routing outcomes reported to the OutcomeRecorder.
const (
	OutcomeHandled = "handled"
	OutcomeIgnored = "ignored"
	OutcomeFailed  = "failed"
)

// HandlerFunc processes one verified event.
type HandlerFunc func(ctx context.Context, evt *Event) error

// OutcomeRecorder observes routing results (CloudWatch in production).
type OutcomeRecorder interface {
	RecordWebhook(ctx context.Context, eventType, outcome string)
}

// Router maps event types to handlers. Types without a handler are logged
// and acknowledged.
type Router struct {
	handlers map[string]HandlerFunc
	recorder OutcomeRecorder
	logger   *slog.Logger
}

// NewRouter creates an empty Router. recorder may be nil.
func NewRouter(recorder OutcomeRecorder, logger *slog.Logger) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		handlers: make(map[string]HandlerFunc),
		recorder: recorder,
		logger:   logger,
	}
}

// Handle registers fn for eventType, replacing any previous registration.
func (r *Router) Handle(eventType string, fn HandlerFunc) {
	r.handlers[eventType] = fn
}

// EventTypes returns the registered event types in sorted order.
func (r *Router) EventTypes() []string {
	out := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// Route dispatches evt. It returns nil when no handler is registered for the
// type, otherwise the handler's error.
func (r *Router) Route(ctx context.Context, evt *Event) error {
	fn, ok := r.handlers[evt.Type]
	if !ok {
		r.logger.InfoContext(ctx, "ignoring unhandled webhook event type",
			"event_id", evt.ID,
			"event_type", evt.Type,
		)
		r.record(ctx, evt.Type, OutcomeIgnored)
		return nil
	}

	if err := fn(ctx, evt); err != nil {
		r.record(ctx, evt.Type, OutcomeFailed)
		return err
	}
	r.record(ctx, evt.Type, OutcomeHandled)
	return nil
}

func (r *Router) record(ctx context.Context, eventType, outcome string) {
	if r.recorder != nil {
		r.recorder.RecordWebhook(ctx, eventType, outcome)
	}
}
