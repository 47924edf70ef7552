// Package reconcile mirrors provider subscription state into the local
// subscriptions table. Every handler performs at most one write, keyed by
// the provider subscription id, so redelivered events converge on the same
// row.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"billingsync/internal/external"
	"billingsync/internal/types"
	"billingsync/internal/webhook"
)

// SubscriptionStore is the write side of the subscriptions table.
type SubscriptionStore interface {
	Insert(ctx context.Context, sub *types.Subscription) (bool, error)
	Update(ctx context.Context, u types.SubscriptionUpdate) (int64, error)
	UpdateStatus(ctx context.Context, subscriptionID string, status types.SubscriptionStatus) (int64, error)
	UpdateInvoice(ctx context.Context, u types.InvoiceUpdate) (int64, error)
}

// CustomerLookup resolves a provider customer when an event carries only its id.
type CustomerLookup interface {
	GetCustomer(ctx context.Context, customerID string) (*external.Customer, error)
}

// Reconciler holds the per-event handlers.
type Reconciler struct {
	subs      SubscriptionStore
	customers CustomerLookup
	logger    *slog.Logger
}

// New creates a Reconciler. customers may be nil, in which case email is
// only taken from expanded customer objects.
func New(subs SubscriptionStore, customers CustomerLookup, logger *slog.Logger) *Reconciler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{subs: subs, customers: customers, logger: logger}
}

// Register installs the handlers on router.
func (r *Reconciler) Register(router *webhook.Router) {
	router.Handle(webhook.EventCheckoutSessionCompleted, r.CheckoutCompleted)
	router.Handle(webhook.EventSubscriptionCreated, r.SubscriptionCreated)
	router.Handle(webhook.EventSubscriptionUpdated, r.SubscriptionUpdated)
	router.Handle(webhook.EventSubscriptionDeleted, r.SubscriptionDeleted)
	router.Handle(webhook.EventInvoicePaymentSucceeded, r.InvoicePaymentSucceeded)
}

// CheckoutCompleted records the session for observability. Subscription
// rows are written by the subscription events that follow.
func (r *Reconciler) CheckoutCompleted(ctx context.Context, evt *webhook.Event) error {
	var session checkoutSessionObject
	if err := decode(evt, &session); err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "checkout session completed",
		"event_id", evt.ID,
		"session_id", session.ID,
		"mode", session.Mode,
		"customer_id", session.Customer.ID,
		"subscription_id", session.Subscription.ID,
		"user_id", session.ClientReferenceID,
		"metadata", session.Metadata,
	)
	return nil
}

// SubscriptionCreated inserts the subscription row. A row that already
// exists is left as is.
func (r *Reconciler) SubscriptionCreated(ctx context.Context, evt *webhook.Event) error {
	obj, err := decodeSubscription(evt)
	if err != nil {
		return err
	}

	start, end := obj.periods()
	priceID, nickname := obj.price()

	sub := &types.Subscription{
		StripeSubscriptionID: obj.ID,
		StripeCustomerID:     obj.Customer.ID,
		PriceID:              deref(priceID),
		Status:               types.SubscriptionStatus(obj.Status),
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
		PlanName:             deref(nickname),
		Email:                r.resolveEmail(ctx, evt, obj),
	}

	inserted, err := r.subs.Insert(ctx, sub)
	if err != nil {
		r.logFailure(ctx, evt, obj.ID, err)
		return err
	}

	r.logger.InfoContext(ctx, "subscription created",
		"event_id", evt.ID,
		"subscription_id", obj.ID,
		"customer_id", obj.Customer.ID,
		"status", obj.Status,
		"inserted", inserted,
	)
	return nil
}

// SubscriptionUpdated applies the status, price and period carried by the
// event. Fields the event omits keep their stored value.
func (r *Reconciler) SubscriptionUpdated(ctx context.Context, evt *webhook.Event) error {
	obj, err := decodeSubscription(evt)
	if err != nil {
		return err
	}

	start, end := obj.periods()
	priceID, nickname := obj.price()

	u := types.SubscriptionUpdate{
		StripeSubscriptionID: obj.ID,
		PriceID:              priceID,
		PlanName:             nickname,
		CurrentPeriodStart:   start,
		CurrentPeriodEnd:     end,
	}
	if obj.Status != "" {
		status := types.SubscriptionStatus(obj.Status)
		u.Status = &status
	}

	n, err := r.subs.Update(ctx, u)
	if err != nil {
		r.logFailure(ctx, evt, obj.ID, err)
		return err
	}
	if n == 0 {
		r.logger.WarnContext(ctx, "subscription update matched no rows",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"subscription_id", obj.ID,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "subscription updated",
		"event_id", evt.ID,
		"subscription_id", obj.ID,
		"status", obj.Status,
	)
	return nil
}

// SubscriptionDeleted sets the terminal status. The row is kept.
func (r *Reconciler) SubscriptionDeleted(ctx context.Context, evt *webhook.Event) error {
	obj, err := decodeSubscription(evt)
	if err != nil {
		return err
	}

	status := types.SubscriptionStatus(obj.Status)
	if status == "" {
		status = types.SubStatusCanceled
	}

	n, err := r.subs.UpdateStatus(ctx, obj.ID, status)
	if err != nil {
		r.logFailure(ctx, evt, obj.ID, err)
		return err
	}
	if n == 0 {
		r.logger.WarnContext(ctx, "subscription delete matched no rows",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"subscription_id", obj.ID,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "subscription deleted",
		"event_id", evt.ID,
		"subscription_id", obj.ID,
		"status", status,
	)
	return nil
}

// InvoicePaymentSucceeded records the paid invoice on its subscription.
// Invoices without a subscription (one-time payments) are skipped.
func (r *Reconciler) InvoicePaymentSucceeded(ctx context.Context, evt *webhook.Event) error {
	var inv invoiceObject
	if err := decode(evt, &inv); err != nil {
		return err
	}

	subID := inv.subscriptionID()
	if subID == "" {
		r.logger.InfoContext(ctx, "invoice has no subscription, skipping",
			"event_id", evt.ID,
			"invoice_id", inv.ID,
		)
		return nil
	}

	n, err := r.subs.UpdateInvoice(ctx, types.InvoiceUpdate{
		StripeSubscriptionID: subID,
		InvoiceID:            inv.ID,
		InvoicePDF:           stringPtr(inv.InvoicePDF),
		Email:                stringPtr(inv.CustomerEmail),
	})
	if err != nil {
		r.logFailure(ctx, evt, subID, err)
		return err
	}
	if n == 0 {
		r.logger.WarnContext(ctx, "invoice matched no subscription rows",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"subscription_id", subID,
			"invoice_id", inv.ID,
		)
		return nil
	}

	r.logger.InfoContext(ctx, "invoice recorded",
		"event_id", evt.ID,
		"subscription_id", subID,
		"invoice_id", inv.ID,
	)
	return nil
}

// resolveEmail prefers the expanded customer object and otherwise performs
// a single lookup. A failed lookup leaves the email empty; the next paid
// invoice fills it in.
func (r *Reconciler) resolveEmail(ctx context.Context, evt *webhook.Event, obj *subscriptionObject) string {
	if obj.Customer.Email != "" || obj.Customer.ID == "" || r.customers == nil {
		return obj.Customer.Email
	}

	c, err := r.customers.GetCustomer(ctx, obj.Customer.ID)
	if err != nil {
		r.logger.WarnContext(ctx, "customer lookup failed, continuing without email",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"subscription_id", obj.ID,
			"customer_id", obj.Customer.ID,
			"error", err,
		)
		return ""
	}
	return c.Email
}

func (r *Reconciler) logFailure(ctx context.Context, evt *webhook.Event, subscriptionID string, err error) {
	r.logger.ErrorContext(ctx, "webhook write failed",
		"event_id", evt.ID,
		"event_type", evt.Type,
		"subscription_id", subscriptionID,
		"error", err,
	)
}

func decode(evt *webhook.Event, v any) error {
	if len(evt.Object) == 0 {
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid,
			fmt.Sprintf("%s: event %s has no data object", evt.Type, evt.ID), nil)
	}
	if err := json.Unmarshal(evt.Object, v); err != nil {
		return types.NewAppError(types.ErrCodeWebhookPayloadInvalid,
			fmt.Sprintf("%s: event %s has malformed data object", evt.Type, evt.ID), err)
	}
	return nil
}

func decodeSubscription(evt *webhook.Event) (*subscriptionObject, error) {
	var obj subscriptionObject
	if err := decode(evt, &obj); err != nil {
		return nil, err
	}
	if obj.ID == "" {
		return nil, types.NewAppError(types.ErrCodeWebhookPayloadInvalid,
			fmt.Sprintf("%s: event %s has no subscription id", evt.Type, evt.ID), nil)
	}
	return &obj, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
