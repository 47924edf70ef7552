package types

import (
	"encoding/json"
	"time"
)

// SubscriptionStatus mirrors the provider's subscription lifecycle state.
type SubscriptionStatus string

const (
	SubStatusActive            SubscriptionStatus = "active"
	SubStatusTrialing          SubscriptionStatus = "trialing"
	SubStatusPastDue           SubscriptionStatus = "past_due"
	SubStatusCanceled          SubscriptionStatus = "canceled"
	SubStatusUnpaid            SubscriptionStatus = "unpaid"
	SubStatusIncomplete        SubscriptionStatus = "incomplete"
	SubStatusIncompleteExpired SubscriptionStatus = "incomplete_expired"
	SubStatusPaused            SubscriptionStatus = "paused"
)

// IsEntitled reports whether the status grants access to the paid product.
// The pricing page shows "Manage" instead of "Subscribe" for these.
func (s SubscriptionStatus) IsEntitled() bool {
	return s == SubStatusActive || s == SubStatusTrialing
}

// isoMillisLayout renders UTC timestamps with millisecond precision and a
// literal Z suffix, e.g. 2023-11-14T22:13:20.000Z.
const isoMillisLayout = "2006-01-02T15:04:05.000Z"

// FormatISO formats t as an ISO-8601 UTC string with millisecond precision.
func FormatISO(t time.Time) string {
	return t.UTC().Format(isoMillisLayout)
}

// TimeFromUnixSeconds converts provider seconds-since-epoch into a UTC time.
// The conversion goes through milliseconds (seconds*1000) so the stored value
// is independent of the host timezone.
func TimeFromUnixSeconds(sec int64) time.Time {
	return time.UnixMilli(sec * 1000).UTC()
}

// Subscription is the local mirror of a provider subscription.
// StripeSubscriptionID is the unique write key.
type Subscription struct {
	StripeSubscriptionID string
	StripeCustomerID     string
	PriceID              string
	Status               SubscriptionStatus
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
	PlanName             string
	LatestInvoiceID      string
	InvoicePDF           string
	Email                string
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

type subscriptionJSON struct {
	StripeSubscriptionID string             `json:"stripe_subscription_id"`
	StripeCustomerID     string             `json:"stripe_customer_id"`
	PriceID              string             `json:"price_id,omitempty"`
	Status               SubscriptionStatus `json:"status"`
	CurrentPeriodStart   *string            `json:"current_period_start"`
	CurrentPeriodEnd     *string            `json:"current_period_end"`
	PlanName             string             `json:"plan_name,omitempty"`
	LatestInvoiceID      string             `json:"latest_invoice_id,omitempty"`
	InvoicePDF           string             `json:"invoice_pdf,omitempty"`
	Email                string             `json:"email,omitempty"`
}

// MarshalJSON renders period timestamps in ISO-8601 millisecond form.
func (s Subscription) MarshalJSON() ([]byte, error) {
	out := subscriptionJSON{
		StripeSubscriptionID: s.StripeSubscriptionID,
		StripeCustomerID:     s.StripeCustomerID,
		PriceID:              s.PriceID,
		Status:               s.Status,
		PlanName:             s.PlanName,
		LatestInvoiceID:      s.LatestInvoiceID,
		InvoicePDF:           s.InvoicePDF,
		Email:                s.Email,
	}
	if s.CurrentPeriodStart != nil {
		v := FormatISO(*s.CurrentPeriodStart)
		out.CurrentPeriodStart = &v
	}
	if s.CurrentPeriodEnd != nil {
		v := FormatISO(*s.CurrentPeriodEnd)
		out.CurrentPeriodEnd = &v
	}
	return json.Marshal(out)
}

// SubscriptionUpdate carries the fields an update event supplies. A nil field
// means the event did not carry it and the stored value must be preserved.
type SubscriptionUpdate struct {
	StripeSubscriptionID string
	Status               *SubscriptionStatus
	PriceID              *string
	PlanName             *string
	CurrentPeriodStart   *time.Time
	CurrentPeriodEnd     *time.Time
}

// InvoiceUpdate carries the invoice fields recorded after a successful payment.
type InvoiceUpdate struct {
	StripeSubscriptionID string
	InvoiceID            string
	InvoicePDF           *string
	Email                *string
}
