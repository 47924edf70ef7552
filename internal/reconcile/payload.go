package reconcile

import (
	"bytes"
	"encoding/json"
	"time"

	"billingsync/internal/types"
)

// ref is a provider reference that arrives either as a bare id string or as
// an expanded object.
type ref struct {
	ID    string
	Email string
}

func (r *ref) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		return nil
	}
	if b[0] == '"' {
		return json.Unmarshal(b, &r.ID)
	}
	var obj struct {
		ID    string `json:"id"`
		Email string `json:"email"`
	}
	if err := json.Unmarshal(b, &obj); err != nil {
		return err
	}
	r.ID, r.Email = obj.ID, obj.Email
	return nil
}

type subscriptionObject struct {
	ID                 string            `json:"id"`
	Customer           ref               `json:"customer"`
	Status             string            `json:"status"`
	CurrentPeriodStart *int64            `json:"current_period_start"`
	CurrentPeriodEnd   *int64            `json:"current_period_end"`
	Items              subscriptionItems `json:"items"`
}

// subscriptionItems accepts the provider's list envelope ({"data": [...]})
// as well as a bare array of items.
type subscriptionItems []subscriptionItem

func (l *subscriptionItems) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*l = nil
		return nil
	}
	if b[0] == '[' {
		var items []subscriptionItem
		if err := json.Unmarshal(b, &items); err != nil {
			return err
		}
		*l = items
		return nil
	}
	var list struct {
		Data []subscriptionItem `json:"data"`
	}
	if err := json.Unmarshal(b, &list); err != nil {
		return err
	}
	*l = list.Data
	return nil
}

type subscriptionItem struct {
	Price struct {
		ID       string  `json:"id"`
		Nickname *string `json:"nickname"`
	} `json:"price"`
	CurrentPeriodStart *int64 `json:"current_period_start"`
	CurrentPeriodEnd   *int64 `json:"current_period_end"`
}

func (s *subscriptionObject) firstItem() *subscriptionItem {
	if len(s.Items) == 0 {
		return nil
	}
	return &s.Items[0]
}

// periods returns the billing period. Newer API versions moved the period
// onto subscription items, so the first item is the fallback.
func (s *subscriptionObject) periods() (start, end *time.Time) {
	startSec, endSec := s.CurrentPeriodStart, s.CurrentPeriodEnd
	if item := s.firstItem(); item != nil {
		if startSec == nil {
			startSec = item.CurrentPeriodStart
		}
		if endSec == nil {
			endSec = item.CurrentPeriodEnd
		}
	}
	return secondsPtr(startSec), secondsPtr(endSec)
}

// price returns the first item's price id and nickname, nil when absent.
func (s *subscriptionObject) price() (id, nickname *string) {
	item := s.firstItem()
	if item == nil {
		return nil, nil
	}
	if item.Price.ID != "" {
		v := item.Price.ID
		id = &v
	}
	if item.Price.Nickname != nil && *item.Price.Nickname != "" {
		nickname = item.Price.Nickname
	}
	return id, nickname
}

type invoiceObject struct {
	ID            string `json:"id"`
	Subscription  ref    `json:"subscription"`
	CustomerEmail string `json:"customer_email"`
	InvoicePDF    string `json:"invoice_pdf"`
	Parent        *struct {
		SubscriptionDetails *struct {
			Subscription ref `json:"subscription"`
		} `json:"subscription_details"`
	} `json:"parent"`
}

// subscriptionID returns the owning subscription from the top-level field
// or, for newer API versions, parent.subscription_details.
func (i *invoiceObject) subscriptionID() string {
	if i.Subscription.ID != "" {
		return i.Subscription.ID
	}
	if i.Parent != nil && i.Parent.SubscriptionDetails != nil {
		return i.Parent.SubscriptionDetails.Subscription.ID
	}
	return ""
}

type checkoutSessionObject struct {
	ID                string            `json:"id"`
	Mode              string            `json:"mode"`
	Customer          ref               `json:"customer"`
	Subscription      ref               `json:"subscription"`
	ClientReferenceID string            `json:"client_reference_id"`
	Metadata          map[string]string `json:"metadata"`
}

func secondsPtr(sec *int64) *time.Time {
	if sec == nil || *sec == 0 {
		return nil
	}
	t := types.TimeFromUnixSeconds(*sec)
	return &t
}

func stringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
