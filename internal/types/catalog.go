package types

import "time"

// BillingInterval is the recurrence period of a price.
type BillingInterval string

const (
	IntervalMonth    BillingInterval = "month"
	IntervalYear     BillingInterval = "year"
	IntervalLifetime BillingInterval = "lifetime"
)

// BillingIntervals lists intervals in display order.
var BillingIntervals = []BillingInterval{IntervalMonth, IntervalYear, IntervalLifetime}

// ParseBillingInterval returns the interval named by s, or false.
func ParseBillingInterval(s string) (BillingInterval, bool) {
	for _, i := range BillingIntervals {
		if string(i) == s {
			return i, true
		}
	}
	return "", false
}

// PriceType distinguishes recurring prices from one-time (lifetime) prices.
type PriceType string

const (
	PriceTypeRecurring PriceType = "recurring"
	PriceTypeOneTime   PriceType = "one_time"
)

// Price is a read-only mirror of a provider price.
type Price struct {
	ID         string          `json:"id"`
	ProductID  string          `json:"product_id"`
	UnitAmount int64           `json:"unit_amount"`
	Currency   string          `json:"currency"`
	Type       PriceType       `json:"type"`
	Interval   BillingInterval `json:"interval"`
	Nickname   string          `json:"nickname,omitempty"`
}

// Product is a read-only mirror of a provider product with its active prices.
type Product struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Prices      []Price `json:"prices"`
}

// Catalog is the set of products offered on the pricing page.
type Catalog struct {
	Products  []Product `json:"products"`
	FetchedAt time.Time `json:"fetched_at"`
}

// FindPrice returns the price with the given id.
func (c *Catalog) FindPrice(id string) (Price, bool) {
	if c == nil {
		return Price{}, false
	}
	for _, p := range c.Products {
		for _, pr := range p.Prices {
			if pr.ID == id {
				return pr, true
			}
		}
	}
	return Price{}, false
}

// RedirectURLs holds the browser return targets for a hosted checkout.
type RedirectURLs struct {
	Success string
	Cancel  string
}
