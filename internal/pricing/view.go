// Package pricing builds the pricing page view from the catalog and the
// viewer's subscription, and renders it with embedded templates.
package pricing

import (
	"net/url"

	"billingsync/internal/types"
)

// Action is the call to action shown on every plan card.
type Action string

const (
	ActionSubscribe Action = "subscribe"
	ActionManage    Action = "manage"
)

var intervalLabels = map[types.BillingInterval]string{
	types.IntervalMonth:    "Monthly",
	types.IntervalYear:     "Yearly",
	types.IntervalLifetime: "Lifetime",
}

var intervalSuffix = map[types.BillingInterval]string{
	types.IntervalMonth: "/month",
	types.IntervalYear:  "/year",
}

// IntervalOption is one entry of the interval toggle.
type IntervalOption struct {
	Value    types.BillingInterval `json:"value"`
	Label    string                `json:"label"`
	Selected bool                  `json:"selected"`
}

// PlanView is a product with its price for the selected interval.
type PlanView struct {
	ProductID   string `json:"product_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	PriceID     string `json:"price_id"`
	Nickname    string `json:"nickname,omitempty"`
	Amount      string `json:"amount"`
	UnitAmount  int64  `json:"unit_amount"`
	Currency    string `json:"currency"`
	Suffix      string `json:"suffix,omitempty"`
}

// View is the pricing page model, served as HTML and as JSON.
type View struct {
	Interval       types.BillingInterval    `json:"interval"`
	Intervals      []IntervalOption         `json:"intervals"`
	Plans          []PlanView               `json:"plans"`
	Action         Action                   `json:"action"`
	SignedIn       bool                     `json:"signed_in"`
	Status         types.SubscriptionStatus `json:"subscription_status,omitempty"`
	PublishableKey string                   `json:"publishable_key"`
	ReturnPath     string                   `json:"return_path"`
}

// Options carries request-independent page settings.
type Options struct {
	PublishableKey string
	// BasePath is the page's own path, used to build the checkout return path.
	BasePath string
}

// AvailableIntervals returns the intervals that have at least one price, in
// month, year, lifetime order.
func AvailableIntervals(catalog *types.Catalog) []types.BillingInterval {
	present := map[types.BillingInterval]bool{}
	if catalog != nil {
		for _, p := range catalog.Products {
			for _, pr := range p.Prices {
				present[pr.Interval] = true
			}
		}
	}

	var out []types.BillingInterval
	for _, i := range types.BillingIntervals {
		if present[i] {
			out = append(out, i)
		}
	}
	return out
}

// SelectInterval returns requested when it is available, otherwise the first
// available interval. It returns "" for an empty catalog.
func SelectInterval(available []types.BillingInterval, requested string) types.BillingInterval {
	if want, ok := types.ParseBillingInterval(requested); ok {
		for _, i := range available {
			if i == want {
				return i
			}
		}
	}
	if len(available) == 0 {
		return ""
	}
	return available[0]
}

// BuildView assembles the page model. user and sub may be nil.
func BuildView(catalog *types.Catalog, requested string, user *types.User, sub *types.Subscription, opts Options) View {
	available := AvailableIntervals(catalog)
	selected := SelectInterval(available, requested)

	v := View{
		Interval:       selected,
		Intervals:      make([]IntervalOption, 0, len(available)),
		Plans:          []PlanView{},
		Action:         ActionSubscribe,
		SignedIn:       user != nil,
		PublishableKey: opts.PublishableKey,
		ReturnPath:     returnPath(opts.BasePath, selected),
	}

	for _, i := range available {
		v.Intervals = append(v.Intervals, IntervalOption{Value: i, Label: intervalLabels[i], Selected: i == selected})
	}

	if sub != nil {
		v.Status = sub.Status
		if sub.Status.IsEntitled() {
			v.Action = ActionManage
		}
	}

	if catalog == nil {
		return v
	}
	for _, p := range catalog.Products {
		for _, pr := range p.Prices {
			if pr.Interval != selected {
				continue
			}
			v.Plans = append(v.Plans, PlanView{
				ProductID:   p.ID,
				Name:        p.Name,
				Description: p.Description,
				PriceID:     pr.ID,
				Nickname:    pr.Nickname,
				Amount:      FormatAmount(pr.UnitAmount, pr.Currency),
				UnitAmount:  pr.UnitAmount,
				Currency:    pr.Currency,
				Suffix:      intervalSuffix[pr.Interval],
			})
			break
		}
	}
	return v
}

func returnPath(base string, interval types.BillingInterval) string {
	if base == "" {
		base = "/pricing"
	}
	if interval == "" {
		return base
	}
	return base + "?" + url.Values{"interval": {string(interval)}}.Encode()
}
