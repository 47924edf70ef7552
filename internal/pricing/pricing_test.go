package pricing

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"billingsync/internal/types"
)

func price(id string, interval types.BillingInterval, amount int64) types.Price {
	p := types.Price{ID: id, UnitAmount: amount, Currency: "usd", Type: types.PriceTypeRecurring, Interval: interval}
	if interval == types.IntervalLifetime {
		p.Type = types.PriceTypeOneTime
	}
	return p
}

func testCatalog() *types.Catalog {
	return &types.Catalog{Products: []types.Product{
		{ID: "prod_basic", Name: "Basic", Prices: []types.Price{
			price("price_basic_y", types.IntervalYear, 9000),
			price("price_basic_m", types.IntervalMonth, 900),
		}},
		{ID: "prod_pro", Name: "Pro", Description: "Everything", Prices: []types.Price{
			price("price_pro_m", types.IntervalMonth, 1999),
		}},
		{ID: "prod_life", Name: "Forever", Prices: []types.Price{
			price("price_life", types.IntervalLifetime, 49900),
		}},
	}}
}

func TestFormatAmount(t *testing.T) {
	tests := []struct {
		amount   int64
		currency string
		want     string
	}{
		{1999, "usd", "$19.99"},
		{900, "USD", "$9.00"},
		{0, "eur", "€0.00"},
		{500, "jpy", "¥500"},
		{123456, "chf", "1234.56 CHF"},
		{7, "gbp", "£0.07"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatAmount(tt.amount, tt.currency), "%d %s", tt.amount, tt.currency)
	}
}

func TestAvailableIntervals(t *testing.T) {
	assert.Equal(t,
		[]types.BillingInterval{types.IntervalMonth, types.IntervalYear, types.IntervalLifetime},
		AvailableIntervals(testCatalog()))

	yearOnly := &types.Catalog{Products: []types.Product{{ID: "p", Prices: []types.Price{price("y", types.IntervalYear, 1)}}}}
	assert.Equal(t, []types.BillingInterval{types.IntervalYear}, AvailableIntervals(yearOnly))
	assert.Empty(t, AvailableIntervals(nil))
}

func TestSelectInterval(t *testing.T) {
	avail := []types.BillingInterval{types.IntervalYear, types.IntervalLifetime}

	assert.Equal(t, types.IntervalLifetime, SelectInterval(avail, "lifetime"))
	assert.Equal(t, types.IntervalYear, SelectInterval(avail, "month"))
	assert.Equal(t, types.IntervalYear, SelectInterval(avail, "bogus"))
	assert.Equal(t, types.IntervalYear, SelectInterval(avail, ""))
	assert.Equal(t, types.BillingInterval(""), SelectInterval(nil, "month"))
}

func TestBuildView_FiltersByInterval(t *testing.T) {
	v := BuildView(testCatalog(), "month", nil, nil, Options{PublishableKey: "pk_test_1"})

	assert.Equal(t, types.IntervalMonth, v.Interval)
	require.Len(t, v.Plans, 2)
	assert.Equal(t, "price_basic_m", v.Plans[0].PriceID)
	assert.Equal(t, "$9.00", v.Plans[0].Amount)
	assert.Equal(t, "/month", v.Plans[0].Suffix)
	assert.Equal(t, "price_pro_m", v.Plans[1].PriceID)
	assert.Equal(t, ActionSubscribe, v.Action)
	assert.False(t, v.SignedIn)
	assert.Equal(t, "pk_test_1", v.PublishableKey)
	assert.Equal(t, "/pricing?interval=month", v.ReturnPath)

	require.Len(t, v.Intervals, 3)
	assert.True(t, v.Intervals[0].Selected)
	assert.Equal(t, "Yearly", v.Intervals[1].Label)
}

func TestBuildView_Lifetime(t *testing.T) {
	v := BuildView(testCatalog(), "lifetime", nil, nil, Options{})
	require.Len(t, v.Plans, 1)
	assert.Equal(t, "price_life", v.Plans[0].PriceID)
	assert.Empty(t, v.Plans[0].Suffix)
}

func TestBuildView_ManageForEntitledSubscription(t *testing.T) {
	user := &types.User{ID: "u1"}
	tests := []struct {
		status types.SubscriptionStatus
		want   Action
	}{
		{types.SubStatusActive, ActionManage},
		{types.SubStatusTrialing, ActionManage},
		{types.SubStatusPastDue, ActionSubscribe},
		{types.SubStatusCanceled, ActionSubscribe},
	}
	for _, tt := range tests {
		v := BuildView(testCatalog(), "", user, &types.Subscription{Status: tt.status}, Options{})
		assert.Equal(t, tt.want, v.Action, string(tt.status))
		assert.Equal(t, tt.status, v.Status)
		assert.True(t, v.SignedIn)
	}
}

func TestBuildView_EmptyCatalog(t *testing.T) {
	v := BuildView(&types.Catalog{}, "month", nil, nil, Options{BasePath: "/plans"})
	assert.Empty(t, v.Plans)
	assert.NotNil(t, v.Plans)
	assert.Empty(t, v.Intervals)
	assert.Equal(t, "/plans", v.ReturnPath)
}

func TestRenderer_Render(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	v := BuildView(testCatalog(), "month", nil, nil, Options{PublishableKey: "pk_test_abc"})
	require.NoError(t, r.Render(&buf, v))

	html := buf.String()
	assert.Contains(t, html, `data-publishable-key="pk_test_abc"`)
	assert.Contains(t, html, `data-price-id="price_pro_m"`)
	assert.Contains(t, html, "$19.99")
	assert.Contains(t, html, "Everything")
	assert.Equal(t, 2, strings.Count(html, ">Subscribe</button>"))
	assert.NotContains(t, html, "price_life")
}

func TestRenderer_ManageAndEscaping(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	catalog := &types.Catalog{Products: []types.Product{{
		ID: "prod_x", Name: `<script>alert(1)</script>`,
		Prices: []types.Price{price("price_x", types.IntervalMonth, 100)},
	}}}
	v := BuildView(catalog, "month", &types.User{ID: "u1"}, &types.Subscription{Status: types.SubStatusActive}, Options{})

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, v))
	assert.Contains(t, buf.String(), ">Manage</button>")
	assert.NotContains(t, buf.String(), "<script>alert(1)</script>")
}

func TestRenderer_EmptyCatalog(t *testing.T) {
	r, err := NewRenderer()
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, r.Render(&buf, BuildView(nil, "", nil, nil, Options{})))
	assert.Contains(t, buf.String(), "No plans are available")
}
