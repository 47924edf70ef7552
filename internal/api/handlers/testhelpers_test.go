package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"billingsync/internal/types"
)

var testUser = types.User{ID: "8f14e45f-ceea-467f-a8a5-bd7ad2e4f0c1", Email: "ada@example.com"}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newRequest(t *testing.T, method, target, body string) *http.Request {
	t.Helper()
	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	return httptest.NewRequest(method, target, r)
}

func asUser(req *http.Request, user types.User) *http.Request {
	return req.WithContext(types.WithUser(req.Context(), user))
}

// mockCatalog implements CatalogReader.
type mockCatalog struct {
	listFn func(ctx context.Context) (*types.Catalog, error)
	calls  int
}

func (m *mockCatalog) ListCatalog(ctx context.Context) (*types.Catalog, error) {
	m.calls++
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return testCatalog(), nil
}

// mockSubscriptions implements SubscriptionReader.
type mockSubscriptions struct {
	getFn func(ctx context.Context, userID string) (*types.Subscription, error)
}

func (m *mockSubscriptions) GetByUserID(ctx context.Context, userID string) (*types.Subscription, error) {
	if m.getFn != nil {
		return m.getFn(ctx, userID)
	}
	return nil, types.NewAppError(types.ErrCodeNotFoundSubscription, "subscription not found", nil)
}

func testCatalog() *types.Catalog {
	return &types.Catalog{Products: []types.Product{
		{
			ID:   "prod_pro",
			Name: "Pro",
			Prices: []types.Price{
				{ID: "price_month", ProductID: "prod_pro", UnitAmount: 1500, Currency: "usd", Type: types.PriceTypeRecurring, Interval: types.IntervalMonth},
				{ID: "price_year", ProductID: "prod_pro", UnitAmount: 15000, Currency: "usd", Type: types.PriceTypeRecurring, Interval: types.IntervalYear},
			},
		},
		{
			ID:   "prod_life",
			Name: "Lifetime",
			Prices: []types.Price{
				{ID: "price_life", ProductID: "prod_life", UnitAmount: 29900, Currency: "usd", Type: types.PriceTypeOneTime, Interval: types.IntervalLifetime},
			},
		},
	}}
}
