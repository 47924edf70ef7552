package handlers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"billingsync/internal/types"
)

func newSubscriptionRouter(subs SubscriptionReader) chi.Router {
	r := chi.NewRouter()
	NewSubscriptionHandler(subs, discardLogger()).RegisterRoutes(r)
	return r
}

func TestSubscriptionHandler_Get(t *testing.T) {
	start := types.TimeFromUnixSeconds(1700000000)
	end := types.TimeFromUnixSeconds(1702592000)
	subs := &mockSubscriptions{getFn: func(ctx context.Context, userID string) (*types.Subscription, error) {
		assert.Equal(t, testUser.ID, userID)
		return &types.Subscription{
			StripeSubscriptionID: "sub_1",
			StripeCustomerID:     "cus_1",
			PriceID:              "price_1",
			Status:               types.SubStatusActive,
			CurrentPeriodStart:   &start,
			CurrentPeriodEnd:     &end,
			PlanName:             "Pro",
			UpdatedAt:            time.Now(),
		}, nil
	}}

	rec := httptest.NewRecorder()
	newSubscriptionRouter(subs).ServeHTTP(rec, asUser(newRequest(t, http.MethodGet, "/api/subscription", ""), testUser))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"stripe_subscription_id": "sub_1",
		"stripe_customer_id": "cus_1",
		"price_id": "price_1",
		"status": "active",
		"current_period_start": "2023-11-14T22:13:20.000Z",
		"current_period_end": "2023-12-14T22:13:20.000Z",
		"plan_name": "Pro"
	}`, rec.Body.String())
}

func TestSubscriptionHandler_Get_Errors(t *testing.T) {
	tests := []struct {
		name       string
		user       *types.User
		err        error
		wantStatus int
	}{
		{"anonymous", nil, nil, http.StatusUnauthorized},
		{"no subscription", &testUser, nil, http.StatusNotFound},
		{"database failure", &testUser, types.NewAppError(types.ErrCodeInternalDB, "failed to load subscription", errors.New("timeout")), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subs := &mockSubscriptions{}
			if tt.err != nil {
				subs.getFn = func(ctx context.Context, userID string) (*types.Subscription, error) { return nil, tt.err }
			}

			req := newRequest(t, http.MethodGet, "/api/subscription", "")
			if tt.user != nil {
				req = asUser(req, *tt.user)
			}
			rec := httptest.NewRecorder()
			newSubscriptionRouter(subs).ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}
}
