package external

import (
	"context"

	"billingsync/internal/types"
)

// BillingProvider is the payment-provider surface used by the handlers and
// the reconciler. StripeClient is the production implementation.
type BillingProvider interface {
	// GetCustomer fetches a customer record, used to resolve contact email
	// when an event carries only the customer id.
	GetCustomer(ctx context.Context, customerID string) (*Customer, error)

	// EnsureCustomer retrieves or creates the provider customer for a user.
	EnsureCustomer(ctx context.Context, userID, email string) (string, error)

	// CreateCheckoutSession opens a hosted checkout for a single price.
	CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error)

	// CreatePortalSession returns a self-serve billing portal URL.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)

	// ListCatalog returns active products with their active prices.
	ListCatalog(ctx context.Context) (*types.Catalog, error)
}

var _ BillingProvider = (*StripeClient)(nil)
