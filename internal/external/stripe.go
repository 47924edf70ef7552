package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"

	"billingsync/internal/types"
)

const (
	stripeAPIBase = "https://api.stripe.com"
	userAgent     = "billingsync/1.0"

	// catalogPageSize is the maximum page size the prices list accepts.
	catalogPageSize = 100
)

// CustomerStore persists the user to provider-customer mapping.
// GetStripeCustomerID returns a not_found_customer AppError when no mapping exists.
type CustomerStore interface {
	GetStripeCustomerID(ctx context.Context, userID string) (string, error)
	Upsert(ctx context.Context, userID, stripeCustomerID string) error
}

// StripeClientConfig holds the configuration for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey  types.SecretString
	BaseURL    string
	MaxRetries int
	Logger     *slog.Logger
}

// StripeClient calls the Stripe REST API directly through BaseClient so every
// request shares the breaker, tracing and error mapping.
type StripeClient struct {
	base      *BaseClient
	secretKey types.SecretString
	baseURL   string
	customers CustomerStore
	logger    *slog.Logger
	now       func() time.Time
}

// NewStripeClient creates a StripeClient. httpClient should carry no Timeout;
// calls are bounded by the caller's context.
func NewStripeClient(httpClient *http.Client, customers CustomerStore, cfg StripeClientConfig) *StripeClient {
	policy := DefaultRetryPolicy()
	policy.MaxRetries = cfg.MaxRetries
	base := NewBaseClient(httpClient, "stripe", policy, userAgent)
	return NewStripeClientWithBase(base, customers, cfg)
}

// NewStripeClientWithBase creates a StripeClient around a pre-configured BaseClient.
func NewStripeClientWithBase(base *BaseClient, customers CustomerStore, cfg StripeClientConfig) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		customers: customers,
		logger:    logger,
		now:       time.Now,
	}
}

// Customer is the subset of a Stripe customer the service reads.
type Customer struct {
	ID    string
	Email string
}

// CheckoutParams describes a hosted checkout for one price.
type CheckoutParams struct {
	CustomerID string
	UserID     string
	Price      types.Price
	URLs       types.RedirectURLs
}

// CheckoutSession is the provider session the browser is redirected to.
type CheckoutSession struct {
	ID  string `json:"session_id"`
	URL string `json:"url"`
}

// GetCustomer fetches a customer by id.
func (s *StripeClient) GetCustomer(ctx context.Context, customerID string) (*Customer, error) {
	resp, err := s.doGet(ctx, "/v1/customers/"+url.PathEscape(customerID), nil)
	if err != nil {
		return nil, s.wrapStripeError("GetCustomer", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "GetCustomer")
	}

	var c stripeCustomer
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "GetCustomer: failed to decode response", err)
	}
	return &Customer{ID: c.ID, Email: c.Email}, nil
}

// EnsureCustomer returns the Stripe customer for userID, creating one if
// needed. Lookup order: stored mapping, then a search on metadata['user_id'],
// then creation with an idempotency key derived from the user id. The mapping
// is stored whenever it was not already present.
func (s *StripeClient) EnsureCustomer(ctx context.Context, userID, email string) (string, error) {
	customerID, err := s.customers.GetStripeCustomerID(ctx, userID)
	if err == nil && customerID != "" {
		return customerID, nil
	}
	if err != nil && !types.IsCode(err, types.ErrCodeNotFoundCustomer) {
		return "", err
	}

	customerID, err = s.searchCustomerByUser(ctx, userID)
	if err != nil {
		return "", err
	}

	if customerID == "" {
		customerID, err = s.createCustomer(ctx, userID, email)
		if err != nil {
			return "", err
		}
		s.logger.InfoContext(ctx, "created stripe customer",
			slog.String("user_id", userID),
			slog.String("customer_id", customerID),
		)
	}

	if err := s.customers.Upsert(ctx, userID, customerID); err != nil {
		return "", err
	}
	return customerID, nil
}

func (s *StripeClient) searchCustomerByUser(ctx context.Context, userID string) (string, error) {
	params := url.Values{}
	params.Set("query", fmt.Sprintf("metadata['user_id']:'%s'", userID))
	params.Set("limit", "1")

	resp, err := s.doGet(ctx, "/v1/customers/search", params)
	if err != nil {
		return "", s.wrapStripeError("EnsureCustomer.search", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "EnsureCustomer.search")
	}

	var result stripeCustomerSearch
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStripe, "EnsureCustomer: failed to decode search response", err)
	}
	if len(result.Data) == 0 {
		return "", nil
	}
	return result.Data[0].ID, nil
}

func (s *StripeClient) createCustomer(ctx context.Context, userID, email string) (string, error) {
	params := url.Values{}
	params.Set("metadata[user_id]", userID)
	if email != "" {
		params.Set("email", email)
	}

	resp, err := s.doPost(ctx, "/v1/customers", params, "customer-create-"+userID)
	if err != nil {
		return "", s.wrapStripeError("EnsureCustomer.create", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "EnsureCustomer.create")
	}

	var c stripeCustomer
	if err := json.NewDecoder(resp.Body).Decode(&c); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStripe, "EnsureCustomer: failed to decode create response", err)
	}
	return c.ID, nil
}

// CreateCheckoutSession opens a hosted checkout. Recurring prices use
// subscription mode and one-time prices use payment mode.
func (s *StripeClient) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*CheckoutSession, error) {
	mode := "subscription"
	if p.Price.Type == types.PriceTypeOneTime {
		mode = "payment"
	}

	params := url.Values{}
	params.Set("mode", mode)
	params.Set("customer", p.CustomerID)
	params.Set("client_reference_id", p.UserID)
	params.Set("line_items[0][price]", p.Price.ID)
	params.Set("line_items[0][quantity]", "1")
	params.Set("success_url", p.URLs.Success)
	params.Set("cancel_url", p.URLs.Cancel)
	params.Set("metadata[user_id]", p.UserID)
	if mode == "subscription" {
		params.Set("subscription_data[metadata][user_id]", p.UserID)
	}

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params, "")
	if err != nil {
		return nil, s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "CreateCheckoutSession: failed to decode response", err)
	}

	s.logger.InfoContext(ctx, "created checkout session",
		slog.String("session_id", session.ID),
		slog.String("customer_id", p.CustomerID),
		slog.String("price_id", p.Price.ID),
		slog.String("mode", mode),
	)
	return &CheckoutSession{ID: session.ID, URL: session.URL}, nil
}

// CreatePortalSession returns a billing portal URL for customerID.
func (s *StripeClient) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("return_url", returnURL)

	resp, err := s.doPost(ctx, "/v1/billing_portal/sessions", params, "")
	if err != nil {
		return "", s.wrapStripeError("CreatePortalSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(resp, "CreatePortalSession")
	}

	var session stripeSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", types.NewAppError(types.ErrCodeUpstreamStripe, "CreatePortalSession: failed to decode response", err)
	}
	return session.URL, nil
}

// ListCatalog reads every active price with its product expanded and groups
// them by active product in first-seen order. One-time prices become
// lifetime prices; recurring intervals other than month and year are skipped.
func (s *StripeClient) ListCatalog(ctx context.Context) (*types.Catalog, error) {
	catalog := &types.Catalog{}
	index := map[string]int{}

	startingAfter := ""
	for {
		params := url.Values{}
		params.Set("active", "true")
		params.Add("expand[]", "data.product")
		params.Set("limit", fmt.Sprint(catalogPageSize))
		if startingAfter != "" {
			params.Set("starting_after", startingAfter)
		}

		page, err := s.listPrices(ctx, params)
		if err != nil {
			return nil, err
		}

		for _, sp := range page.Data {
			if sp.Product == nil || !sp.Product.Active {
				continue
			}
			price, ok := mapStripePrice(sp)
			if !ok {
				continue
			}
			i, seen := index[sp.Product.ID]
			if !seen {
				i = len(catalog.Products)
				index[sp.Product.ID] = i
				catalog.Products = append(catalog.Products, types.Product{
					ID:          sp.Product.ID,
					Name:        sp.Product.Name,
					Description: sp.Product.Description,
				})
			}
			catalog.Products[i].Prices = append(catalog.Products[i].Prices, price)
		}

		if !page.HasMore || len(page.Data) == 0 {
			break
		}
		startingAfter = page.Data[len(page.Data)-1].ID
	}

	catalog.FetchedAt = s.now().UTC()
	return catalog, nil
}

func (s *StripeClient) listPrices(ctx context.Context, params url.Values) (*stripePriceList, error) {
	resp, err := s.doGet(ctx, "/v1/prices", params)
	if err != nil {
		return nil, s.wrapStripeError("ListCatalog", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, s.handleErrorResponse(resp, "ListCatalog")
	}

	var page stripePriceList
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, types.NewAppError(types.ErrCodeUpstreamStripe, "ListCatalog: failed to decode response", err)
	}
	return &page, nil
}

func mapStripePrice(sp stripePrice) (types.Price, bool) {
	price := types.Price{
		ID:         sp.ID,
		ProductID:  sp.Product.ID,
		UnitAmount: sp.UnitAmount,
		Currency:   sp.Currency,
		Nickname:   sp.Nickname,
	}
	switch sp.Type {
	case string(types.PriceTypeOneTime):
		price.Type = types.PriceTypeOneTime
		price.Interval = types.IntervalLifetime
	case string(types.PriceTypeRecurring):
		if sp.Recurring == nil {
			return types.Price{}, false
		}
		interval, ok := types.ParseBillingInterval(sp.Recurring.Interval)
		if !ok || interval == types.IntervalLifetime {
			return types.Price{}, false
		}
		price.Type = types.PriceTypeRecurring
		price.Interval = interval
	default:
		return types.Price{}, false
	}
	return price, true
}

// ---------------------------------------------------------------------------
// HTTP helpers
// ---------------------------------------------------------------------------

func (s *StripeClient) doGet(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values, idempotencyKey string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey.Unmask())
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// handleErrorResponse maps a non-200 Stripe response to an AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with unreadable body", operation, resp.StatusCode), readErr)
	}

	var stripeErr stripeErrorResponse
	if err := json.Unmarshal(body, &stripeErr); err != nil {
		return types.NewAppError(types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode), err)
	}

	return mapStripeError(operation, resp.StatusCode, stripeErr.Error)
}

func mapStripeError(operation string, statusCode int, e stripeErrorBody) error {
	details := map[string]any{
		"stripe_status": statusCode,
	}
	if e.Code != "" {
		details["stripe_code"] = e.Code
	}
	if e.Param != "" {
		details["param"] = e.Param
	}

	code := types.ErrCodeUpstreamStripe
	switch {
	case statusCode == http.StatusNotFound:
		code = types.ErrCodeNotFoundCustomer
	case e.Code == "resource_missing" && strings.Contains(e.Param, "price"):
		code = types.ErrCodeNotFoundPrice
	}

	message := fmt.Sprintf("%s: Stripe error (%d)", operation, statusCode)
	if e.Message != "" {
		message += ": " + e.Message
	}
	return types.NewAppErrorWithDetails(code, message, nil, details)
}

// wrapStripeError passes BaseClient AppErrors through and wraps anything else.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed", operation), err)
}

// ---------------------------------------------------------------------------
// Wire types
// ---------------------------------------------------------------------------

type stripeCustomer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata"`
}

type stripeCustomerSearch struct {
	Data    []stripeCustomer `json:"data"`
	HasMore bool             `json:"has_more"`
}

type stripeSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

type stripeProduct struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Active      bool   `json:"active"`
}

type stripeRecurring struct {
	Interval string `json:"interval"`
}

type stripePrice struct {
	ID         string           `json:"id"`
	Type       string           `json:"type"`
	UnitAmount int64            `json:"unit_amount"`
	Currency   string           `json:"currency"`
	Nickname   string           `json:"nickname"`
	Recurring  *stripeRecurring `json:"recurring"`
	Product    *stripeProduct   `json:"product"`
}

type stripePriceList struct {
	Data    []stripePrice `json:"data"`
	HasMore bool          `json:"has_more"`
}
