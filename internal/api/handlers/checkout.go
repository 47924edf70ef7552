package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"billingsync/internal/core"
	"billingsync/internal/external"
	"billingsync/internal/types"
)

const (
	signInRedirect    = "/signin/signup"
	defaultReturnPath = "/pricing"
	accountPath       = "/account"

	checkoutFailedMessage = "We could not start checkout. Please try again, or contact support if the problem persists."
)

// CatalogReader supplies the active catalog (the cache or the provider).
type CatalogReader interface {
	ListCatalog(ctx context.Context) (*types.Catalog, error)
}

// CheckoutProvider is the subset of the billing provider checkout needs.
type CheckoutProvider interface {
	EnsureCustomer(ctx context.Context, userID, email string) (string, error)
	CreateCheckoutSession(ctx context.Context, params external.CheckoutParams) (*external.CheckoutSession, error)
}

// CheckoutRequest is the body of POST /api/checkout.
type CheckoutRequest struct {
	PriceID    string `json:"price_id" validate:"required,stripe_price"`
	ReturnPath string `json:"return_path" validate:"omitempty,return_path"`
}

// ErrorRedirectResponse tells the browser where to go instead.
type ErrorRedirectResponse struct {
	ErrorRedirect string `json:"error_redirect"`
}

// CheckoutHandler starts hosted checkout sessions.
type CheckoutHandler struct {
	catalog   CatalogReader
	provider  CheckoutProvider
	validator *core.Validator
	siteURL   string
	logger    *slog.Logger
}

// NewCheckoutHandler creates a CheckoutHandler. siteURL is the public origin
// without a trailing slash.
func NewCheckoutHandler(
	catalog CatalogReader,
	provider CheckoutProvider,
	validator *core.Validator,
	siteURL string,
	logger *slog.Logger,
) *CheckoutHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = core.NewValidator(logger)
	}
	return &CheckoutHandler{
		catalog:   catalog,
		provider:  provider,
		validator: validator,
		siteURL:   strings.TrimRight(siteURL, "/"),
		logger:    logger,
	}
}

// RegisterRoutes mounts the checkout endpoint.
func (h *CheckoutHandler) RegisterRoutes(r chi.Router) {
	r.Post("/api/checkout", h.Create)
}

// Create implements POST /api/checkout.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	user, ok := types.GetUser(ctx)
	if !ok {
		core.JSON(w, r, http.StatusUnauthorized, ErrorRedirectResponse{ErrorRedirect: signInRedirect})
		return
	}

	var req CheckoutRequest
	if err := core.DecodeJSON(w, r, &req); err != nil {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.ReturnPath == "" {
		req.ReturnPath = defaultReturnPath
	}

	catalog, err := h.catalog.ListCatalog(ctx)
	if err != nil {
		h.fail(w, r, req.ReturnPath, user, err)
		return
	}
	price, ok := catalog.FindPrice(req.PriceID)
	if !ok {
		core.Error(w, r, types.NewAppErrorWithDetails(types.ErrCodeNotFoundPrice,
			"price is not available", nil, map[string]any{"price_id": req.PriceID}))
		return
	}

	customerID, err := h.provider.EnsureCustomer(ctx, user.ID, user.Email)
	if err != nil {
		h.fail(w, r, req.ReturnPath, user, err)
		return
	}

	session, err := h.provider.CreateCheckoutSession(ctx, external.CheckoutParams{
		CustomerID: customerID,
		UserID:     user.ID,
		Price:      price,
		URLs: types.RedirectURLs{
			Success: h.siteURL + accountPath,
			Cancel:  h.siteURL + req.ReturnPath,
		},
	})
	if err != nil {
		h.fail(w, r, req.ReturnPath, user, err)
		return
	}

	core.JSON(w, r, http.StatusOK, session)
}

func (h *CheckoutHandler) fail(w http.ResponseWriter, r *http.Request, returnPath string, user types.User, err error) {
	h.logger.ErrorContext(r.Context(), "checkout failed",
		"user_id", user.ID,
		"error", err,
	)
	core.JSON(w, r, http.StatusBadGateway, ErrorRedirectResponse{
		ErrorRedirect: errorRedirect(returnPath, "checkout_failed", checkoutFailedMessage),
	})
}

// errorRedirect appends error and error_description to path, keeping any
// query it already has.
func errorRedirect(path, code, description string) string {
	u, err := url.Parse(path)
	if err != nil {
		u = &url.URL{Path: defaultReturnPath}
	}
	q := u.Query()
	q.Set("error", code)
	q.Set("error_description", description)
	u.RawQuery = q.Encode()
	return u.String()
}
