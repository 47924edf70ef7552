package handlers

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"billingsync/internal/core"
	"billingsync/internal/pricing"
	"billingsync/internal/types"
)

const pricingPagePath = "/pricing"

// PageRenderer writes the HTML pricing page.
type PageRenderer interface {
	Render(w io.Writer, v pricing.View) error
}

// PricingHandler serves the pricing page and its JSON model.
type PricingHandler struct {
	catalog        CatalogReader
	subs           SubscriptionReader
	renderer       PageRenderer
	publishableKey string
	logger         *slog.Logger
}

// NewPricingHandler creates a PricingHandler. subs may be nil, in which case
// every viewer is offered "Subscribe".
func NewPricingHandler(
	catalog CatalogReader,
	subs SubscriptionReader,
	renderer PageRenderer,
	publishableKey string,
	logger *slog.Logger,
) *PricingHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PricingHandler{
		catalog:        catalog,
		subs:           subs,
		renderer:       renderer,
		publishableKey: publishableKey,
		logger:         logger,
	}
}

// RegisterRoutes mounts the page and the JSON endpoint.
func (h *PricingHandler) RegisterRoutes(r chi.Router) {
	r.Get(pricingPagePath, h.Page)
	r.Get("/api/pricing", h.Get)
}

// Get implements GET /api/pricing.
func (h *PricingHandler) Get(w http.ResponseWriter, r *http.Request) {
	view, err := h.buildView(r)
	if err != nil {
		core.Error(w, r, err)
		return
	}
	core.JSON(w, r, http.StatusOK, view)
}

// Page implements GET /pricing.
func (h *PricingHandler) Page(w http.ResponseWriter, r *http.Request) {
	view, err := h.buildView(r)
	if err != nil {
		http.Error(w, "Pricing is temporarily unavailable.", types.ErrCodeUpstreamUnavailable.HTTPStatus())
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	if err := h.renderer.Render(w, view); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render pricing page", "error", err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// buildView loads the catalog and, for signed-in viewers, their subscription
// concurrently. A failed subscription read degrades to "Subscribe".
func (h *PricingHandler) buildView(r *http.Request) (pricing.View, error) {
	ctx := r.Context()

	var userPtr *types.User
	if user, ok := types.GetUser(ctx); ok {
		userPtr = &user
	}

	var (
		catalog *types.Catalog
		sub     *types.Subscription
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		catalog, err = h.catalog.ListCatalog(gctx)
		return err
	})
	if userPtr != nil && h.subs != nil {
		g.Go(func() error {
			sub = h.loadSubscription(gctx, userPtr.ID)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		h.logger.ErrorContext(ctx, "failed to load catalog", "error", err)
		return pricing.View{}, err
	}

	return pricing.BuildView(catalog, r.URL.Query().Get("interval"), userPtr, sub, pricing.Options{
		PublishableKey: h.publishableKey,
		BasePath:       pricingPagePath,
	}), nil
}

func (h *PricingHandler) loadSubscription(ctx context.Context, userID string) *types.Subscription {
	sub, err := h.subs.GetByUserID(ctx, userID)
	if err != nil {
		if !types.IsCode(err, types.ErrCodeNotFoundSubscription) {
			h.logger.WarnContext(ctx, "failed to load subscription for pricing page",
				"user_id", userID,
				"error", err,
			)
		}
		return nil
	}
	return sub
}
