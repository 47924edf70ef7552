package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"billingsync/internal/core"
	"billingsync/internal/types"
)

// CustomerMapping resolves the provider customer of a user.
type CustomerMapping interface {
	GetStripeCustomerID(ctx context.Context, userID string) (string, error)
}

// PortalProvider opens billing portal sessions.
type PortalProvider interface {
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error)
}

// PortalRequest is the optional body of POST /api/portal.
type PortalRequest struct {
	ReturnPath string `json:"return_path" validate:"omitempty,return_path"`
}

// PortalResponse carries the hosted portal URL.
type PortalResponse struct {
	URL string `json:"url"`
}

// PortalHandler serves the "Manage" action.
type PortalHandler struct {
	customers CustomerMapping
	provider  PortalProvider
	validator *core.Validator
	siteURL   string
	logger    *slog.Logger
}

// NewPortalHandler creates a PortalHandler.
func NewPortalHandler(
	customers CustomerMapping,
	provider PortalProvider,
	validator *core.Validator,
	siteURL string,
	logger *slog.Logger,
) *PortalHandler {
	if logger == nil {
		logger = slog.Default()
	}
	if validator == nil {
		validator = core.NewValidator(logger)
	}
	return &PortalHandler{
		customers: customers,
		provider:  provider,
		validator: validator,
		siteURL:   strings.TrimRight(siteURL, "/"),
		logger:    logger,
	}
}

// RegisterRoutes mounts the portal endpoint behind RequireUser.
func (h *PortalHandler) RegisterRoutes(r chi.Router) {
	r.With(core.RequireUser).Post("/api/portal", h.Create)
}

// Create implements POST /api/portal. An empty body is allowed.
func (h *PortalHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := types.GetUser(ctx)

	var req PortalRequest
	if err := core.DecodeJSON(w, r, &req); err != nil && !errors.Is(err, io.EOF) {
		core.Error(w, r, err)
		return
	}
	if err := h.validator.ValidateStruct(&req); err != nil {
		core.Error(w, r, err)
		return
	}
	if req.ReturnPath == "" {
		req.ReturnPath = accountPath
	}

	customerID, err := h.customers.GetStripeCustomerID(ctx, user.ID)
	if err != nil {
		if !types.IsCode(err, types.ErrCodeNotFoundCustomer) {
			h.logger.ErrorContext(ctx, "failed to look up customer", "user_id", user.ID, "error", err)
		}
		core.Error(w, r, err)
		return
	}

	portalURL, err := h.provider.CreatePortalSession(ctx, customerID, h.siteURL+req.ReturnPath)
	if err != nil {
		h.logger.ErrorContext(ctx, "failed to create portal session",
			"user_id", user.ID,
			"customer_id", customerID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, PortalResponse{URL: portalURL})
}
