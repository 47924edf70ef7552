package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"billingsync/internal/core"
	"billingsync/internal/types"
)

// SubscriptionReader loads the subscription a user is billed under.
type SubscriptionReader interface {
	GetByUserID(ctx context.Context, userID string) (*types.Subscription, error)
}

// SubscriptionHandler exposes the caller's mirrored subscription.
type SubscriptionHandler struct {
	subs   SubscriptionReader
	logger *slog.Logger
}

// NewSubscriptionHandler creates a SubscriptionHandler.
func NewSubscriptionHandler(subs SubscriptionReader, logger *slog.Logger) *SubscriptionHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SubscriptionHandler{subs: subs, logger: logger}
}

// RegisterRoutes mounts GET /api/subscription behind RequireUser.
func (h *SubscriptionHandler) RegisterRoutes(r chi.Router) {
	r.With(core.RequireUser).Get("/api/subscription", h.Get)
}

// Get implements GET /api/subscription.
func (h *SubscriptionHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user, _ := types.GetUser(ctx)

	sub, err := h.subs.GetByUserID(ctx, user.ID)
	if err != nil {
		if !types.IsCode(err, types.ErrCodeNotFoundSubscription) {
			h.logger.ErrorContext(ctx, "failed to load subscription", "user_id", user.ID, "error", err)
		}
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, sub)
}
