// Package cache keeps a short-lived copy of the provider catalog in Redis so
// pricing page renders do not list prices from Stripe on every request.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"billingsync/internal/types"
	"billingsync/internal/webhook"
)

// CatalogKey is the Redis key holding the serialized catalog.
const CatalogKey = "billingsync:catalog:v1"

// Store is the subset of redis.Cmdable the cache uses.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// CatalogSource loads the catalog from the provider.
type CatalogSource interface {
	ListCatalog(ctx context.Context) (*types.Catalog, error)
}

// CatalogCache is a read-through cache in front of a CatalogSource. With a
// nil Store every call goes to the source. Redis failures are logged and
// never fail a read.
type CatalogCache struct {
	store  Store
	source CatalogSource
	ttl    time.Duration
	logger *slog.Logger
}

// NewCatalogCache creates a CatalogCache.
func NewCatalogCache(store Store, source CatalogSource, ttl time.Duration, logger *slog.Logger) *CatalogCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &CatalogCache{store: store, source: source, ttl: ttl, logger: logger}
}

// ListCatalog returns the cached catalog or loads and stores a fresh one.
func (c *CatalogCache) ListCatalog(ctx context.Context) (*types.Catalog, error) {
	if c.store == nil || c.ttl <= 0 {
		return c.source.ListCatalog(ctx)
	}

	if catalog, ok := c.get(ctx); ok {
		return catalog, nil
	}

	catalog, err := c.source.ListCatalog(ctx)
	if err != nil {
		return nil, err
	}
	c.set(ctx, catalog)
	return catalog, nil
}

// Invalidate drops the cached catalog.
func (c *CatalogCache) Invalidate(ctx context.Context) error {
	if c.store == nil {
		return nil
	}
	return c.store.Del(ctx, CatalogKey).Err()
}

// Register drops the cached catalog whenever a product or price changes.
func (c *CatalogCache) Register(router *webhook.Router) {
	for _, t := range webhook.CatalogEventTypes {
		router.Handle(t, c.handleCatalogEvent)
	}
}

func (c *CatalogCache) handleCatalogEvent(ctx context.Context, evt *webhook.Event) error {
	if err := c.Invalidate(ctx); err != nil {
		// The entry expires on its own; a failed delete must not trigger redelivery.
		c.logger.WarnContext(ctx, "catalog cache invalidation failed",
			"event_id", evt.ID,
			"event_type", evt.Type,
			"error", err,
		)
		return nil
	}
	c.logger.InfoContext(ctx, "catalog cache invalidated",
		"event_id", evt.ID,
		"event_type", evt.Type,
	)
	return nil
}

func (c *CatalogCache) get(ctx context.Context) (*types.Catalog, bool) {
	raw, err := c.store.Get(ctx, CatalogKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.WarnContext(ctx, "catalog cache read failed", "error", err)
		}
		return nil, false
	}

	var catalog types.Catalog
	if err := json.Unmarshal(raw, &catalog); err != nil {
		c.logger.WarnContext(ctx, "discarding undecodable cached catalog", "error", err)
		return nil, false
	}
	return &catalog, true
}

func (c *CatalogCache) set(ctx context.Context, catalog *types.Catalog) {
	raw, err := json.Marshal(catalog)
	if err != nil {
		c.logger.WarnContext(ctx, "catalog encode failed", "error", err)
		return
	}
	if err := c.store.Set(ctx, CatalogKey, raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "catalog cache write failed", "error", err)
	}
}
