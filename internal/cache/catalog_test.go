package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"billingsync/internal/types"
	"billingsync/internal/webhook"
)

// fakeRedis is an in-memory Store that ignores expiry but records the TTL.
type fakeRedis struct {
	values  map[string]string
	lastTTL time.Duration
	getErr  error
	setErr  error
	delErr  error
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{values: map[string]string{}}
}

func (f *fakeRedis) Get(_ context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.values[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(_ context.Context, key string, value any, ttl time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.values[key] = string(v)
	case string:
		f.values[key] = v
	}
	f.lastTTL = ttl
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Del(_ context.Context, keys ...string) *redis.IntCmd {
	if f.delErr != nil {
		return redis.NewIntResult(0, f.delErr)
	}
	var n int64
	for _, k := range keys {
		if _, ok := f.values[k]; ok {
			delete(f.values, k)
			n++
		}
	}
	return redis.NewIntResult(n, nil)
}

type mockSource struct {
	mock.Mock
}

func (m *mockSource) ListCatalog(ctx context.Context) (*types.Catalog, error) {
	args := m.Called(ctx)
	c, _ := args.Get(0).(*types.Catalog)
	return c, args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testCatalog() *types.Catalog {
	return &types.Catalog{
		Products: []types.Product{{
			ID:   "prod_pro",
			Name: "Pro",
			Prices: []types.Price{{
				ID: "price_m", ProductID: "prod_pro", UnitAmount: 1000, Currency: "usd",
				Type: types.PriceTypeRecurring, Interval: types.IntervalMonth,
			}},
		}},
		FetchedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestCatalogCache_MissThenHit(t *testing.T) {
	store := newFakeRedis()
	source := new(mockSource)
	source.On("ListCatalog", mock.Anything).Return(testCatalog(), nil).Once()

	c := NewCatalogCache(store, source, 5*time.Minute, discardLogger())

	first, err := c.ListCatalog(context.Background())
	require.NoError(t, err)
	second, err := c.ListCatalog(context.Background())
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 5*time.Minute, store.lastTTL)
	source.AssertExpectations(t)
}

func TestCatalogCache_Disabled(t *testing.T) {
	source := new(mockSource)
	source.On("ListCatalog", mock.Anything).Return(testCatalog(), nil).Twice()

	c := NewCatalogCache(nil, source, time.Minute, discardLogger())
	_, _ = c.ListCatalog(context.Background())
	_, _ = c.ListCatalog(context.Background())

	source.AssertExpectations(t)
	assert.NoError(t, c.Invalidate(context.Background()))
}

func TestCatalogCache_RedisErrorsFallBackToSource(t *testing.T) {
	store := newFakeRedis()
	store.getErr = errors.New("connection refused")
	store.setErr = errors.New("connection refused")
	source := new(mockSource)
	source.On("ListCatalog", mock.Anything).Return(testCatalog(), nil)

	c := NewCatalogCache(store, source, time.Minute, discardLogger())
	catalog, err := c.ListCatalog(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "prod_pro", catalog.Products[0].ID)
}

func TestCatalogCache_CorruptEntryIgnored(t *testing.T) {
	store := newFakeRedis()
	store.values[CatalogKey] = "{not json"
	source := new(mockSource)
	source.On("ListCatalog", mock.Anything).Return(testCatalog(), nil).Once()

	c := NewCatalogCache(store, source, time.Minute, discardLogger())
	_, err := c.ListCatalog(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "{not json", store.values[CatalogKey])
}

func TestCatalogCache_SourceErrorNotCached(t *testing.T) {
	store := newFakeRedis()
	source := new(mockSource)
	upstream := types.NewAppError(types.ErrCodeUpstreamUnavailable, "stripe down", nil)
	source.On("ListCatalog", mock.Anything).Return(nil, upstream)

	c := NewCatalogCache(store, source, time.Minute, discardLogger())
	_, err := c.ListCatalog(context.Background())
	assert.ErrorIs(t, err, upstream)
	assert.Empty(t, store.values)
}

func TestCatalogCache_InvalidatedByCatalogEvents(t *testing.T) {
	store := newFakeRedis()
	store.values[CatalogKey] = "{}"
	c := NewCatalogCache(store, new(mockSource), time.Minute, discardLogger())

	router := webhook.NewRouter(nil, discardLogger())
	c.Register(router)

	require.NoError(t, router.Route(context.Background(), &webhook.Event{ID: "evt_p", Type: "price.updated"}))
	assert.NotContains(t, store.values, CatalogKey)

	store.delErr = errors.New("timeout")
	assert.NoError(t, router.Route(context.Background(), &webhook.Event{ID: "evt_q", Type: "product.deleted"}))
}

func TestNewRedisClient(t *testing.T) {
	client, err := NewRedisClient("")
	require.NoError(t, err)
	assert.Nil(t, client)

	client, err = NewRedisClient("redis://:secret@localhost:6379/2")
	require.NoError(t, err)
	require.NotNil(t, client)
	assert.Equal(t, 2, client.Options().DB)
	assert.NoError(t, client.Close())

	_, err = NewRedisClient("http://nope")
	assert.Error(t, err)
}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) *redis.StatusCmd { return redis.NewStatusResult("PONG", p.err) }

func TestRedisProbe(t *testing.T) {
	assert.Equal(t, "redis", RedisProbe{}.Name())
	assert.NoError(t, RedisProbe{Client: pinger{}}.Check(context.Background()))
	assert.Error(t, RedisProbe{Client: pinger{err: errors.New("down")}}.Check(context.Background()))
}
