package cache

import (
	"context"

	"github.com/redis/go-redis/v9"

	"billingsync/internal/types"
)

// NewRedisClient parses a redis:// or rediss:// URL. It returns nil, nil
// when url is unset so the cache stays disabled.
func NewRedisClient(url types.SecretString) (*redis.Client, error) {
	if !url.IsSet() {
		return nil, nil
	}
	opts, err := redis.ParseURL(url.Unmask())
	if err != nil {
		return nil, err
	}
	return redis.NewClient(opts), nil
}

// Pinger is implemented by *redis.Client.
type Pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

// RedisProbe reports Redis reachability on /health.
type RedisProbe struct {
	Client Pinger
}

func (p RedisProbe) Name() string { return "redis" }

func (p RedisProbe) Check(ctx context.Context) error {
	return p.Client.Ping(ctx).Err()
}
