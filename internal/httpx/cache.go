package httpx

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache is the slice of the Redis client the handlers use for cart
// snapshots and idempotency markers. *redis.Client satisfies it.
type Cache interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}
