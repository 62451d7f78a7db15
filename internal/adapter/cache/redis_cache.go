package cache

import (
	"context"
	"errors"
	"time"

	"github.com/aq2208/gorder-scalapay/internal/usecase"
	"github.com/redis/go-redis/v9"
)

const statusPrefix = "order:status:"

// RedisCache keeps the last known order state for status lookups.
type RedisCache struct {
	rdb redis.Cmdable
	ttl time.Duration
}

func NewRedisCache(rdb redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{rdb: rdb, ttl: ttl}
}

// SetStatus: a zero ttl keeps the key forever.
func (r *RedisCache) SetStatus(ctx context.Context, orderID string, status string) error {
	return r.rdb.Set(ctx, statusPrefix+orderID, status, r.ttl).Err()
}

func (r *RedisCache) GetStatus(ctx context.Context, orderID string) (string, bool, error) {
	st, err := r.rdb.Get(ctx, statusPrefix+orderID).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return st, true, nil
}

func (r *RedisCache) DelStatus(ctx context.Context, orderID string) error {
	return r.rdb.Del(ctx, statusPrefix+orderID).Err()
}

var _ usecase.OrderCache = (*RedisCache)(nil)
