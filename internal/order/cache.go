package order

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"ordersaga/internal/logger"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache holds committed orders by id. Committed orders are immutable, so
// entries never need invalidation; the TTL only bounds memory.
type Cache interface {
	Get(ctx context.Context, orderID int64) (*Order, bool)
	Set(ctx context.Context, o *Order)
}

type RedisCache struct {
	client redis.Cmdable
	ttl    time.Duration
}

func NewRedisCache(client redis.Cmdable, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

func cacheKey(orderID int64) string {
	return "order:" + strconv.FormatInt(orderID, 10)
}

// Get treats every Redis failure as a miss.
func (c *RedisCache) Get(ctx context.Context, orderID int64) (*Order, bool) {
	raw, err := c.client.Get(ctx, cacheKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false
	}
	if err != nil {
		logger.FromCtx(ctx).Warn("order cache read failed",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return nil, false
	}

	var o Order
	if err := json.Unmarshal(raw, &o); err != nil {
		logger.FromCtx(ctx).Warn("order cache entry corrupt",
			zap.Int64("order_id", orderID),
			zap.Error(err),
		)
		return nil, false
	}
	return &o, true
}

func (c *RedisCache) Set(ctx context.Context, o *Order) {
	raw, err := json.Marshal(o)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, cacheKey(o.ID), raw, c.ttl).Err(); err != nil {
		logger.FromCtx(ctx).Warn("order cache write failed",
			zap.Int64("order_id", o.ID),
			zap.Error(err),
		)
	}
}

type noopCache struct{}

func (noopCache) Get(context.Context, int64) (*Order, bool) { return nil, false }
func (noopCache) Set(context.Context, *Order)               {}
