package service

import (
	"context"
	"time"

	"shop-service/internal/util"

	"go.uber.org/zap"
)

// readThrough serves key from cache, falling back to load and populating the
// cache on a miss. Cache failures are logged and never fail the read.
func readThrough[T any](ctx context.Context, cache Cache, ttl time.Duration, name, key string, load func() (T, error)) (T, error) {
	logger := util.GetLogger()

	var cached T
	hit, err := cache.GetJSON(ctx, key, &cached)
	if err != nil {
		logger.Warn("Cache read failed", zap.String("key", key), zap.Error(err))
	}
	if hit {
		util.CacheRequestsTotal.WithLabelValues(name, "hit").Inc()
		return cached, nil
	}
	util.CacheRequestsTotal.WithLabelValues(name, "miss").Inc()

	value, err := load()
	if err != nil {
		return value, err
	}

	if err := cache.SetJSON(ctx, key, value, ttl); err != nil {
		logger.Warn("Cache write failed", zap.String("key", key), zap.Error(err))
	}
	return value, nil
}

// invalidate drops keys after a committed change
func invalidate(ctx context.Context, cache Cache, keys ...string) {
	if err := cache.Delete(ctx, keys...); err != nil {
		util.GetLogger().Warn("Cache invalidation failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
