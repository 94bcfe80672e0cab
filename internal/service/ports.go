package service

import (
	"context"
	"time"

	"shop-service/internal/models"
)

// Cache is the read cache used for goods listings and product reviews.
// Implementations: redisclient.Client and redisclient.NopCache.
type Cache interface {
	GetJSON(ctx context.Context, key string, dest interface{}) (bool, error)
	SetJSON(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// ModerationPolicy decides whether the caller in ctx may apply action to a review.
// Implementations: auth.TrustedCallerPolicy and auth.RequireRolePolicy.
type ModerationPolicy interface {
	Authorize(ctx context.Context, reviewID int64, action models.ModerationAction) error
}
