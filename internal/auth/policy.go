package auth

import (
	"context"

	"shop-service/internal/apperr"
	"shop-service/internal/models"

	"go.uber.org/zap"
)

// TrustedCallerPolicy lets every moderation request through. It is meant for
// deployments where the moderation routes are only reachable from an internal
// admin network.
type TrustedCallerPolicy struct{}

func (TrustedCallerPolicy) Authorize(context.Context, int64, models.ModerationAction) error {
	return nil
}

// RequireRolePolicy only admits callers whose principal has Role.
type RequireRolePolicy struct {
	Role   string
	Logger *zap.Logger
}

func NewModeratorPolicy(logger *zap.Logger) *RequireRolePolicy {
	return &RequireRolePolicy{Role: RoleModerator, Logger: logger}
}

func (p *RequireRolePolicy) Authorize(ctx context.Context, reviewID int64, action models.ModerationAction) error {
	principal, ok := PrincipalFrom(ctx)
	if !ok {
		return apperr.Unauthorized("authentication required for moderation")
	}

	if principal.Role != p.Role {
		p.Logger.Warn("Moderation denied",
			zap.String("subject", principal.Subject),
			zap.String("role", principal.Role),
			zap.Int64("review_id", reviewID),
			zap.String("action", string(action)))
		return apperr.Forbidden("moderator role required")
	}
	return nil
}
