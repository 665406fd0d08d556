package repository

import (
	"context"

	"restaurant-saas/internal/domain/model"
)

// GatewayConfigRepository reads credential material. Results must not be cached.
type GatewayConfigRepository interface {
	// FindActivePlatformConfig returns domain.ErrGatewayNotConfigured when no active row exists.
	FindActivePlatformConfig(ctx context.Context) (*model.PlatformGatewayConfig, error)
	// FindTenantSecret returns domain.ErrCredentialsNotConfigured when the tenant has none.
	FindTenantSecret(ctx context.Context, tenantID string) (*model.TenantGatewaySecret, error)
}

// WebhookEventRepository logs received gateway events for replay detection.
type WebhookEventRepository interface {
	Exists(ctx context.Context, tx Tx, eventID string) (bool, error)
	Record(ctx context.Context, tx Tx, e *model.WebhookEvent) error
}
