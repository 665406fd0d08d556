package repository

import (
	"context"
	"time"

	"restaurant-saas/internal/domain/model"
)

type TenantRepository interface {
	Create(ctx context.Context, tx Tx, t *model.Tenant) error
	FindByID(ctx context.Context, tx Tx, id string) (*model.Tenant, error)
	// UpdatePlan sets the plan and period. A nil start keeps the stored start date.
	UpdatePlan(ctx context.Context, tx Tx, tenantID, plan string, start *time.Time, end time.Time) error
}

type TenantSettingsRepository interface {
	// CreateDefault inserts settings unless the tenant already has a row.
	CreateDefault(ctx context.Context, tx Tx, s *model.TenantSettings, restaurantName string) error
	FindByTenantID(ctx context.Context, tx Tx, tenantID string) (*model.TenantSettings, error)
}

type UserRoleRepository interface {
	// Assign is idempotent per (user, tenant, role).
	Assign(ctx context.Context, tx Tx, r *model.UserRole) error
	HasRole(ctx context.Context, tx Tx, userID, tenantID string, role model.Role) (bool, error)
}

type ProfileRepository interface {
	// MarkNeedsPasswordSetup flags the profile and attaches it to tenantID.
	MarkNeedsPasswordSetup(ctx context.Context, tx Tx, userID, tenantID string) error
}
