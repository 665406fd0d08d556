package usecase

import (
	"context"

	"restaurant-saas/internal/domain/model"
)

// PlanCatalog exposes the price list to transports.
type PlanCatalog interface {
	List(ctx context.Context) ([]*model.PricePlan, error)
	Get(ctx context.Context, planID string) (*model.PricePlan, error)
}
