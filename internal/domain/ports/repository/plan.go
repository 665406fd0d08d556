package repository

import (
	"context"

	"restaurant-saas/internal/domain/model"
)

// PricePlanRepository is the port for the canonical price list.
type PricePlanRepository interface {
	Save(ctx context.Context, plan *model.PricePlan) error
	FindByID(ctx context.Context, id string) (*model.PricePlan, error)
	ListAll(ctx context.Context) ([]*model.PricePlan, error)
}
