package usecase

import (
	"context"
	"errors"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
	ucport "restaurant-saas/internal/domain/ports/usecase"
)

var _ ucport.PlanCatalog = (*PlanUseCase)(nil)

// PlanUseCase serves the canonical price list.
type PlanUseCase struct {
	repo repository.PricePlanRepository
}

// NewPlanUseCase constructs a PlanUseCase.
func NewPlanUseCase(repo repository.PricePlanRepository) *PlanUseCase {
	return &PlanUseCase{repo: repo}
}

// Get retrieves a plan by ID. Unknown ids are reported as ErrInvalidPlan.
func (uc *PlanUseCase) Get(ctx context.Context, id string) (*model.PricePlan, error) {
	if id == "" {
		return nil, domain.ErrInvalidPlan
	}
	p, err := uc.repo.FindByID(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrInvalidPlan
	}
	return p, err
}

// List returns all plans ordered by tier.
func (uc *PlanUseCase) List(ctx context.Context) ([]*model.PricePlan, error) {
	return uc.repo.ListAll(ctx)
}

// Purchasable returns the plan if it can be bought at its list price.
func (uc *PlanUseCase) Purchasable(ctx context.Context, id string) (*model.PricePlan, error) {
	p, err := uc.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !p.Purchasable() {
		return nil, domain.ErrPlanNotPurchasable
	}
	return p, nil
}

// CurrentPrice is the price used as the baseline for a plan change.
// Unknown or custom-priced plans count as 0.
func (uc *PlanUseCase) CurrentPrice(ctx context.Context, id string) (int64, error) {
	p, err := uc.Get(ctx, id)
	switch {
	case errors.Is(err, domain.ErrInvalidPlan):
		return 0, nil
	case err != nil:
		return 0, err
	}
	return p.Price(), nil
}

// Seed writes the default catalog.
func (uc *PlanUseCase) Seed(ctx context.Context) error {
	for _, p := range model.DefaultCatalog() {
		if err := uc.repo.Save(ctx, p); err != nil {
			return err
		}
	}
	return nil
}
