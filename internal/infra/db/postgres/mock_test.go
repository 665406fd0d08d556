//go:build !integration

package postgres

import (
	"context"
	"io"

	"github.com/rs/zerolog"

	"restaurant-saas/internal/domain/model"
)

// --- Mocks for Cache Decorator Tests ---

// mockInnerPlanRepo mocks the database repository that the Plan decorator wraps.
type mockInnerPlanRepo struct {
	SaveFunc     func(ctx context.Context, plan *model.PricePlan) error
	FindByIDFunc func(ctx context.Context, id string) (*model.PricePlan, error)
	ListAllFunc  func(ctx context.Context) ([]*model.PricePlan, error)

	findCalls int
	listCalls int
}

func (m *mockInnerPlanRepo) Save(ctx context.Context, plan *model.PricePlan) error {
	return m.SaveFunc(ctx, plan)
}

func (m *mockInnerPlanRepo) FindByID(ctx context.Context, id string) (*model.PricePlan, error) {
	m.findCalls++
	return m.FindByIDFunc(ctx, id)
}

func (m *mockInnerPlanRepo) ListAll(ctx context.Context) ([]*model.PricePlan, error) {
	m.listCalls++
	return m.ListAllFunc(ctx)
}

func newTestLogger() *zerolog.Logger {
	l := zerolog.New(io.Discard)
	return &l
}
