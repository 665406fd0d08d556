package repository

import (
	"context"

	"restaurant-saas/internal/domain/model"
)

// OrderRepository persists in-restaurant orders.
type OrderRepository interface {
	Save(ctx context.Context, tx Tx, o *model.Order) error
	FindByGatewayOrderID(ctx context.Context, tx Tx, gatewayOrderID string) (*model.Order, error)
	// UpdatePayment writes the payment fields and bumps updated_at.
	UpdatePayment(ctx context.Context, tx Tx, orderID string, u model.PaymentUpdate) error
}
