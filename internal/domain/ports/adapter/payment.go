package adapter

import (
	"context"

	"restaurant-saas/internal/domain/model"
)

// CreateOrderRequest opens a gateway order. AmountMinor is in minor currency units.
type CreateOrderRequest struct {
	AmountMinor int64
	Currency    string
	Receipt     string
	Notes       map[string]string
}

// GatewayOrder is the provider's view of an opened order.
type GatewayOrder struct {
	ID       string
	Amount   int64
	Currency string
	Receipt  string
	Status   string
}

// PaymentGateway is the hex port for payment providers. Credentials are
// passed per call since platform billing and table orders use different accounts.
type PaymentGateway interface {
	Name() string
	CreateOrder(ctx context.Context, creds model.GatewayCredentials, req CreateOrderRequest) (*GatewayOrder, error)
}
