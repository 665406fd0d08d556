package payment

import (
	"context"
	"fmt"
	"sync"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/adapter"
)

var _ adapter.PaymentGateway = (*NoopPaymentGateway)(nil)

// NoopPaymentGateway is an in-memory gateway for local runs and tests.
// Checkout signatures must still be produced with the account's key secret.
type NoopPaymentGateway struct {
	mu     sync.Mutex
	seq    int64
	orders map[string]adapter.CreateOrderRequest
}

func NewNoopPaymentGateway() *NoopPaymentGateway {
	return &NoopPaymentGateway{
		orders: make(map[string]adapter.CreateOrderRequest),
	}
}

func (g *NoopPaymentGateway) Name() string { return "noop" }

func (g *NoopPaymentGateway) next() string {
	g.seq++
	return fmt.Sprintf("order_noop%d", g.seq)
}

func (g *NoopPaymentGateway) CreateOrder(ctx context.Context, creds model.GatewayCredentials, req adapter.CreateOrderRequest) (*adapter.GatewayOrder, error) {
	if !creds.Complete() {
		return nil, domain.ErrCredentialsNotConfigured
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	id := g.next()
	g.orders[id] = req
	return &adapter.GatewayOrder{
		ID:       id,
		Amount:   req.AmountMinor,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

// Order returns the request an order was opened with.
func (g *NoopPaymentGateway) Order(id string) (adapter.CreateOrderRequest, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	r, ok := g.orders[id]
	return r, ok
}
