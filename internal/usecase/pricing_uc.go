package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
)

var (
	hundred         = decimal.NewFromInt(100)
	amountTolerance = decimal.RequireFromString("0.01")
)

// OrderPricing is the server-side breakdown of an order.
type OrderPricing struct {
	Subtotal            decimal.Decimal
	ServiceChargeRate   decimal.Decimal
	ServiceChargeAmount decimal.Decimal
	Total               decimal.Decimal
}

// AmountMinor is Total in minor units, rounded half away from zero.
func (p OrderPricing) AmountMinor() int64 {
	return p.Total.Mul(hundred).Round(0).IntPart()
}

// PriceOrder recomputes an order from its line items and the tenant's
// service charge percentage. Money is rounded to two decimals.
func PriceOrder(items []model.LineItem, serviceChargeRate decimal.Decimal) (OrderPricing, error) {
	if len(items) == 0 {
		return OrderPricing{}, fmt.Errorf("%w: order has no items", domain.ErrInvalidArgument)
	}
	if serviceChargeRate.IsNegative() || serviceChargeRate.GreaterThan(hundred) {
		return OrderPricing{}, fmt.Errorf("%w: service charge out of range", domain.ErrInvalidArgument)
	}
	subtotal := decimal.Zero
	for i, it := range items {
		if it.Quantity <= 0 {
			return OrderPricing{}, fmt.Errorf("%w: item %d quantity must be positive", domain.ErrInvalidArgument, i)
		}
		if it.Price.IsNegative() {
			return OrderPricing{}, fmt.Errorf("%w: item %d price must not be negative", domain.ErrInvalidArgument, i)
		}
		subtotal = subtotal.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	subtotal = subtotal.Round(2)
	charge := subtotal.Mul(serviceChargeRate).Div(hundred).Round(2)
	return OrderPricing{
		Subtotal:            subtotal,
		ServiceChargeRate:   serviceChargeRate,
		ServiceChargeAmount: charge,
		Total:               subtotal.Add(charge),
	}, nil
}

// CheckClientTotal rejects a client-claimed total that differs from the
// recomputed one by more than 0.01.
func CheckClientTotal(p OrderPricing, clientTotal decimal.Decimal) error {
	if p.Total.Sub(clientTotal).Abs().GreaterThan(amountTolerance) {
		return fmt.Errorf("%w: expected %s, got %s", domain.ErrAmountMismatch, p.Total.StringFixed(2), clientTotal.String())
	}
	return nil
}
