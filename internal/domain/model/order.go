package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusAccepted  OrderStatus = "accepted"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusCooking   OrderStatus = "cooking"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusCompleted OrderStatus = "completed"
	OrderStatusRejected  OrderStatus = "rejected"
)

var orderStatusNext = map[OrderStatus][]OrderStatus{
	OrderStatusPending:   {OrderStatusAccepted, OrderStatusRejected},
	OrderStatusAccepted:  {OrderStatusPreparing, OrderStatusRejected},
	OrderStatusPreparing: {OrderStatusCooking, OrderStatusRejected},
	OrderStatusCooking:   {OrderStatusReady, OrderStatusRejected},
	OrderStatusReady:     {OrderStatusCompleted, OrderStatusRejected},
	OrderStatusCompleted: nil,
	OrderStatusRejected:  nil,
}

func (s OrderStatus) Valid() bool {
	_, ok := orderStatusNext[s]
	return ok
}

// CanTransition reports whether the kitchen workflow permits s -> to.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	for _, n := range orderStatusNext[s] {
		if n == to {
			return true
		}
	}
	return false
}

type OrderPaymentStatus string

const (
	OrderPaymentUnpaid     OrderPaymentStatus = "unpaid"
	OrderPaymentAuthorized OrderPaymentStatus = "authorized"
	OrderPaymentPaid       OrderPaymentStatus = "paid"
	OrderPaymentFailed     OrderPaymentStatus = "failed"
)

var orderPaymentNext = map[OrderPaymentStatus][]OrderPaymentStatus{
	OrderPaymentUnpaid:     {OrderPaymentAuthorized, OrderPaymentPaid, OrderPaymentFailed},
	OrderPaymentAuthorized: {OrderPaymentPaid},
	OrderPaymentPaid:       nil,
	OrderPaymentFailed:     nil,
}

func (s OrderPaymentStatus) Valid() bool {
	_, ok := orderPaymentNext[s]
	return ok
}

// CanTransition reports whether payment state may move forward from s to to.
// Self-transitions are not transitions; callers treat them as no-ops.
func (s OrderPaymentStatus) CanTransition(to OrderPaymentStatus) bool {
	for _, n := range orderPaymentNext[s] {
		if n == to {
			return true
		}
	}
	return false
}

// LineItem is one priced entry of an in-restaurant order.
type LineItem struct {
	MenuItemID string          `json:"menu_item_id,omitempty"`
	Name       string          `json:"name,omitempty"`
	Price      decimal.Decimal `json:"price"`
	Quantity   int             `json:"quantity"`
}

// Order is a table order paid through the tenant's own gateway account.
type Order struct {
	ID                  string
	TenantID            string
	TableID             string
	Items               []LineItem
	Subtotal            decimal.Decimal
	ServiceChargeRate   decimal.Decimal
	ServiceChargeAmount decimal.Decimal
	Total               decimal.Decimal
	Status              OrderStatus
	PaymentStatus       OrderPaymentStatus
	GatewayOrderID      string
	GatewayPaymentID    *string
	GatewaySignature    *string
	PaidAt              *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// PaymentUpdate is the set of fields a verified payment event writes to an order.
type PaymentUpdate struct {
	// From is the payment_status the update was computed against. The write
	// is rejected when the stored status no longer matches.
	From             OrderPaymentStatus
	PaymentStatus    OrderPaymentStatus
	Status           *OrderStatus
	GatewayPaymentID string
	GatewaySignature *string
	PaidAt           *time.Time
}
