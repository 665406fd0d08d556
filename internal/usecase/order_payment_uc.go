// File: internal/usecase/order_payment_uc.go
package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/adapter"
	"restaurant-saas/internal/domain/ports/repository"
	"restaurant-saas/internal/infra/logging"
	"restaurant-saas/internal/infra/metrics"
	"restaurant-saas/internal/infra/security"
)

// Compile-time check
var _ OrderPaymentUseCase = (*orderPaymentUC)(nil)

// CreateOrderInput is an untrusted checkout request from a table.
type CreateOrderInput struct {
	TenantID    string
	TableID     string
	Items       []model.LineItem
	ClientTotal decimal.Decimal
}

// OrderCheckout is what the client needs to open the gateway checkout.
type OrderCheckout struct {
	OrderID        string
	GatewayOrderID string
	KeyID          string
	AmountMinor    int64
	Currency       string
	Pricing        OrderPricing
}

type VerifyOrderInput struct {
	TenantID       string
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

type OrderPaymentUseCase interface {
	// CreateOrder recomputes the total and opens a gateway order on the tenant's account.
	CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderCheckout, error)
	// VerifyPayment checks the checkout signature and marks the order paid.
	VerifyPayment(ctx context.Context, in VerifyOrderInput) (*model.Order, error)
}

type orderPaymentUC struct {
	settings repository.TenantSettingsRepository
	orders   repository.OrderRepository
	secrets  repository.GatewayConfigRepository
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	billing  BillingSettings
	log      *zerolog.Logger
}

func NewOrderPaymentUseCase(
	settings repository.TenantSettingsRepository,
	orders repository.OrderRepository,
	secrets repository.GatewayConfigRepository,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	billing BillingSettings,
	logger *zerolog.Logger,
) *orderPaymentUC {
	return &orderPaymentUC{
		settings: settings,
		orders:   orders,
		secrets:  secrets,
		gateway:  gateway,
		tm:       tm,
		billing:  billing.withDefaults(),
		log:      logger,
	}
}

func (u *orderPaymentUC) CreateOrder(ctx context.Context, in CreateOrderInput) (*OrderCheckout, error) {
	if err := requireFields("tenant_id", in.TenantID, "table_id", in.TableID); err != nil {
		return nil, err
	}
	if err := requireUUIDs("tenant_id", in.TenantID); err != nil {
		return nil, err
	}
	ctx = logging.WithTenantID(ctx, in.TenantID)
	log := logging.With(ctx, u.log)

	settings, err := u.settings.FindByTenantID(ctx, repository.NoTX, in.TenantID)
	if err != nil {
		return nil, err
	}
	if !settings.PaymentsEnabled {
		return nil, domain.ErrPaymentsDisabled
	}

	pricing, err := PriceOrder(in.Items, settings.ServiceCharge)
	if err != nil {
		return nil, err
	}
	if err := CheckClientTotal(pricing, in.ClientTotal); err != nil {
		log.Warn().
			Str("table_id", in.TableID).
			Str("expected", pricing.Total.StringFixed(2)).
			Str("claimed", in.ClientTotal.String()).
			Msg("order total mismatch")
		return nil, err
	}
	if pricing.AmountMinor() <= 0 {
		return nil, fmt.Errorf("%w: order total must be positive", domain.ErrInvalidArgument)
	}

	if settings.GatewayKeyID == "" {
		return nil, domain.ErrCredentialsNotConfigured
	}
	secret, err := u.secrets.FindTenantSecret(ctx, in.TenantID)
	if err != nil {
		return nil, err
	}
	if secret.KeySecret == "" {
		return nil, domain.ErrCredentialsNotConfigured
	}
	creds := model.GatewayCredentials{KeyID: settings.GatewayKeyID, KeySecret: secret.KeySecret}

	now := time.Now().UTC()
	gwOrder, err := u.gateway.CreateOrder(ctx, creds, adapter.CreateOrderRequest{
		AmountMinor: pricing.AmountMinor(),
		Currency:    u.billing.Currency,
		Receipt:     newReceipt(now, receiptTable, in.TableID),
		Notes: map[string]string{
			"tenant_id": in.TenantID,
			"table_id":  in.TableID,
		},
	})
	metrics.IncGatewayOrder("tenant", err == nil)
	if err != nil {
		log.Error().Err(err).Msg("gateway order creation failed")
		return nil, err
	}

	order := &model.Order{
		ID:                  uuid.NewString(),
		TenantID:            in.TenantID,
		TableID:             in.TableID,
		Items:               in.Items,
		Subtotal:            pricing.Subtotal,
		ServiceChargeRate:   pricing.ServiceChargeRate,
		ServiceChargeAmount: pricing.ServiceChargeAmount,
		Total:               pricing.Total,
		Status:              model.OrderStatusPending,
		PaymentStatus:       model.OrderPaymentUnpaid,
		GatewayOrderID:      gwOrder.ID,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	if err := u.orders.Save(ctx, repository.NoTX, order); err != nil {
		log.Error().Err(err).Str("gateway_order_id", gwOrder.ID).Msg("order persist failed after gateway order")
		return nil, err
	}

	return &OrderCheckout{
		OrderID:        order.ID,
		GatewayOrderID: gwOrder.ID,
		KeyID:          creds.KeyID,
		AmountMinor:    pricing.AmountMinor(),
		Currency:       u.billing.Currency,
		Pricing:        pricing,
	}, nil
}

func (u *orderPaymentUC) VerifyPayment(ctx context.Context, in VerifyOrderInput) (*model.Order, error) {
	if err := requireFields("razorpay_order_id", in.GatewayOrderID, "razorpay_payment_id", in.PaymentID, "razorpay_signature", in.Signature); err != nil {
		return nil, err
	}
	if in.TenantID != "" {
		if err := requireUUIDs("tenant_id", in.TenantID); err != nil {
			return nil, err
		}
	}
	ctx = logging.WithGatewayOrderID(ctx, in.GatewayOrderID)

	order, err := u.orders.FindByGatewayOrderID(ctx, repository.NoTX, in.GatewayOrderID)
	if err != nil {
		return nil, err
	}
	if in.TenantID != "" && in.TenantID != order.TenantID {
		return nil, domain.ErrPaymentMismatch
	}
	ctx = logging.WithTenantID(ctx, order.TenantID)
	log := logging.With(ctx, u.log)

	secret, err := u.secrets.FindTenantSecret(ctx, order.TenantID)
	if err != nil {
		metrics.IncVerify("order", "not_configured")
		return nil, err
	}
	if secret.KeySecret == "" {
		metrics.IncVerify("order", "not_configured")
		return nil, domain.ErrCredentialsNotConfigured
	}
	if !security.VerifyPayment(secret.KeySecret, in.GatewayOrderID, in.PaymentID, in.Signature) {
		metrics.IncVerify("order", "bad_signature")
		log.Warn().Msg("order payment signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	var out *model.Order
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByGatewayOrderID(ctx, tx, in.GatewayOrderID)
		if err != nil {
			return err
		}
		out = o
		if o.PaymentStatus == model.OrderPaymentPaid {
			return nil
		}
		if !o.PaymentStatus.CanTransition(model.OrderPaymentPaid) {
			return fmt.Errorf("%w: payment_status %s -> paid", domain.ErrInvalidTransition, o.PaymentStatus)
		}
		now := time.Now().UTC()
		upd := model.PaymentUpdate{
			From:             o.PaymentStatus,
			PaymentStatus:    model.OrderPaymentPaid,
			GatewayPaymentID: in.PaymentID,
			GatewaySignature: &in.Signature,
			PaidAt:           &now,
		}
		if o.Status == model.OrderStatusPending {
			st := model.OrderStatusPending
			upd.Status = &st
		}
		if err := u.orders.UpdatePayment(ctx, tx, o.ID, upd); err != nil {
			return err
		}
		o.PaymentStatus = model.OrderPaymentPaid
		o.GatewayPaymentID = &in.PaymentID
		o.GatewaySignature = &in.Signature
		o.PaidAt = &now
		return nil
	})
	if err != nil {
		metrics.IncVerify("order", "error")
		if !errors.Is(err, domain.ErrInvalidTransition) {
			log.Error().Err(err).Msg("order payment update failed")
		}
		return nil, err
	}
	metrics.IncVerify("order", "ok")
	return out, nil
}
