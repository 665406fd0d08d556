// File: internal/usecase/webhook_uc.go
package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
	"restaurant-saas/internal/infra/logging"
	"restaurant-saas/internal/infra/metrics"
	"restaurant-saas/internal/infra/security"
)

// Compile-time check
var _ WebhookUseCase = (*webhookUC)(nil)

// Gateway event types acted on.
const (
	EventPaymentCaptured   = "payment.captured"
	EventPaymentFailed     = "payment.failed"
	EventPaymentAuthorized = "payment.authorized"
)

// Webhook outcomes. All of them are acknowledged with 200.
const (
	WebhookApplied   = "applied"
	WebhookNoop      = "noop"
	WebhookNotFound  = "not_found"
	WebhookIgnored   = "ignored"
	WebhookDuplicate = "duplicate"
)

// WebhookDelivery is one inbound notification. Body is the raw request body.
type WebhookDelivery struct {
	Signature string
	EventID   string
	Body      []byte
}

type WebhookResult struct {
	Event          string
	GatewayOrderID string
	Outcome        string
}

type WebhookUseCase interface {
	Handle(ctx context.Context, d WebhookDelivery) (*WebhookResult, error)
}

type upgradeCommitter interface {
	ApplyCapturedUpgrade(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, paymentID string) (bool, error)
}

type tenantProvisioner interface {
	ProvisionCaptured(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, paymentID string) (*ProvisioningResult, error)
}

type webhookPayload struct {
	Event   string `json:"event"`
	Payload struct {
		Payment *struct {
			Entity *paymentEntity `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type paymentEntity struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Amount  int64  `json:"amount"`
}

type webhookUC struct {
	orders      repository.OrderRepository
	payments    repository.SubscriptionPaymentRepository
	gwConfig    repository.GatewayConfigRepository
	events      repository.WebhookEventRepository
	upgrades    upgradeCommitter
	provisioner tenantProvisioner
	tm          repository.TransactionManager
	billing     BillingSettings
	log         *zerolog.Logger
}

func NewWebhookUseCase(
	orders repository.OrderRepository,
	payments repository.SubscriptionPaymentRepository,
	gwConfig repository.GatewayConfigRepository,
	events repository.WebhookEventRepository,
	upgrades upgradeCommitter,
	provisioner tenantProvisioner,
	tm repository.TransactionManager,
	billing BillingSettings,
	logger *zerolog.Logger,
) *webhookUC {
	return &webhookUC{
		orders:      orders,
		payments:    payments,
		gwConfig:    gwConfig,
		events:      events,
		upgrades:    upgrades,
		provisioner: provisioner,
		tm:          tm,
		billing:     billing.withDefaults(),
		log:         logger,
	}
}

func (u *webhookUC) Handle(ctx context.Context, d WebhookDelivery) (*WebhookResult, error) {
	if d.Signature == "" {
		return nil, domain.ErrMissingSignature
	}
	var env webhookPayload
	if err := json.Unmarshal(d.Body, &env); err != nil || env.Event == "" {
		return nil, domain.ErrMalformedPayload
	}
	res := &WebhookResult{Event: env.Event}

	switch env.Event {
	case EventPaymentCaptured, EventPaymentFailed, EventPaymentAuthorized:
	default:
		res.Outcome = WebhookIgnored
		metrics.IncWebhook(env.Event, res.Outcome)
		logging.With(ctx, u.log).Debug().Str("event", env.Event).Msg("webhook event ignored")
		return res, nil
	}

	if env.Payload.Payment == nil || env.Payload.Payment.Entity == nil || env.Payload.Payment.Entity.OrderID == "" {
		return nil, domain.ErrMalformedPayload
	}
	entity := env.Payload.Payment.Entity
	res.GatewayOrderID = entity.OrderID
	ctx = logging.WithGatewayOrderID(ctx, entity.OrderID)

	order, err := u.orders.FindByGatewayOrderID(ctx, repository.NoTX, entity.OrderID)
	switch {
	case err == nil:
		res.Outcome, err = u.handleOrder(ctx, d, env.Event, entity, order.TenantID)
	case errors.Is(err, domain.ErrNotFound):
		res.Outcome, err = u.handleSubscription(ctx, d, env.Event, entity)
	}
	if err != nil {
		metrics.IncWebhook(env.Event, "error")
		return nil, err
	}
	metrics.IncWebhook(env.Event, res.Outcome)
	return res, nil
}

func (u *webhookUC) handleOrder(ctx context.Context, d WebhookDelivery, event string, entity *paymentEntity, tenantID string) (string, error) {
	ctx = logging.WithTenantID(ctx, tenantID)
	log := logging.With(ctx, u.log)

	secret, err := u.gwConfig.FindTenantSecret(ctx, tenantID)
	if err != nil && !errors.Is(err, domain.ErrCredentialsNotConfigured) {
		return "", err
	}
	if secret == nil || secret.WebhookSecret == "" {
		if !u.billing.AllowUnverifiedWebhooks {
			log.Warn().Str("event", event).Msg("webhook rejected: tenant has no webhook secret")
			return "", domain.ErrInvalidSignature
		}
		log.Warn().Bool("degraded_trust", true).Str("event", event).Msg("processing webhook without signature verification")
	} else if !security.Verify([]byte(secret.WebhookSecret), d.Body, d.Signature) {
		log.Warn().Str("event", event).Msg("webhook signature mismatch")
		return "", domain.ErrInvalidSignature
	}

	var outcome string
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		o, err := u.orders.FindByGatewayOrderID(ctx, tx, entity.OrderID)
		if err != nil {
			return err
		}
		if dup, err := u.seen(ctx, tx, d.EventID); err != nil || dup {
			outcome = WebhookDuplicate
			return err
		}
		upd, ok := orderUpdateFor(o, event, entity.ID, time.Now().UTC())
		if !ok {
			outcome = WebhookNoop
		} else {
			if err := u.orders.UpdatePayment(ctx, tx, o.ID, upd); err != nil {
				return err
			}
			outcome = WebhookApplied
		}
		return u.record(ctx, tx, d.EventID, event, entity.OrderID, outcome)
	})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("order webhook dispatch failed")
		return "", err
	}
	log.Info().Str("event", event).Str("outcome", outcome).Msg("order webhook handled")
	return outcome, nil
}

// orderUpdateFor maps an event onto the order. It reports false when the
// event would not move payment_status forward, which makes redelivery a no-op.
func orderUpdateFor(o *model.Order, event, paymentID string, now time.Time) (model.PaymentUpdate, bool) {
	upd := model.PaymentUpdate{From: o.PaymentStatus, GatewayPaymentID: paymentID}
	switch event {
	case EventPaymentCaptured:
		upd.PaymentStatus = model.OrderPaymentPaid
		upd.PaidAt = &now
		if o.Status == model.OrderStatusPending {
			st := model.OrderStatusPending
			upd.Status = &st
		}
	case EventPaymentFailed:
		upd.PaymentStatus = model.OrderPaymentFailed
		if o.Status.CanTransition(model.OrderStatusRejected) {
			st := model.OrderStatusRejected
			upd.Status = &st
		}
	case EventPaymentAuthorized:
		upd.PaymentStatus = model.OrderPaymentAuthorized
	default:
		return upd, false
	}
	if !o.PaymentStatus.CanTransition(upd.PaymentStatus) {
		return upd, false
	}
	return upd, true
}

func (u *webhookUC) handleSubscription(ctx context.Context, d WebhookDelivery, event string, entity *paymentEntity) (string, error) {
	log := logging.With(ctx, u.log)

	if _, err := u.payments.FindByGatewayOrderID(ctx, repository.NoTX, entity.OrderID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			log.Info().Str("event", event).Msg("webhook for unknown order ignored")
			return WebhookNotFound, nil
		}
		return "", err
	}

	cfg, err := u.gwConfig.FindActivePlatformConfig(ctx)
	if err != nil {
		return "", err
	}
	if cfg.WebhookSecret == "" {
		log.Warn().Str("event", event).Msg("subscription webhook rejected: platform webhook secret not configured")
		return "", domain.ErrInvalidSignature
	}
	if !security.Verify([]byte(cfg.WebhookSecret), d.Body, d.Signature) {
		log.Warn().Str("event", event).Msg("webhook signature mismatch")
		return "", domain.ErrInvalidSignature
	}

	var outcome string
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByGatewayOrderID(ctx, tx, entity.OrderID)
		if err != nil {
			return err
		}
		if p.TenantID != nil {
			ctx = logging.WithTenantID(ctx, *p.TenantID)
		}
		if dup, err := u.seen(ctx, tx, d.EventID); err != nil || dup {
			outcome = WebhookDuplicate
			return err
		}
		outcome, err = u.dispatchSubscription(ctx, tx, p, event, entity.ID)
		if err != nil {
			return err
		}
		return u.record(ctx, tx, d.EventID, event, entity.OrderID, outcome)
	})
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("subscription webhook dispatch failed")
		return "", err
	}
	log.Info().Str("event", event).Str("outcome", outcome).Msg("subscription webhook handled")
	return outcome, nil
}

func (u *webhookUC) dispatchSubscription(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, event, paymentID string) (string, error) {
	if p.Status.Terminal() {
		return WebhookNoop, nil
	}
	switch event {
	case EventPaymentCaptured:
		if err := u.payments.RecordVerification(ctx, tx, p.GatewayOrderID, paymentID, ""); err != nil {
			return "", err
		}
		switch p.PaymentType {
		case model.PaymentTypeUpgrade:
			applied, err := u.upgrades.ApplyCapturedUpgrade(ctx, tx, p, paymentID)
			if err != nil || !applied {
				return WebhookNoop, err
			}
			return WebhookApplied, nil
		case model.PaymentTypeNewSubscription:
			res, err := u.provisioner.ProvisionCaptured(ctx, tx, p, paymentID)
			if err != nil || res.AlreadyProvisioned {
				return WebhookNoop, err
			}
			return WebhookApplied, nil
		}
		return "", fmt.Errorf("%w: %s", domain.ErrUnsupportedPayment, p.PaymentType)
	case EventPaymentFailed:
		if !p.Status.CanTransition(model.PaymentStatusFailed) {
			return WebhookNoop, nil
		}
		changed, err := u.payments.MarkFailed(ctx, tx, p.GatewayOrderID)
		if err != nil || !changed {
			return WebhookNoop, err
		}
		metrics.IncPayment(string(p.PaymentType), string(model.PaymentStatusFailed))
		if p.PaymentType == model.PaymentTypeUpgrade {
			metrics.IncPlanChange(string(model.PlanChangeFailed))
		}
		return WebhookApplied, nil
	}
	return WebhookNoop, nil
}

func (u *webhookUC) seen(ctx context.Context, tx repository.Tx, eventID string) (bool, error) {
	if eventID == "" {
		return false, nil
	}
	ok, err := u.events.Exists(ctx, tx, eventID)
	if err != nil {
		return false, fmt.Errorf("webhook event lookup: %w", err)
	}
	return ok, nil
}

func (u *webhookUC) record(ctx context.Context, tx repository.Tx, eventID, event, orderID, outcome string) error {
	if eventID == "" {
		return nil
	}
	return u.events.Record(ctx, tx, &model.WebhookEvent{
		ID:             uuid.NewString(),
		EventID:        eventID,
		EventType:      event,
		GatewayOrderID: orderID,
		Outcome:        outcome,
		ReceivedAt:     time.Now().UTC(),
	})
}
