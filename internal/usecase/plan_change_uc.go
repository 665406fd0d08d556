// File: internal/usecase/plan_change_uc.go
package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/adapter"
	"restaurant-saas/internal/domain/ports/repository"
	"restaurant-saas/internal/infra/logging"
	"restaurant-saas/internal/infra/metrics"
	"restaurant-saas/internal/infra/security"
)

// Compile-time check
var _ PlanChangeUseCase = (*planChangeUC)(nil)

type PlanChangeInput struct {
	TenantID  string
	NewPlanID string
	UserID    string
}

type PlanChangeVerifyInput struct {
	PlanChangeInput
	GatewayOrderID string
	PaymentID      string
	Signature      string
}

// PlanChangeResult reports where the attempt ended up. Order fields are set
// only when State is AWAITING_PAYMENT.
type PlanChangeResult struct {
	State           model.PlanChangeState
	RequiresPayment bool
	Message         string
	OrderID         string
	KeyID           string
	AmountMinor     int64
	Currency        string
	PriceDifference int64
	// AlreadyApplied is set when a verify call replays a completed upgrade.
	AlreadyApplied bool
}

type PlanChangeUseCase interface {
	// CreateOrder commits a downgrade immediately or opens a gateway order for an upgrade.
	CreateOrder(ctx context.Context, in PlanChangeInput) (*PlanChangeResult, error)
	// VerifyPayment completes a pending upgrade. Replays of a completed upgrade are no-ops.
	VerifyPayment(ctx context.Context, in PlanChangeVerifyInput) (*PlanChangeResult, error)
	// ApplyCapturedUpgrade completes a pending upgrade from a verified webhook.
	ApplyCapturedUpgrade(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, paymentID string) (bool, error)
}

type planChangeUC struct {
	tenants  repository.TenantRepository
	roles    repository.UserRoleRepository
	payments repository.SubscriptionPaymentRepository
	gwConfig repository.GatewayConfigRepository
	plans    *PlanUseCase
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	billing  BillingSettings
	log      *zerolog.Logger
}

func NewPlanChangeUseCase(
	tenants repository.TenantRepository,
	roles repository.UserRoleRepository,
	payments repository.SubscriptionPaymentRepository,
	gwConfig repository.GatewayConfigRepository,
	plans *PlanUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	billing BillingSettings,
	logger *zerolog.Logger,
) *planChangeUC {
	return &planChangeUC{
		tenants:  tenants,
		roles:    roles,
		payments: payments,
		gwConfig: gwConfig,
		plans:    plans,
		gateway:  gateway,
		tm:       tm,
		billing:  billing.withDefaults(),
		log:      logger,
	}
}

func (u *planChangeUC) CreateOrder(ctx context.Context, in PlanChangeInput) (*PlanChangeResult, error) {
	if err := requireFields("tenant_id", in.TenantID, "new_plan_id", in.NewPlanID, "user_id", in.UserID); err != nil {
		return nil, err
	}
	if err := requireUUIDs("tenant_id", in.TenantID, "user_id", in.UserID); err != nil {
		return nil, err
	}
	ctx = logging.WithUserID(logging.WithTenantID(ctx, in.TenantID), in.UserID)
	log := logging.With(ctx, u.log)

	if err := u.requireAdmin(ctx, in); err != nil {
		return nil, err
	}
	tenant, err := u.tenants.FindByID(ctx, repository.NoTX, in.TenantID)
	if err != nil {
		return nil, err
	}
	// A repeated request for the active plan is answered as an already committed change.
	if tenant.Plan == in.NewPlanID {
		log.Info().Str("plan", in.NewPlanID).Msg("plan change is a no-op")
		return &PlanChangeResult{
			State:          model.PlanChangeDowngradeCommitted,
			Message:        fmt.Sprintf("Plan %s is already active", in.NewPlanID),
			AlreadyApplied: true,
		}, nil
	}
	requested, err := u.plans.Purchasable(ctx, in.NewPlanID)
	if err != nil {
		return nil, err
	}
	currentPrice, err := u.plans.CurrentPrice(ctx, tenant.Plan)
	if err != nil {
		return nil, err
	}

	if model.PlanChangeKind(currentPrice, requested.Price()) == model.PaymentTypeDowngrade {
		if err := u.commitDowngrade(ctx, in); err != nil {
			metrics.IncPlanChange(string(model.PlanChangeFailed))
			log.Error().Err(err).Str("new_plan", in.NewPlanID).Msg("downgrade commit failed")
			return nil, err
		}
		metrics.IncPlanChange(string(model.PlanChangeDowngradeCommitted))
		log.Info().Str("from", tenant.Plan).Str("to", in.NewPlanID).Msg("plan downgraded")
		return &PlanChangeResult{
			State:   model.PlanChangeDowngradeCommitted,
			Message: fmt.Sprintf("Plan changed to %s", requested.Name),
		}, nil
	}

	diff := requested.Price() - currentPrice
	if diff <= 0 {
		return nil, fmt.Errorf("%w: non-positive price difference", domain.ErrInvalidTransition)
	}

	cfg, err := platformConfig(ctx, u.gwConfig)
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	gwOrder, err := u.gateway.CreateOrder(ctx, cfg.Credentials(), adapter.CreateOrderRequest{
		AmountMinor: toMinor(diff),
		Currency:    u.billing.Currency,
		Receipt:     newReceipt(now, receiptUpgrade),
		Notes: map[string]string{
			"tenant_id":    in.TenantID,
			"user_id":      in.UserID,
			"new_plan":     in.NewPlanID,
			"payment_type": string(model.PaymentTypeUpgrade),
		},
	})
	metrics.IncGatewayOrder("platform", err == nil)
	if err != nil {
		log.Error().Err(err).Msg("upgrade gateway order failed")
		return nil, err
	}

	tenantID := in.TenantID
	p := &model.SubscriptionPayment{
		ID:             uuid.NewString(),
		TenantID:       &tenantID,
		UserID:         in.UserID,
		Plan:           in.NewPlanID,
		PaymentType:    model.PaymentTypeUpgrade,
		Amount:         diff,
		Currency:       u.billing.Currency,
		Status:         model.PaymentStatusPending,
		GatewayOrderID: gwOrder.ID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		log.Error().Err(err).Str("gateway_order_id", gwOrder.ID).Msg("upgrade payment persist failed")
		return nil, err
	}
	metrics.IncPayment(string(p.PaymentType), string(p.Status))
	metrics.IncPlanChange(string(model.PlanChangeAwaitingPayment))

	return &PlanChangeResult{
		State:           model.PlanChangeAwaitingPayment,
		RequiresPayment: true,
		OrderID:         gwOrder.ID,
		KeyID:           cfg.KeyID,
		AmountMinor:     toMinor(diff),
		Currency:        u.billing.Currency,
		PriceDifference: diff,
	}, nil
}

// requireAdmin rejects callers that do not administer the tenant.
func (u *planChangeUC) requireAdmin(ctx context.Context, in PlanChangeInput) error {
	ok, err := u.roles.HasRole(ctx, repository.NoTX, in.UserID, in.TenantID, model.RoleTenantAdmin)
	if err != nil {
		return err
	}
	if !ok {
		logging.With(ctx, u.log).Warn().Msg("plan change rejected: user is not a tenant admin")
		return domain.ErrForbidden
	}
	return nil
}

func (u *planChangeUC) commitDowngrade(ctx context.Context, in PlanChangeInput) error {
	return u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		// lock the tenant row so a concurrent upgrade commit serializes behind us
		if _, err := u.tenants.FindByID(ctx, tx, in.TenantID); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := u.tenants.UpdatePlan(ctx, tx, in.TenantID, in.NewPlanID, nil, model.NextPeriodEnd(now)); err != nil {
			return err
		}
		tenantID := in.TenantID
		return u.payments.Save(ctx, tx, &model.SubscriptionPayment{
			ID:          uuid.NewString(),
			TenantID:    &tenantID,
			UserID:      in.UserID,
			Plan:        in.NewPlanID,
			PaymentType: model.PaymentTypeDowngrade,
			Amount:      0,
			Currency:    u.billing.Currency,
			Status:      model.PaymentStatusCompleted,
			CreatedAt:   now,
			UpdatedAt:   now,
			CompletedAt: &now,
		})
	})
}

func (u *planChangeUC) VerifyPayment(ctx context.Context, in PlanChangeVerifyInput) (*PlanChangeResult, error) {
	if err := requireFields(
		"tenant_id", in.TenantID, "new_plan_id", in.NewPlanID, "user_id", in.UserID,
		"razorpay_order_id", in.GatewayOrderID, "razorpay_payment_id", in.PaymentID, "razorpay_signature", in.Signature,
	); err != nil {
		return nil, err
	}
	if err := requireUUIDs("tenant_id", in.TenantID, "user_id", in.UserID); err != nil {
		return nil, err
	}
	ctx = logging.WithGatewayOrderID(logging.WithUserID(logging.WithTenantID(ctx, in.TenantID), in.UserID), in.GatewayOrderID)
	log := logging.With(ctx, u.log)

	if err := u.requireAdmin(ctx, in.PlanChangeInput); err != nil {
		return nil, err
	}

	cfg, err := platformConfig(ctx, u.gwConfig)
	if err != nil {
		metrics.IncVerify("plan_change", "not_configured")
		return nil, err
	}
	if !security.VerifyPayment(cfg.KeySecret, in.GatewayOrderID, in.PaymentID, in.Signature) {
		metrics.IncVerify("plan_change", "bad_signature")
		metrics.IncPlanChange(string(model.PlanChangeFailed))
		log.Warn().Msg("upgrade payment signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	var applied bool
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByGatewayOrderID(ctx, tx, in.GatewayOrderID)
		if err != nil {
			return err
		}
		if p.PaymentType != model.PaymentTypeUpgrade || p.TenantID == nil || *p.TenantID != in.TenantID || p.Plan != in.NewPlanID {
			return domain.ErrPaymentMismatch
		}
		if model.PlanChangeStateOf(p) == model.PlanChangeUpgradeCommitted {
			return nil
		}
		if err := u.payments.RecordVerification(ctx, tx, in.GatewayOrderID, in.PaymentID, in.Signature); err != nil {
			return err
		}
		applied, err = u.ApplyCapturedUpgrade(ctx, tx, p, in.PaymentID)
		return err
	})
	if err != nil {
		metrics.IncVerify("plan_change", "error")
		log.Error().Err(err).Msg("upgrade commit failed")
		return nil, err
	}

	if !applied {
		metrics.IncVerify("plan_change", "noop")
		return &PlanChangeResult{
			State:          model.PlanChangeUpgradeCommitted,
			Message:        "Plan upgrade already applied",
			AlreadyApplied: true,
		}, nil
	}
	metrics.IncVerify("plan_change", "ok")
	return &PlanChangeResult{
		State:   model.PlanChangeUpgradeCommitted,
		Message: fmt.Sprintf("Plan upgraded to %s", in.NewPlanID),
	}, nil
}

// ApplyCapturedUpgrade commits the tenant plan for a verified upgrade payment.
// The caller must hold the payment row lock in tx. It returns false when the
// payment was already completed.
func (u *planChangeUC) ApplyCapturedUpgrade(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, paymentID string) (bool, error) {
	state := model.PlanChangeStateOf(p)
	if state == model.PlanChangeUpgradeCommitted {
		return false, nil
	}
	if !state.CanTransition(model.PlanChangeUpgradeCommitted) || !p.Status.CanTransition(model.PaymentStatusCompleted) {
		return false, fmt.Errorf("%w: plan change is %s", domain.ErrInvalidTransition, state)
	}
	if p.TenantID == nil {
		return false, domain.ErrPaymentMismatch
	}

	now := time.Now().UTC()
	if err := u.tenants.UpdatePlan(ctx, tx, *p.TenantID, p.Plan, &now, model.NextPeriodEnd(now)); err != nil {
		return false, err
	}
	changed, err := u.payments.MarkCompleted(ctx, tx, p.GatewayOrderID, now)
	if err != nil {
		return false, err
	}
	if !changed {
		return false, fmt.Errorf("%w: payment no longer pending", domain.ErrPaymentNotPending)
	}
	metrics.IncPayment(string(p.PaymentType), string(model.PaymentStatusCompleted))
	metrics.AddPaymentRevenue(p.Currency, p.Amount)
	metrics.IncPlanChange(string(model.PlanChangeUpgradeCommitted))
	logging.With(ctx, u.log).Info().Str("plan", p.Plan).Str("payment_id", logging.Redact(paymentID, false)).Msg("plan upgraded")
	return true, nil
}
