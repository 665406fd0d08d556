// File: internal/usecase/subscription_uc.go
package usecase

import (
	"context"
	"errors"
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
var _ SubscriptionUseCase = (*subscriptionUC)(nil)

type SubscriptionOrderInput struct {
	PlanID string
	UserID string
	Signup model.SignupDetails
}

// SubscriptionCheckout holds whole-unit prices next to the minor-unit gateway amount.
type SubscriptionCheckout struct {
	OrderID     string
	KeyID       string
	AmountMinor int64
	Currency    string
	PlanPrice   int64
	SetupFee    int64
	Total       int64
}

type SubscriptionVerifyInput struct {
	UserID         string
	GatewayOrderID string
	PaymentID      string
	Signature      string
	// Signup fills fields that were not captured when the order was opened.
	Signup *model.SignupDetails
}

type ProvisioningResult struct {
	TenantID           string
	AlreadyProvisioned bool
}

type SubscriptionUseCase interface {
	CreateSubscriptionOrder(ctx context.Context, in SubscriptionOrderInput) (*SubscriptionCheckout, error)
	// VerifySubscriptionPayment checks the checkout signature and provisions the tenant.
	VerifySubscriptionPayment(ctx context.Context, in SubscriptionVerifyInput) (*ProvisioningResult, error)
	// ResumeProvisioning re-runs provisioning for a verified payment that is still pending.
	ResumeProvisioning(ctx context.Context, gatewayOrderID string) (*ProvisioningResult, error)
	// ProvisionCaptured provisions from a verified webhook. The caller holds the payment row lock in tx.
	ProvisionCaptured(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, paymentID string) (*ProvisioningResult, error)
}

type subscriptionUC struct {
	payments repository.SubscriptionPaymentRepository
	tenants  repository.TenantRepository
	settings repository.TenantSettingsRepository
	roles    repository.UserRoleRepository
	profiles repository.ProfileRepository
	gwConfig repository.GatewayConfigRepository
	plans    *PlanUseCase
	gateway  adapter.PaymentGateway
	tm       repository.TransactionManager
	billing  BillingSettings
	log      *zerolog.Logger
}

// SubscriptionDeps groups the stores touched by provisioning.
type SubscriptionDeps struct {
	Payments repository.SubscriptionPaymentRepository
	Tenants  repository.TenantRepository
	Settings repository.TenantSettingsRepository
	Roles    repository.UserRoleRepository
	Profiles repository.ProfileRepository
	GwConfig repository.GatewayConfigRepository
}

func NewSubscriptionUseCase(
	deps SubscriptionDeps,
	plans *PlanUseCase,
	gateway adapter.PaymentGateway,
	tm repository.TransactionManager,
	billing BillingSettings,
	logger *zerolog.Logger,
) *subscriptionUC {
	return &subscriptionUC{
		payments: deps.Payments,
		tenants:  deps.Tenants,
		settings: deps.Settings,
		roles:    deps.Roles,
		profiles: deps.Profiles,
		gwConfig: deps.GwConfig,
		plans:    plans,
		gateway:  gateway,
		tm:       tm,
		billing:  billing.withDefaults(),
		log:      logger,
	}
}

func (u *subscriptionUC) CreateSubscriptionOrder(ctx context.Context, in SubscriptionOrderInput) (*SubscriptionCheckout, error) {
	if err := requireFields("plan_id", in.PlanID, "user_id", in.UserID, "user_email", in.Signup.Email); err != nil {
		return nil, err
	}
	if err := requireUUIDs("user_id", in.UserID); err != nil {
		return nil, err
	}
	if in.Signup.TenantName() == "" {
		return nil, fmt.Errorf("%w: business_name or restaurant_name is required", domain.ErrInvalidArgument)
	}
	ctx = logging.WithUserID(ctx, in.UserID)
	log := logging.With(ctx, u.log)

	plan, err := u.plans.Purchasable(ctx, in.PlanID)
	if err != nil {
		return nil, err
	}
	cfg, err := platformConfig(ctx, u.gwConfig)
	if err != nil {
		return nil, err
	}
	setupFee := u.billing.DefaultSetupFee
	if cfg.SetupFee != nil && *cfg.SetupFee > 0 {
		setupFee = *cfg.SetupFee
	}
	total := plan.Price() + setupFee

	now := time.Now().UTC()
	gwOrder, err := u.gateway.CreateOrder(ctx, cfg.Credentials(), adapter.CreateOrderRequest{
		AmountMinor: toMinor(total),
		Currency:    u.billing.Currency,
		Receipt:     newReceipt(now, receiptSubscription),
		Notes: map[string]string{
			"plan_id":         in.PlanID,
			"user_id":         in.UserID,
			"user_email":      in.Signup.Email,
			"business_name":   in.Signup.BusinessName,
			"restaurant_name": in.Signup.RestaurantName,
			"payment_type":    string(model.PaymentTypeNewSubscription),
		},
	})
	metrics.IncGatewayOrder("platform", err == nil)
	if err != nil {
		log.Error().Err(err).Msg("subscription gateway order failed")
		return nil, err
	}

	signup := in.Signup
	p := &model.SubscriptionPayment{
		ID:             uuid.NewString(),
		UserID:         in.UserID,
		Plan:           in.PlanID,
		PaymentType:    model.PaymentTypeNewSubscription,
		Amount:         plan.Price(),
		SetupFee:       setupFee,
		Currency:       u.billing.Currency,
		Status:         model.PaymentStatusPending,
		GatewayOrderID: gwOrder.ID,
		Signup:         &signup,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := u.payments.Save(ctx, repository.NoTX, p); err != nil {
		log.Error().Err(err).Str("gateway_order_id", gwOrder.ID).Msg("subscription payment persist failed")
		return nil, err
	}
	metrics.IncPayment(string(p.PaymentType), string(p.Status))

	return &SubscriptionCheckout{
		OrderID:     gwOrder.ID,
		KeyID:       cfg.KeyID,
		AmountMinor: toMinor(total),
		Currency:    u.billing.Currency,
		PlanPrice:   plan.Price(),
		SetupFee:    setupFee,
		Total:       total,
	}, nil
}

func (u *subscriptionUC) VerifySubscriptionPayment(ctx context.Context, in SubscriptionVerifyInput) (*ProvisioningResult, error) {
	if err := requireFields("razorpay_order_id", in.GatewayOrderID, "razorpay_payment_id", in.PaymentID, "razorpay_signature", in.Signature); err != nil {
		return nil, err
	}
	if in.UserID != "" {
		if err := requireUUIDs("user_id", in.UserID); err != nil {
			return nil, err
		}
	}
	ctx = logging.WithGatewayOrderID(logging.WithUserID(ctx, in.UserID), in.GatewayOrderID)
	log := logging.With(ctx, u.log)

	cfg, err := platformConfig(ctx, u.gwConfig)
	if err != nil {
		metrics.IncVerify("subscription", "not_configured")
		return nil, err
	}
	if !security.VerifyPayment(cfg.KeySecret, in.GatewayOrderID, in.PaymentID, in.Signature) {
		metrics.IncVerify("subscription", "bad_signature")
		log.Warn().Msg("subscription payment signature mismatch")
		return nil, domain.ErrInvalidSignature
	}

	// Record the verified ids first so a failed provisioning can be resumed.
	var done *ProvisioningResult
	err = u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByGatewayOrderID(ctx, tx, in.GatewayOrderID)
		if err != nil {
			return err
		}
		if p.PaymentType != model.PaymentTypeNewSubscription {
			return domain.ErrPaymentMismatch
		}
		if in.UserID != "" && in.UserID != p.UserID {
			return domain.ErrPaymentMismatch
		}
		if p.Status == model.PaymentStatusCompleted {
			done = alreadyProvisioned(p)
			return nil
		}
		if !p.Status.CanTransition(model.PaymentStatusCompleted) {
			return fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
		}
		return u.payments.RecordVerification(ctx, tx, in.GatewayOrderID, in.PaymentID, in.Signature)
	})
	if err != nil {
		metrics.IncVerify("subscription", "error")
		return nil, err
	}
	if done != nil {
		metrics.IncVerify("subscription", "noop")
		return done, nil
	}
	metrics.IncVerify("subscription", "ok")

	return u.provisionInTx(ctx, in.GatewayOrderID, in.PaymentID, in.Signup)
}

func (u *subscriptionUC) ResumeProvisioning(ctx context.Context, gatewayOrderID string) (*ProvisioningResult, error) {
	if err := requireFields("order_id", gatewayOrderID); err != nil {
		return nil, err
	}
	ctx = logging.WithGatewayOrderID(ctx, gatewayOrderID)
	log := logging.With(ctx, u.log)

	p, err := u.payments.FindByGatewayOrderID(ctx, repository.NoTX, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	if p.PaymentType != model.PaymentTypeNewSubscription {
		return nil, domain.ErrPaymentMismatch
	}
	if p.Status == model.PaymentStatusCompleted {
		return alreadyProvisioned(p), nil
	}
	if !p.Status.CanTransition(model.PaymentStatusCompleted) {
		return nil, fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
	}
	if !p.Verified() || *p.Signature == "" {
		return nil, domain.ErrNotVerified
	}

	cfg, err := platformConfig(ctx, u.gwConfig)
	if err != nil {
		return nil, err
	}
	if !security.VerifyPayment(cfg.KeySecret, gatewayOrderID, *p.GatewayPaymentID, *p.Signature) {
		log.Warn().Msg("stored signature does not verify against current platform secret")
		return nil, domain.ErrInvalidSignature
	}
	log.Info().Msg("resuming provisioning")
	return u.provisionInTx(ctx, gatewayOrderID, *p.GatewayPaymentID, nil)
}

func (u *subscriptionUC) provisionInTx(ctx context.Context, gatewayOrderID, paymentID string, fill *model.SignupDetails) (*ProvisioningResult, error) {
	var res *ProvisioningResult
	err := u.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		p, err := u.payments.FindByGatewayOrderID(ctx, tx, gatewayOrderID)
		if err != nil {
			return err
		}
		if p.Status == model.PaymentStatusCompleted {
			res = alreadyProvisioned(p)
			return nil
		}
		p.Signup = mergeSignup(p.Signup, fill)
		res, err = u.ProvisionCaptured(ctx, tx, p, paymentID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// ProvisionCaptured creates the tenant, its default settings and the admin role
// binding, then completes the payment. Every step tolerates a previous partial run.
func (u *subscriptionUC) ProvisionCaptured(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, paymentID string) (*ProvisioningResult, error) {
	if p.Status == model.PaymentStatusCompleted {
		return alreadyProvisioned(p), nil
	}
	if !p.Status.CanTransition(model.PaymentStatusCompleted) {
		return nil, fmt.Errorf("%w: payment is %s", domain.ErrInvalidTransition, p.Status)
	}
	if p.PaymentType != model.PaymentTypeNewSubscription {
		return nil, domain.ErrPaymentMismatch
	}
	log := logging.With(ctx, u.log)

	signup := p.Signup
	if signup == nil {
		signup = &model.SignupDetails{}
	}
	plan, err := u.plans.Get(ctx, p.Plan)
	if err != nil && !errors.Is(err, domain.ErrInvalidPlan) {
		return nil, err
	}

	now := time.Now().UTC()
	tenantID, err := u.ensureTenant(ctx, tx, p, signup, now)
	if err != nil {
		metrics.IncProvisioning("tenant_failed")
		log.Error().Err(err).Msg("provisioning aborted: tenant not created")
		return nil, err
	}
	ctx = logging.WithTenantID(ctx, tenantID)
	log = logging.With(ctx, u.log)

	fail := func(step string, err error) (*ProvisioningResult, error) {
		metrics.IncProvisioning("partial")
		log.Error().Err(err).Str("step", step).Msg("provisioning incomplete; resume by gateway order id")
		return nil, fmt.Errorf("provisioning %s: %w", step, err)
	}

	if err := u.settings.CreateDefault(ctx, tx, model.NewTenantSettings(tenantID, plan), signup.RestaurantName); err != nil {
		return fail("settings", err)
	}
	if err := u.roles.Assign(ctx, tx, &model.UserRole{UserID: p.UserID, TenantID: tenantID, Role: model.RoleTenantAdmin}); err != nil {
		return fail("role", err)
	}
	if err := u.profiles.MarkNeedsPasswordSetup(ctx, tx, p.UserID, tenantID); err != nil {
		return fail("profile", err)
	}
	if paymentID != "" {
		if err := u.payments.RecordVerification(ctx, tx, p.GatewayOrderID, paymentID, ""); err != nil {
			return fail("payment", err)
		}
	}
	changed, err := u.payments.MarkCompleted(ctx, tx, p.GatewayOrderID, now)
	if err != nil {
		return fail("payment", err)
	}
	if !changed {
		return fail("payment", domain.ErrPaymentNotPending)
	}

	metrics.IncProvisioning("ok")
	metrics.IncPayment(string(p.PaymentType), string(model.PaymentStatusCompleted))
	metrics.AddPaymentRevenue(p.Currency, p.Total())
	log.Info().Str("plan", p.Plan).Msg("tenant provisioned")
	return &ProvisioningResult{TenantID: tenantID}, nil
}

// ensureTenant returns the tenant attached to p, creating and attaching one if needed.
func (u *subscriptionUC) ensureTenant(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment, signup *model.SignupDetails, now time.Time) (string, error) {
	tenantID := uuid.NewString()
	if p.TenantID != nil && *p.TenantID != "" {
		tenantID = *p.TenantID
		_, err := u.tenants.FindByID(ctx, tx, tenantID)
		if err == nil {
			return tenantID, nil
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
	}

	t := &model.Tenant{
		ID:                    tenantID,
		Name:                  signup.TenantName(),
		Email:                 signup.Email,
		Phone:                 signup.Phone,
		Address:               signup.Address,
		Plan:                  p.Plan,
		SubscriptionStatus:    model.SubscriptionStatusActive,
		SubscriptionStartDate: now,
		SubscriptionEndDate:   model.NextPeriodEnd(now),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := u.tenants.Create(ctx, tx, t); err != nil {
		return "", err
	}
	if err := u.payments.AttachTenant(ctx, tx, p.GatewayOrderID, tenantID); err != nil {
		return "", err
	}
	p.TenantID = &tenantID
	return tenantID, nil
}

func alreadyProvisioned(p *model.SubscriptionPayment) *ProvisioningResult {
	res := &ProvisioningResult{AlreadyProvisioned: true}
	if p.TenantID != nil {
		res.TenantID = *p.TenantID
	}
	return res
}

// mergeSignup fills empty stored fields from the verify request.
func mergeSignup(stored, fill *model.SignupDetails) *model.SignupDetails {
	if fill == nil {
		return stored
	}
	if stored == nil {
		cp := *fill
		return &cp
	}
	out := *stored
	fillEmpty(&out.Email, fill.Email)
	fillEmpty(&out.FullName, fill.FullName)
	fillEmpty(&out.BusinessName, fill.BusinessName)
	fillEmpty(&out.RestaurantName, fill.RestaurantName)
	fillEmpty(&out.Phone, fill.Phone)
	fillEmpty(&out.Address, fill.Address)
	return &out
}

func fillEmpty(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}
