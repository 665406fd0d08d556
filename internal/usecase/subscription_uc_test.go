//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
	"restaurant-saas/internal/usecase"
)

type subscriptionTestDeps struct {
	payments *MockPaymentRepo
	tenants  *MockTenantRepo
	settings *MockTenantSettingsRepo
	roles    *MockUserRoleRepo
	profiles *MockProfileRepo
	gwConfig *MockGatewayConfigRepo
	gateway  *MockPaymentGateway
	uc       usecase.SubscriptionUseCase
}

func int64p(v int64) *int64 { return &v }

func newSubscriptionDeps(setupFee *int64) *subscriptionTestDeps {
	d := &subscriptionTestDeps{
		payments: NewMockPaymentRepo(),
		tenants:  NewMockTenantRepo(),
		settings: NewMockTenantSettingsRepo(),
		roles:    &MockUserRoleRepo{},
		profiles: &MockProfileRepo{},
		gwConfig: NewMockGatewayConfigRepo(),
		gateway:  &MockPaymentGateway{},
	}
	d.gwConfig.Platform = &model.PlatformGatewayConfig{ID: "cfg", KeyID: "rzp_platform", KeySecret: platformSecret, SetupFee: setupFee, Active: true}
	d.uc = usecase.NewSubscriptionUseCase(
		usecase.SubscriptionDeps{
			Payments: d.payments,
			Tenants:  d.tenants,
			Settings: d.settings,
			Roles:    d.roles,
			Profiles: d.profiles,
			GwConfig: d.gwConfig,
		},
		usecase.NewPlanUseCase(NewMockPlanRepo()),
		d.gateway,
		NewMockTxManager(),
		usecase.BillingSettings{},
		newTestLogger(),
	)
	return d
}

func signupInput(plan string) usecase.SubscriptionOrderInput {
	return usecase.SubscriptionOrderInput{
		PlanID: plan,
		UserID: testUserID,
		Signup: model.SignupDetails{
			Email:          "owner@spiceroute.in",
			BusinessName:   "Spice Route Pvt Ltd",
			RestaurantName: "Spice Route",
			Phone:          "+919800000000",
		},
	}
}

func TestCreateSubscriptionOrder_SetupFee(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name      string
		fee       *int64
		plan      string
		wantFee   int64
		wantTotal int64
	}{
		{"platform fee", int64p(1200), model.PlanStandard, 1200, 1450},
		{"default fee when unset", nil, model.PlanStandard, 1200, 1450},
		{"custom fee", int64p(500), model.PlanPro, 500, 1100},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newSubscriptionDeps(tc.fee)
			out, err := d.uc.CreateSubscriptionOrder(ctx, signupInput(tc.plan))
			if err != nil {
				t.Fatalf("CreateSubscriptionOrder: %v", err)
			}
			if out.SetupFee != tc.wantFee || out.Total != tc.wantTotal || out.AmountMinor != tc.wantTotal*100 {
				t.Fatalf("fee/total/amount = %d/%d/%d", out.SetupFee, out.Total, out.AmountMinor)
			}
			if d.gateway.Calls[0].AmountMinor != tc.wantTotal*100 {
				t.Errorf("gateway charged %d", d.gateway.Calls[0].AmountMinor)
			}
			p := d.payments.Get(out.OrderID)
			if p == nil || p.Status != model.PaymentStatusPending || p.PaymentType != model.PaymentTypeNewSubscription {
				t.Fatalf("unexpected payment %+v", p)
			}
			if p.TenantID != nil {
				t.Error("tenant must not exist before payment")
			}
			if p.Signup == nil || p.Signup.RestaurantName != "Spice Route" {
				t.Error("signup details not stored")
			}
		})
	}
}

func TestCreateSubscriptionOrder_Validation(t *testing.T) {
	ctx := context.Background()

	cases := []struct {
		name string
		in   func() usecase.SubscriptionOrderInput
		want error
	}{
		{"missing email", func() usecase.SubscriptionOrderInput {
			in := signupInput(model.PlanStandard)
			in.Signup.Email = ""
			return in
		}, domain.ErrInvalidArgument},
		{"missing names", func() usecase.SubscriptionOrderInput {
			in := signupInput(model.PlanStandard)
			in.Signup.BusinessName, in.Signup.RestaurantName = "", ""
			return in
		}, domain.ErrInvalidArgument},
		{"user id not a uuid", func() usecase.SubscriptionOrderInput {
			in := signupInput(model.PlanStandard)
			in.UserID = "user-1"
			return in
		}, domain.ErrInvalidArgument},
		{"unknown plan", func() usecase.SubscriptionOrderInput { return signupInput("gold") }, domain.ErrInvalidPlan},
		{"enterprise", func() usecase.SubscriptionOrderInput { return signupInput(model.PlanEnterprise) }, domain.ErrPlanNotPurchasable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			d := newSubscriptionDeps(nil)
			if _, err := d.uc.CreateSubscriptionOrder(ctx, tc.in()); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if d.gateway.CallCount() != 0 {
				t.Error("gateway contacted on invalid request")
			}
		})
	}
}

func openSubscription(t *testing.T, d *subscriptionTestDeps, plan string) string {
	t.Helper()
	out, err := d.uc.CreateSubscriptionOrder(context.Background(), signupInput(plan))
	if err != nil {
		t.Fatalf("CreateSubscriptionOrder: %v", err)
	}
	return out.OrderID
}

func TestVerifySubscriptionPayment_Provisions(t *testing.T) {
	ctx := context.Background()
	d := newSubscriptionDeps(nil)
	orderID := openSubscription(t, d, model.PlanPro)
	sig := signPayment(platformSecret, orderID, "pay_1")

	res, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{
		UserID: testUserID, GatewayOrderID: orderID, PaymentID: "pay_1", Signature: sig,
	})
	if err != nil {
		t.Fatalf("VerifySubscriptionPayment: %v", err)
	}
	if res.TenantID == "" || res.AlreadyProvisioned {
		t.Fatalf("unexpected result %+v", res)
	}

	tenant := d.tenants.Get(res.TenantID)
	if tenant == nil {
		t.Fatal("tenant not created")
	}
	if tenant.Plan != model.PlanPro || tenant.Name != "Spice Route Pvt Ltd" || tenant.SubscriptionStatus != model.SubscriptionStatusActive {
		t.Errorf("unexpected tenant %+v", tenant)
	}
	if left := time.Until(tenant.SubscriptionEndDate); left < 29*24*time.Hour || left > 31*24*time.Hour {
		t.Errorf("end date not ~30 days out: %v", left)
	}

	s, err := d.settings.FindByTenantID(ctx, repository.NoTX, res.TenantID)
	if err != nil {
		t.Fatalf("settings not created: %v", err)
	}
	if s.TableCount != 10 || !s.ServiceCharge.IsZero() || s.MerchantUPI == "" {
		t.Errorf("unexpected settings %+v", s)
	}
	if len(d.roles.Roles) != 1 || d.roles.Roles[0] != (model.UserRole{UserID: testUserID, TenantID: res.TenantID, Role: model.RoleTenantAdmin}) {
		t.Errorf("unexpected roles %+v", d.roles.Roles)
	}
	if d.profiles.Marked[testUserID] != res.TenantID {
		t.Error("profile not flagged for password setup")
	}

	p := d.payments.Get(orderID)
	if p.Status != model.PaymentStatusCompleted || p.TenantID == nil || *p.TenantID != res.TenantID {
		t.Fatalf("payment not completed: %+v", p)
	}
	if p.Signature == nil || *p.Signature != sig {
		t.Error("signature not stored")
	}
}

func TestVerifySubscriptionPayment_ReplayIsNoop(t *testing.T) {
	ctx := context.Background()
	d := newSubscriptionDeps(nil)
	orderID := openSubscription(t, d, model.PlanStandard)
	in := usecase.SubscriptionVerifyInput{UserID: testUserID, GatewayOrderID: orderID, PaymentID: "pay_1", Signature: signPayment(platformSecret, orderID, "pay_1")}

	first, err := d.uc.VerifySubscriptionPayment(ctx, in)
	if err != nil {
		t.Fatalf("first verify: %v", err)
	}
	second, err := d.uc.VerifySubscriptionPayment(ctx, in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if !second.AlreadyProvisioned || second.TenantID != first.TenantID {
		t.Fatalf("unexpected replay result %+v", second)
	}
	if d.tenants.Count() != 1 || len(d.roles.Roles) != 1 {
		t.Fatalf("replay created duplicates: tenants=%d roles=%d", d.tenants.Count(), len(d.roles.Roles))
	}
}

func TestVerifySubscriptionPayment_Rejections(t *testing.T) {
	ctx := context.Background()

	t.Run("bad signature creates nothing", func(t *testing.T) {
		d := newSubscriptionDeps(nil)
		orderID := openSubscription(t, d, model.PlanStandard)
		_, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{
			UserID: testUserID, GatewayOrderID: orderID, PaymentID: "pay_1", Signature: signPayment("forged", orderID, "pay_1"),
		})
		if !errors.Is(err, domain.ErrInvalidSignature) {
			t.Fatalf("expected ErrInvalidSignature, got %v", err)
		}
		if d.tenants.Count() != 0 || d.payments.Get(orderID).Status != model.PaymentStatusPending {
			t.Fatal("state mutated on bad signature")
		}
	})

	t.Run("no platform secret is a hard failure", func(t *testing.T) {
		d := newSubscriptionDeps(nil)
		orderID := openSubscription(t, d, model.PlanStandard)
		d.gwConfig.Platform = nil
		_, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{
			GatewayOrderID: orderID, PaymentID: "pay_1", Signature: "00",
		})
		if !errors.Is(err, domain.ErrGatewayNotConfigured) {
			t.Fatalf("expected ErrGatewayNotConfigured, got %v", err)
		}
	})

	t.Run("other user's payment", func(t *testing.T) {
		d := newSubscriptionDeps(nil)
		orderID := openSubscription(t, d, model.PlanStandard)
		_, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{
			UserID: "2c4e6a8b-0d1f-4a3c-9e5b-7d9f1b3d5f70", GatewayOrderID: orderID, PaymentID: "pay_1", Signature: signPayment(platformSecret, orderID, "pay_1"),
		})
		if !errors.Is(err, domain.ErrPaymentMismatch) {
			t.Fatalf("expected ErrPaymentMismatch, got %v", err)
		}
		if d.tenants.Count() != 0 {
			t.Fatal("tenant created for mismatched user")
		}
	})

	t.Run("user id not a uuid", func(t *testing.T) {
		d := newSubscriptionDeps(nil)
		orderID := openSubscription(t, d, model.PlanStandard)
		_, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{
			UserID: "intruder", GatewayOrderID: orderID, PaymentID: "pay_1", Signature: signPayment(platformSecret, orderID, "pay_1"),
		})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
		if p := d.payments.Get(orderID); p.GatewayPaymentID != nil {
			t.Fatal("verification recorded for invalid user id")
		}
	})

	t.Run("missing fields", func(t *testing.T) {
		d := newSubscriptionDeps(nil)
		_, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{GatewayOrderID: "order_x"})
		if !errors.Is(err, domain.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestProvisioning_PartialFailureCanBeResumed(t *testing.T) {
	ctx := context.Background()
	d := newSubscriptionDeps(nil)
	orderID := openSubscription(t, d, model.PlanStandard)
	sig := signPayment(platformSecret, orderID, "pay_1")

	roleErr := errors.New("role insert failed")
	d.roles.AssignFunc = func(ctx context.Context, tx repository.Tx, r *model.UserRole) error { return roleErr }

	_, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{
		UserID: testUserID, GatewayOrderID: orderID, PaymentID: "pay_1", Signature: sig,
	})
	if !errors.Is(err, roleErr) {
		t.Fatalf("expected role failure, got %v", err)
	}
	p := d.payments.Get(orderID)
	if p.Status != model.PaymentStatusPending || !p.Verified() {
		t.Fatalf("expected pending verified payment, got %+v", p)
	}
	if p.TenantID == nil {
		t.Fatal("tenant id must be attached right after creation")
	}
	firstTenant := *p.TenantID

	d.roles.AssignFunc = nil
	res, err := d.uc.ResumeProvisioning(ctx, orderID)
	if err != nil {
		t.Fatalf("ResumeProvisioning: %v", err)
	}
	if res.TenantID != firstTenant {
		t.Errorf("resume created a second tenant: %s vs %s", res.TenantID, firstTenant)
	}
	if d.tenants.Count() != 1 || len(d.roles.Roles) != 1 {
		t.Fatalf("tenants=%d roles=%d", d.tenants.Count(), len(d.roles.Roles))
	}
	if d.payments.Get(orderID).Status != model.PaymentStatusCompleted {
		t.Fatal("payment not completed after resume")
	}

	again, err := d.uc.ResumeProvisioning(ctx, orderID)
	if err != nil || !again.AlreadyProvisioned {
		t.Fatalf("second resume: %+v %v", again, err)
	}
}

func TestProvisioning_TenantFailureAbortsBeforeLaterSteps(t *testing.T) {
	ctx := context.Background()
	d := newSubscriptionDeps(nil)
	orderID := openSubscription(t, d, model.PlanStandard)
	d.tenants.CreateFunc = func(ctx context.Context, tx repository.Tx, tn *model.Tenant) error { return domain.ErrOperationFailed }

	_, err := d.uc.VerifySubscriptionPayment(ctx, usecase.SubscriptionVerifyInput{
		UserID: testUserID, GatewayOrderID: orderID, PaymentID: "pay_1", Signature: signPayment(platformSecret, orderID, "pay_1"),
	})
	if !errors.Is(err, domain.ErrOperationFailed) {
		t.Fatalf("expected ErrOperationFailed, got %v", err)
	}
	if len(d.roles.Roles) != 0 || len(d.profiles.Marked) != 0 {
		t.Fatal("later steps ran after tenant failure")
	}
	if len(d.settings.data) != 0 {
		t.Fatal("orphan settings created")
	}
}

func TestResumeProvisioning_RequiresVerifiedPayment(t *testing.T) {
	ctx := context.Background()
	d := newSubscriptionDeps(nil)
	orderID := openSubscription(t, d, model.PlanStandard)

	if _, err := d.uc.ResumeProvisioning(ctx, orderID); !errors.Is(err, domain.ErrNotVerified) {
		t.Fatalf("expected ErrNotVerified, got %v", err)
	}

	// a recorded signature that no longer matches the platform secret
	if err := d.payments.RecordVerification(ctx, repository.NoTX, orderID, "pay_1", signPayment("rotated", orderID, "pay_1")); err != nil {
		t.Fatal(err)
	}
	if _, err := d.uc.ResumeProvisioning(ctx, orderID); !errors.Is(err, domain.ErrInvalidSignature) {
		t.Fatalf("expected ErrInvalidSignature, got %v", err)
	}
	if d.tenants.Count() != 0 {
		t.Fatal("tenant created without a valid signature")
	}
}
