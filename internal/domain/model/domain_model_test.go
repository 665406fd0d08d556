//go:build !integration

package model

import (
	"testing"
	"time"
)

// --- Plan Tests ---

func TestDefaultCatalog(t *testing.T) {
	catalog := DefaultCatalog()
	if len(catalog) != 4 {
		t.Fatalf("expected 4 plans, got %d", len(catalog))
	}

	want := map[string]int64{PlanStandard: 250, PlanPro: 600, PlanPremium: 850, PlanEnterprise: 0}
	for _, p := range catalog {
		if got := p.Price(); got != want[p.ID] {
			t.Errorf("plan %s: expected price %d, got %d", p.ID, want[p.ID], got)
		}
	}

	t.Run("enterprise is not purchasable", func(t *testing.T) {
		ent := catalog[3]
		if ent.Purchasable() {
			t.Error("expected enterprise to require contact sales")
		}
		if ent.DefaultTableCount() != defaultTableCount {
			t.Errorf("expected unlimited plan to default to %d tables, got %d", defaultTableCount, ent.DefaultTableCount())
		}
	})

	t.Run("table count follows tier", func(t *testing.T) {
		for i, n := range []int{5, 10, 25} {
			if got := catalog[i].DefaultTableCount(); got != n {
				t.Errorf("plan %s: expected %d tables, got %d", catalog[i].ID, n, got)
			}
		}
	})

}

// --- Subscription Payment Tests ---

func TestPaymentStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to PaymentStatus
		ok       bool
	}{
		{PaymentStatusPending, PaymentStatusCompleted, true},
		{PaymentStatusPending, PaymentStatusFailed, true},
		{PaymentStatusCompleted, PaymentStatusPending, false},
		{PaymentStatusCompleted, PaymentStatusFailed, false},
		{PaymentStatusFailed, PaymentStatusCompleted, false},
		{PaymentStatusPending, PaymentStatusPending, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransition(tc.to); got != tc.ok {
			t.Errorf("%s -> %s: expected %v, got %v", tc.from, tc.to, tc.ok, got)
		}
	}
	if !PaymentStatusCompleted.Terminal() || !PaymentStatusFailed.Terminal() || PaymentStatusPending.Terminal() {
		t.Error("unexpected terminal classification")
	}
}

func TestSubscriptionPaymentVerified(t *testing.T) {
	p := &SubscriptionPayment{Amount: 250, SetupFee: 1200}
	if p.Verified() {
		t.Error("payment without gateway ids must not be verified")
	}
	pid, sig := "pay_1", "abc"
	p.GatewayPaymentID, p.Signature = &pid, &sig
	if !p.Verified() {
		t.Error("expected payment to be verified")
	}
	if p.Total() != 1450 {
		t.Errorf("expected total 1450, got %d", p.Total())
	}
}

// --- Order Tests ---

func TestOrderPaymentTransitions(t *testing.T) {
	allowed := map[[2]OrderPaymentStatus]bool{
		{OrderPaymentUnpaid, OrderPaymentAuthorized}: true,
		{OrderPaymentUnpaid, OrderPaymentPaid}:       true,
		{OrderPaymentUnpaid, OrderPaymentFailed}:     true,
		{OrderPaymentAuthorized, OrderPaymentPaid}:   true,
	}
	all := []OrderPaymentStatus{OrderPaymentUnpaid, OrderPaymentAuthorized, OrderPaymentPaid, OrderPaymentFailed}
	for _, from := range all {
		for _, to := range all {
			if got := from.CanTransition(to); got != allowed[[2]OrderPaymentStatus{from, to}] {
				t.Errorf("%s -> %s: got %v", from, to, got)
			}
		}
	}
}

func TestOrderStatusTransitions(t *testing.T) {
	if !OrderStatusPending.CanTransition(OrderStatusAccepted) {
		t.Error("pending -> accepted must be allowed")
	}
	if OrderStatusCooking.CanTransition(OrderStatusPending) {
		t.Error("cooking -> pending must not be allowed")
	}
	if !OrderStatusReady.CanTransition(OrderStatusRejected) {
		t.Error("non-terminal status must be rejectable")
	}
	if OrderStatusCompleted.CanTransition(OrderStatusRejected) {
		t.Error("completed is terminal")
	}
	if OrderStatus("served").Valid() {
		t.Error("unknown status must be invalid")
	}
}

// --- Plan Change Tests ---

func TestPlanChangeKind(t *testing.T) {
	if PlanChangeKind(250, 600) != PaymentTypeUpgrade {
		t.Error("250 -> 600 must be an upgrade")
	}
	if PlanChangeKind(600, 250) != PaymentTypeDowngrade {
		t.Error("600 -> 250 must be a downgrade")
	}
	if PlanChangeKind(600, 600) != PaymentTypeDowngrade {
		t.Error("lateral move must not require payment")
	}
}

func TestPlanChangeStates(t *testing.T) {
	if !PlanChangeInitiated.CanTransition(PlanChangeAwaitingPayment) {
		t.Error("INITIATED -> AWAITING_PAYMENT must be allowed")
	}
	if PlanChangeAwaitingPayment.CanTransition(PlanChangeDowngradeCommitted) {
		t.Error("AWAITING_PAYMENT -> DOWNGRADE_COMMITTED must not be allowed")
	}
	if !PlanChangeAwaitingPayment.CanTransition(PlanChangeUpgradeCommitted) {
		t.Error("AWAITING_PAYMENT -> UPGRADE_COMMITTED must be allowed")
	}
	for _, to := range []PlanChangeState{PlanChangeAwaitingPayment, PlanChangeUpgradeCommitted, PlanChangeFailed} {
		if PlanChangeUpgradeCommitted.CanTransition(to) || PlanChangeDowngradeCommitted.CanTransition(to) {
			t.Errorf("committed states must not move to %s", to)
		}
	}

	p := &SubscriptionPayment{PaymentType: PaymentTypeUpgrade, Status: PaymentStatusPending}
	if PlanChangeStateOf(p) != PlanChangeAwaitingPayment {
		t.Errorf("expected AWAITING_PAYMENT, got %s", PlanChangeStateOf(p))
	}
	p.Status = PaymentStatusCompleted
	if PlanChangeStateOf(p) != PlanChangeUpgradeCommitted {
		t.Errorf("expected UPGRADE_COMMITTED, got %s", PlanChangeStateOf(p))
	}
}

// --- Tenant Tests ---

func TestNewTenantSettings(t *testing.T) {
	pro := DefaultCatalog()[1]
	s := NewTenantSettings("t1", pro)
	if s.TableCount != 10 {
		t.Errorf("expected 10 tables, got %d", s.TableCount)
	}
	if !s.ServiceCharge.IsZero() {
		t.Errorf("expected zero service charge, got %s", s.ServiceCharge)
	}
	if s.MerchantUPI != defaultMerchantUPI {
		t.Errorf("expected placeholder merchant id, got %s", s.MerchantUPI)
	}

	now := time.Now()
	if d := NextPeriodEnd(now).Sub(now); d != 30*24*time.Hour {
		t.Errorf("expected 30 day period, got %v", d)
	}
}
