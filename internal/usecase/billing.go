package usecase

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
)

// BillingSettings are the non-secret knobs shared by the payment use cases.
type BillingSettings struct {
	Currency        string
	DefaultSetupFee int64
	// AllowUnverifiedWebhooks accepts order webhooks for tenants that have no webhook secret.
	AllowUnverifiedWebhooks bool
}

func (s BillingSettings) withDefaults() BillingSettings {
	if s.Currency == "" {
		s.Currency = "INR"
	}
	if s.DefaultSetupFee <= 0 {
		s.DefaultSetupFee = 1200
	}
	return s
}

// Receipt prefixes sent to the gateway.
const (
	receiptSubscription = "sub"
	receiptUpgrade      = "upgrade"
	receiptTable        = "table"
	maxReceiptLen       = 40
)

// newReceipt returns a sortable, unique receipt such as "upgrade_01J...".
func newReceipt(now time.Time, parts ...string) string {
	id := ulid.MustNew(ulid.Timestamp(now), rand.Reader).String()
	r := ""
	for _, p := range parts {
		r += p + "_"
	}
	r += id
	if len(r) > maxReceiptLen {
		r = r[len(r)-maxReceiptLen:]
	}
	return r
}

// toMinor converts whole currency units to minor units.
func toMinor(amount int64) int64 { return amount * 100 }

// platformConfig loads the active platform account. It is read on every call.
func platformConfig(ctx context.Context, repo repository.GatewayConfigRepository) (*model.PlatformGatewayConfig, error) {
	cfg, err := repo.FindActivePlatformConfig(ctx)
	if err != nil {
		return nil, err
	}
	if cfg == nil || !cfg.Credentials().Complete() {
		return nil, domain.ErrGatewayNotConfigured
	}
	return cfg, nil
}

// requireFields returns ErrInvalidArgument naming the first empty field.
func requireFields(kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if kv[i+1] == "" {
			return fmt.Errorf("%w: %s is required", domain.ErrInvalidArgument, kv[i])
		}
	}
	return nil
}

// requireUUIDs returns ErrInvalidArgument naming the first value that is not a UUID.
func requireUUIDs(kv ...string) error {
	for i := 0; i+1 < len(kv); i += 2 {
		if _, err := uuid.Parse(kv[i+1]); err != nil {
			return fmt.Errorf("%w: %s must be a UUID", domain.ErrInvalidArgument, kv[i])
		}
	}
	return nil
}
