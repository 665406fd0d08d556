package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Tenant is a restaurant on the platform.
type Tenant struct {
	ID                    string
	Name                  string
	Email                 string
	Phone                 string
	Address               string
	Plan                  string
	SubscriptionStatus    string
	SubscriptionStartDate time.Time
	SubscriptionEndDate   time.Time
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

const SubscriptionStatusActive = "active"

// subscriptionPeriod is the length of one billing cycle.
const subscriptionPeriod = 30 * 24 * time.Hour

// NextPeriodEnd returns the end of a billing cycle starting at from.
func NextPeriodEnd(from time.Time) time.Time { return from.Add(subscriptionPeriod) }

// TenantSettings is per-tenant configuration. KeySecret is never loaded here.
type TenantSettings struct {
	TenantID        string
	PaymentsEnabled bool
	ServiceCharge   decimal.Decimal // percent
	GatewayKeyID    string
	TableCount      int
	MerchantUPI     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

const defaultMerchantUPI = "merchant@upi"

// NewTenantSettings returns the defaults seeded for a newly provisioned tenant.
func NewTenantSettings(tenantID string, plan *PricePlan) *TenantSettings {
	return &TenantSettings{
		TenantID:        tenantID,
		PaymentsEnabled: true,
		ServiceCharge:   decimal.Zero,
		TableCount:      plan.DefaultTableCount(),
		MerchantUPI:     defaultMerchantUPI,
	}
}

// UserRole binds a user to a role within a tenant.
type UserRole struct {
	UserID   string
	TenantID string
	Role     Role
}
