package model

import "time"

type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending"   // gateway order opened; awaiting verification
	PaymentStatusCompleted PaymentStatus = "completed" // verified and applied
	PaymentStatusFailed    PaymentStatus = "failed"    // gateway reported failure
)

// Terminal reports whether no further status change is allowed.
func (s PaymentStatus) Terminal() bool {
	return s == PaymentStatusCompleted || s == PaymentStatusFailed
}

// CanTransition reports whether from -> to is allowed. Only pending may move.
func (s PaymentStatus) CanTransition(to PaymentStatus) bool {
	if s != PaymentStatusPending {
		return false
	}
	return to == PaymentStatusCompleted || to == PaymentStatusFailed
}

type PaymentType string

const (
	PaymentTypeNewSubscription PaymentType = "new_subscription"
	PaymentTypeUpgrade         PaymentType = "upgrade"
	PaymentTypeDowngrade       PaymentType = "downgrade"
)

// SignupDetails carries the applicant data collected before a tenant exists.
type SignupDetails struct {
	Email          string `json:"email"`
	FullName       string `json:"full_name"`
	BusinessName   string `json:"business_name"`
	Phone          string `json:"phone"`
	RestaurantName string `json:"restaurant_name"`
	Address        string `json:"address"`
}

// TenantName is the display name for the tenant created from this signup.
func (d *SignupDetails) TenantName() string {
	if d.BusinessName != "" {
		return d.BusinessName
	}
	return d.RestaurantName
}

// SubscriptionPayment records a platform charge: new subscription, upgrade or downgrade.
// Amount and SetupFee are in whole currency units.
type SubscriptionPayment struct {
	ID               string
	TenantID         *string // nil until provisioning creates the tenant
	UserID           string
	Plan             string
	PaymentType      PaymentType
	Amount           int64
	SetupFee         int64
	Currency         string
	Status           PaymentStatus
	GatewayOrderID   string
	GatewayPaymentID *string
	Signature        *string
	Signup           *SignupDetails // new_subscription only
	CreatedAt        time.Time
	UpdatedAt        time.Time
	CompletedAt      *time.Time
}

// Verified reports whether the payment has passed signature verification.
func (p *SubscriptionPayment) Verified() bool {
	return p.GatewayPaymentID != nil && *p.GatewayPaymentID != "" && p.Signature != nil
}

// Total is the charged amount including the one-time setup fee.
func (p *SubscriptionPayment) Total() int64 { return p.Amount + p.SetupFee }
