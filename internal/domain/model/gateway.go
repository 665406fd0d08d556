package model

import "time"

// GatewayCredentials is the key pair used to open orders and check signatures.
// It is resolved per use and never cached or logged.
type GatewayCredentials struct {
	KeyID     string
	KeySecret string
}

func (c GatewayCredentials) Complete() bool { return c.KeyID != "" && c.KeySecret != "" }

// PlatformGatewayConfig is the platform's own account used for subscription billing.
// KeySecret and WebhookSecret are decrypted on read.
type PlatformGatewayConfig struct {
	ID            string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	SetupFee      *int64
	Active        bool
	UpdatedAt     time.Time
}

func (c *PlatformGatewayConfig) Credentials() GatewayCredentials {
	return GatewayCredentials{KeyID: c.KeyID, KeySecret: c.KeySecret}
}

// TenantGatewaySecret is a tenant's secret material from the restricted store.
type TenantGatewaySecret struct {
	TenantID      string
	KeySecret     string
	WebhookSecret string
}

// WebhookEvent is a received gateway notification, logged for deduplication.
type WebhookEvent struct {
	ID             string
	EventID        string
	EventType      string
	GatewayOrderID string
	Outcome        string
	ReceivedAt     time.Time
}
