package repository

import (
	"context"
	"time"

	"restaurant-saas/internal/domain/model"
)

// SubscriptionPaymentRepository persists platform billing records. The gateway
// order id is unique and is the match key for every follow-up call.
type SubscriptionPaymentRepository interface {
	Save(ctx context.Context, tx Tx, p *model.SubscriptionPayment) error
	FindByGatewayOrderID(ctx context.Context, tx Tx, gatewayOrderID string) (*model.SubscriptionPayment, error)
	// RecordVerification stores the verified gateway payment id and signature on a pending row.
	RecordVerification(ctx context.Context, tx Tx, gatewayOrderID, paymentID, signature string) error
	AttachTenant(ctx context.Context, tx Tx, gatewayOrderID, tenantID string) error
	// MarkCompleted and MarkFailed only touch rows still pending; they report whether a row changed.
	MarkCompleted(ctx context.Context, tx Tx, gatewayOrderID string, completedAt time.Time) (bool, error)
	MarkFailed(ctx context.Context, tx Tx, gatewayOrderID string) (bool, error)
	// ListStalledProvisioning returns gateway order ids of pending new-subscription
	// payments that were verified but not touched since olderThan, oldest first.
	ListStalledProvisioning(ctx context.Context, tx Tx, olderThan time.Time, limit int) ([]string, error)
	// DeferStalled bumps updated_at on a pending payment so it moves to the back
	// of the stalled queue after a failed resume.
	DeferStalled(ctx context.Context, tx Tx, gatewayOrderID string) error
}
