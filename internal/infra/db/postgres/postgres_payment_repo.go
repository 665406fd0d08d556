package postgres

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
)

var _ repository.SubscriptionPaymentRepository = (*paymentRepo)(nil)

type paymentRepo struct{ pool *pgxpool.Pool }

func NewPaymentRepo(pool *pgxpool.Pool) *paymentRepo {
	return &paymentRepo{pool: pool}
}

const paymentColumns = `id, tenant_id, user_id, plan, payment_type, amount, setup_fee, currency, status,
  gateway_order_id, gateway_payment_id, gateway_signature, signup, created_at, updated_at, completed_at`

func (r *paymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.SubscriptionPayment) error {
	const q = `
INSERT INTO subscription_payments (` + paymentColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`

	var signup []byte
	if p.Signup != nil {
		b, err := json.Marshal(p.Signup)
		if err != nil {
			return domain.ErrInvalidArgument
		}
		signup = b
	}
	_, err := execSQL(ctx, r.pool, tx, q,
		p.ID, p.TenantID, p.UserID, p.Plan, string(p.PaymentType), p.Amount, p.SetupFee, p.Currency, string(p.Status),
		nullIfEmpty(p.GatewayOrderID), p.GatewayPaymentID, p.Signature, signup, p.CreatedAt, p.UpdatedAt, p.CompletedAt)
	return writeErr(err)
}

func (r *paymentRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.SubscriptionPayment, error) {
	q := forUpdate(`SELECT `+paymentColumns+` FROM subscription_payments WHERE gateway_order_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, gatewayOrderID)
	if err != nil {
		return nil, err
	}

	var (
		p                   model.SubscriptionPayment
		paymentType, status string
		orderID             *string
		signup              []byte
	)
	if err := row.Scan(&p.ID, &p.TenantID, &p.UserID, &p.Plan, &paymentType, &p.Amount, &p.SetupFee, &p.Currency, &status,
		&orderID, &p.GatewayPaymentID, &p.Signature, &signup, &p.CreatedAt, &p.UpdatedAt, &p.CompletedAt); err != nil {
		return nil, scanErr(err)
	}
	p.PaymentType = model.PaymentType(paymentType)
	p.Status = model.PaymentStatus(status)
	if orderID != nil {
		p.GatewayOrderID = *orderID
	}
	if len(signup) > 0 {
		p.Signup = new(model.SignupDetails)
		if err := json.Unmarshal(signup, p.Signup); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
	}
	return &p, nil
}

// RecordVerification is a no-op on rows that are no longer pending.
// An empty signature keeps the stored one.
func (r *paymentRepo) RecordVerification(ctx context.Context, tx repository.Tx, gatewayOrderID, paymentID, signature string) error {
	const q = `
UPDATE subscription_payments
   SET gateway_payment_id = $2,
       gateway_signature  = COALESCE($3, gateway_signature),
       updated_at         = NOW()
 WHERE gateway_order_id = $1
   AND status = 'pending';`
	_, err := execSQL(ctx, r.pool, tx, q, gatewayOrderID, paymentID, nullIfEmpty(signature))
	return writeErr(err)
}

func (r *paymentRepo) AttachTenant(ctx context.Context, tx repository.Tx, gatewayOrderID, tenantID string) error {
	const q = `
UPDATE subscription_payments
   SET tenant_id  = $2,
       updated_at = NOW()
 WHERE gateway_order_id = $1
   AND (tenant_id IS NULL OR tenant_id = $2);`
	tag, err := execSQL(ctx, r.pool, tx, q, gatewayOrderID, tenantID)
	if err != nil {
		return writeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrPaymentMismatch
	}
	return nil
}

// MarkCompleted moves a pending row to completed. It reports false when the
// row was already terminal.
func (r *paymentRepo) MarkCompleted(ctx context.Context, tx repository.Tx, gatewayOrderID string, completedAt time.Time) (bool, error) {
	const q = `
UPDATE subscription_payments
   SET status       = 'completed',
       completed_at = $2,
       updated_at   = NOW()
 WHERE gateway_order_id = $1
   AND status = 'pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, gatewayOrderID, completedAt)
	if err != nil {
		return false, writeErr(err)
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *paymentRepo) MarkFailed(ctx context.Context, tx repository.Tx, gatewayOrderID string) (bool, error) {
	const q = `
UPDATE subscription_payments
   SET status     = 'failed',
       updated_at = NOW()
 WHERE gateway_order_id = $1
   AND status = 'pending';`
	tag, err := execSQL(ctx, r.pool, tx, q, gatewayOrderID)
	if err != nil {
		return false, writeErr(err)
	}
	return tag.RowsAffected() >= 1, nil
}

func (r *paymentRepo) ListStalledProvisioning(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]string, error) {
	const q = `
SELECT gateway_order_id
  FROM subscription_payments
 WHERE payment_type = 'new_subscription'
   AND status = 'pending'
   AND gateway_payment_id IS NOT NULL
   AND gateway_signature IS NOT NULL
   AND updated_at < $1
 ORDER BY updated_at
 LIMIT $2;`
	ex, err := getExecutor(r.pool, tx)
	if err != nil {
		return nil, err
	}
	rows, err := ex.Query(ctx, q, olderThan, limit)
	if err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, domain.ErrReadDatabaseRow
		}
		ids = append(ids, id)
	}
	if rows.Err() != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	return ids, nil
}

func (r *paymentRepo) DeferStalled(ctx context.Context, tx repository.Tx, gatewayOrderID string) error {
	const q = `
UPDATE subscription_payments
   SET updated_at = NOW()
 WHERE gateway_order_id = $1
   AND status = 'pending';`
	_, err := execSQL(ctx, r.pool, tx, q, gatewayOrderID)
	return writeErr(err)
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
