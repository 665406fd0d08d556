package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
)

var _ repository.OrderRepository = (*orderRepo)(nil)

type orderRepo struct{ pool *pgxpool.Pool }

func NewOrderRepo(pool *pgxpool.Pool) *orderRepo { return &orderRepo{pool: pool} }

const orderColumns = `id, tenant_id, table_id, items, subtotal, service_charge_rate, service_charge_amount, total,
  status, payment_status, gateway_order_id, gateway_payment_id, gateway_signature, paid_at, created_at, updated_at`

func (r *orderRepo) Save(ctx context.Context, tx repository.Tx, o *model.Order) error {
	const q = `INSERT INTO orders (` + orderColumns + `)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16);`
	items, err := json.Marshal(o.Items)
	if err != nil {
		return domain.ErrInvalidArgument
	}
	_, err = execSQL(ctx, r.pool, tx, q,
		o.ID, o.TenantID, o.TableID, items, o.Subtotal, o.ServiceChargeRate, o.ServiceChargeAmount, o.Total,
		string(o.Status), string(o.PaymentStatus), nullIfEmpty(o.GatewayOrderID), o.GatewayPaymentID, o.GatewaySignature,
		o.PaidAt, o.CreatedAt, o.UpdatedAt)
	return writeErr(err)
}

func (r *orderRepo) FindByGatewayOrderID(ctx context.Context, tx repository.Tx, gatewayOrderID string) (*model.Order, error) {
	q := forUpdate(`SELECT `+orderColumns+` FROM orders WHERE gateway_order_id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, gatewayOrderID)
	if err != nil {
		return nil, err
	}
	var (
		o                     model.Order
		items                 []byte
		status, paymentStatus string
		orderID               *string
	)
	if err := row.Scan(&o.ID, &o.TenantID, &o.TableID, &items, &o.Subtotal, &o.ServiceChargeRate, &o.ServiceChargeAmount,
		&o.Total, &status, &paymentStatus, &orderID, &o.GatewayPaymentID, &o.GatewaySignature, &o.PaidAt,
		&o.CreatedAt, &o.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, domain.ErrReadDatabaseRow
	}
	o.Status = model.OrderStatus(status)
	o.PaymentStatus = model.OrderPaymentStatus(paymentStatus)
	if !o.Status.Valid() || !o.PaymentStatus.Valid() {
		return nil, domain.ErrReadDatabaseRow
	}
	if orderID != nil {
		o.GatewayOrderID = *orderID
	}
	return &o, nil
}

// UpdatePayment applies u only while the stored payment_status still equals u.From.
func (r *orderRepo) UpdatePayment(ctx context.Context, tx repository.Tx, orderID string, u model.PaymentUpdate) error {
	if !u.From.CanTransition(u.PaymentStatus) {
		return fmt.Errorf("%w: payment_status %s -> %s", domain.ErrInvalidTransition, u.From, u.PaymentStatus)
	}
	const q = `
UPDATE orders
   SET payment_status     = $2,
       status             = COALESCE($3, status),
       gateway_payment_id = COALESCE(NULLIF($4, ''), gateway_payment_id),
       gateway_signature  = COALESCE($5, gateway_signature),
       paid_at            = COALESCE($6, paid_at),
       updated_at         = NOW()
 WHERE id = $1
   AND payment_status = $7;`
	var status *string
	if u.Status != nil {
		s := string(*u.Status)
		status = &s
	}
	tag, err := execSQL(ctx, r.pool, tx, q, orderID, string(u.PaymentStatus), status, u.GatewayPaymentID,
		u.GatewaySignature, u.PaidAt, string(u.From))
	if err != nil {
		return writeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: order %s is not %s", domain.ErrInvalidTransition, orderID, u.From)
	}
	return nil
}
