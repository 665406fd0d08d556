package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
)

var _ repository.WebhookEventRepository = (*webhookEventRepo)(nil)

type webhookEventRepo struct{ pool *pgxpool.Pool }

func NewWebhookEventRepo(pool *pgxpool.Pool) *webhookEventRepo {
	return &webhookEventRepo{pool: pool}
}

func (r *webhookEventRepo) Exists(ctx context.Context, tx repository.Tx, eventID string) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM gateway_webhook_events WHERE event_id=$1);`
	row, err := pickRow(ctx, r.pool, tx, q, eventID)
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

// Record is idempotent on event_id.
func (r *webhookEventRepo) Record(ctx context.Context, tx repository.Tx, e *model.WebhookEvent) error {
	const q = `
INSERT INTO gateway_webhook_events (id, event_id, event_type, gateway_order_id, outcome, received_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (event_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, e.ID, e.EventID, e.EventType, e.GatewayOrderID, e.Outcome, e.ReceivedAt)
	return writeErr(err)
}
