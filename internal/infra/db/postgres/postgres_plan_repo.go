package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"
)

// Ensure interface compliance
var _ repository.PricePlanRepository = (*PostgresPlanRepo)(nil)

type PostgresPlanRepo struct {
	pool *pgxpool.Pool
}

func NewPostgresPlanRepo(pool *pgxpool.Pool) *PostgresPlanRepo {
	return &PostgresPlanRepo{pool: pool}
}

func (r *PostgresPlanRepo) Save(ctx context.Context, plan *model.PricePlan) error {
	const sql = `
INSERT INTO price_plans (id, name, monthly_price, features, limits, popular, sort_order)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (id) DO UPDATE
  SET name          = EXCLUDED.name,
      monthly_price = EXCLUDED.monthly_price,
      features      = EXCLUDED.features,
      limits        = EXCLUDED.limits,
      popular       = EXCLUDED.popular,
      sort_order    = EXCLUDED.sort_order,
      updated_at    = NOW();
`
	features, err := json.Marshal(plan.Features)
	if err != nil {
		return fmt.Errorf("Save plan: %w", err)
	}
	limits, err := json.Marshal(plan.Limits)
	if err != nil {
		return fmt.Errorf("Save plan: %w", err)
	}
	_, err = r.pool.Exec(ctx, sql,
		plan.ID, plan.Name, plan.MonthlyPrice, features, limits, plan.Popular, plan.SortOrder,
	)
	if err != nil {
		return fmt.Errorf("Save plan: %w", err)
	}
	return nil
}

const planColumns = `id, name, monthly_price, features, limits, popular, sort_order`

func (r *PostgresPlanRepo) FindByID(ctx context.Context, id string) (*model.PricePlan, error) {
	const sql = `SELECT ` + planColumns + ` FROM price_plans WHERE id = $1;`
	p, err := scanPlan(r.pool.QueryRow(ctx, sql, id))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("FindByID plan: %w", err)
	}
	return p, nil
}

func (r *PostgresPlanRepo) ListAll(ctx context.Context) ([]*model.PricePlan, error) {
	const sql = `SELECT ` + planColumns + ` FROM price_plans ORDER BY sort_order, id;`
	rows, err := r.pool.Query(ctx, sql)
	if err != nil {
		return nil, fmt.Errorf("ListAll plans: %w", err)
	}
	defer rows.Close()

	var out []*model.PricePlan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("ListAll plans: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func scanPlan(row pgx.Row) (*model.PricePlan, error) {
	var (
		p                model.PricePlan
		features, limits []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &p.MonthlyPrice, &features, &limits, &p.Popular, &p.SortOrder); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(features, &p.Features); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(limits, &p.Limits); err != nil {
		return nil, err
	}
	return &p, nil
}
