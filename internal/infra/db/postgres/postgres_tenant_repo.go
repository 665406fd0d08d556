package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/shopspring/decimal"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
)

var (
	_ repository.TenantRepository         = (*tenantRepo)(nil)
	_ repository.TenantSettingsRepository = (*tenantSettingsRepo)(nil)
	_ repository.UserRoleRepository       = (*userRoleRepo)(nil)
	_ repository.ProfileRepository        = (*profileRepo)(nil)
)

type tenantRepo struct{ pool *pgxpool.Pool }

func NewTenantRepo(pool *pgxpool.Pool) *tenantRepo { return &tenantRepo{pool: pool} }

func (r *tenantRepo) Create(ctx context.Context, tx repository.Tx, t *model.Tenant) error {
	const q = `
INSERT INTO tenants (id, name, email, phone, address, plan, subscription_status,
                     subscription_start_date, subscription_end_date, is_active, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,TRUE,$10,$11);`
	_, err := execSQL(ctx, r.pool, tx, q, t.ID, t.Name, t.Email, t.Phone, t.Address, t.Plan, t.SubscriptionStatus,
		t.SubscriptionStartDate, t.SubscriptionEndDate, t.CreatedAt, t.UpdatedAt)
	return writeErr(err)
}

func (r *tenantRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.Tenant, error) {
	q := forUpdate(`
SELECT id, name, email, phone, address, plan, subscription_status,
       subscription_start_date, subscription_end_date, created_at, updated_at
  FROM tenants WHERE id=$1`, tx)
	row, err := pickRow(ctx, r.pool, tx, q, id)
	if err != nil {
		return nil, err
	}
	var t model.Tenant
	if err := row.Scan(&t.ID, &t.Name, &t.Email, &t.Phone, &t.Address, &t.Plan, &t.SubscriptionStatus,
		&t.SubscriptionStartDate, &t.SubscriptionEndDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	return &t, nil
}

func (r *tenantRepo) UpdatePlan(ctx context.Context, tx repository.Tx, tenantID, plan string, start *time.Time, end time.Time) error {
	const q = `
UPDATE tenants
   SET plan                    = $2,
       subscription_start_date = COALESCE($3, subscription_start_date),
       subscription_end_date   = $4,
       subscription_status     = 'active',
       updated_at              = NOW()
 WHERE id = $1;`
	tag, err := execSQL(ctx, r.pool, tx, q, tenantID, plan, start, end)
	if err != nil {
		return writeErr(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type tenantSettingsRepo struct{ pool *pgxpool.Pool }

func NewTenantSettingsRepo(pool *pgxpool.Pool) *tenantSettingsRepo {
	return &tenantSettingsRepo{pool: pool}
}

func (r *tenantSettingsRepo) CreateDefault(ctx context.Context, tx repository.Tx, s *model.TenantSettings, restaurantName string) error {
	const q = `
INSERT INTO tenant_settings (tenant_id, restaurant_name, payments_enabled, service_charge, gateway_key_id, table_count, merchant_upi)
VALUES ($1,$2,$3,$4,$5,$6,$7)
ON CONFLICT (tenant_id) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, s.TenantID, restaurantName, s.PaymentsEnabled, s.ServiceCharge,
		s.GatewayKeyID, s.TableCount, s.MerchantUPI)
	return writeErr(err)
}

func (r *tenantSettingsRepo) FindByTenantID(ctx context.Context, tx repository.Tx, tenantID string) (*model.TenantSettings, error) {
	const q = `
SELECT tenant_id, payments_enabled, service_charge, gateway_key_id, table_count, merchant_upi, created_at, updated_at
  FROM tenant_settings WHERE tenant_id=$1;`
	row, err := pickRow(ctx, r.pool, tx, q, tenantID)
	if err != nil {
		return nil, err
	}
	var (
		s      model.TenantSettings
		charge decimal.Decimal
	)
	if err := row.Scan(&s.TenantID, &s.PaymentsEnabled, &charge, &s.GatewayKeyID, &s.TableCount, &s.MerchantUPI,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, scanErr(err)
	}
	s.ServiceCharge = charge
	return &s, nil
}

type userRoleRepo struct{ pool *pgxpool.Pool }

func NewUserRoleRepo(pool *pgxpool.Pool) *userRoleRepo { return &userRoleRepo{pool: pool} }

func (r *userRoleRepo) Assign(ctx context.Context, tx repository.Tx, ur *model.UserRole) error {
	if !ur.Role.Valid() {
		return domain.ErrInvalidArgument
	}
	const q = `
INSERT INTO user_roles (user_id, tenant_id, role)
VALUES ($1,$2,$3)
ON CONFLICT (user_id, tenant_id, role) DO NOTHING;`
	_, err := execSQL(ctx, r.pool, tx, q, ur.UserID, ur.TenantID, string(ur.Role))
	return writeErr(err)
}

func (r *userRoleRepo) HasRole(ctx context.Context, tx repository.Tx, userID, tenantID string, role model.Role) (bool, error) {
	const q = `SELECT EXISTS (SELECT 1 FROM user_roles WHERE user_id=$1 AND tenant_id=$2 AND role=$3);`
	row, err := pickRow(ctx, r.pool, tx, q, userID, tenantID, string(role))
	if err != nil {
		return false, err
	}
	var ok bool
	if err := row.Scan(&ok); err != nil {
		return false, scanErr(err)
	}
	return ok, nil
}

type profileRepo struct{ pool *pgxpool.Pool }

func NewProfileRepo(pool *pgxpool.Pool) *profileRepo { return &profileRepo{pool: pool} }

// MarkNeedsPasswordSetup upserts so that users who never had a profile row
// (federated sign-in) still get one.
func (r *profileRepo) MarkNeedsPasswordSetup(ctx context.Context, tx repository.Tx, userID, tenantID string) error {
	const q = `
INSERT INTO profiles (id, tenant_id, needs_password_setup)
VALUES ($1,$2,TRUE)
ON CONFLICT (id) DO UPDATE
   SET tenant_id            = EXCLUDED.tenant_id,
       needs_password_setup = TRUE,
       updated_at           = NOW();`
	_, err := execSQL(ctx, r.pool, tx, q, userID, tenantID)
	return writeErr(err)
}
