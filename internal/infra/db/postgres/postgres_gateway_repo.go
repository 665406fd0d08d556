package postgres

import (
	"context"

	"github.com/jackc/pgx/v4/pgxpool"

	"restaurant-saas/internal/domain"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
)

var _ repository.GatewayConfigRepository = (*gatewayConfigRepo)(nil)

// Decrypter opens secrets sealed at rest.
type Decrypter interface {
	Decrypt(b64 string) (string, error)
}

// gatewayConfigRepo reads credentials on every call. Nothing here is cached.
type gatewayConfigRepo struct {
	pool *pgxpool.Pool
	enc  Decrypter
}

func NewGatewayConfigRepo(pool *pgxpool.Pool, enc Decrypter) *gatewayConfigRepo {
	return &gatewayConfigRepo{pool: pool, enc: enc}
}

func (r *gatewayConfigRepo) FindActivePlatformConfig(ctx context.Context) (*model.PlatformGatewayConfig, error) {
	const q = `
SELECT id, key_id, key_secret_enc, webhook_secret_enc, setup_fee, is_active, updated_at
  FROM platform_gateway_config
 WHERE is_active
 LIMIT 1;`
	var (
		c                model.PlatformGatewayConfig
		secretEnc        string
		webhookSecretEnc *string
	)
	err := r.pool.QueryRow(ctx, q).Scan(&c.ID, &c.KeyID, &secretEnc, &webhookSecretEnc, &c.SetupFee, &c.Active, &c.UpdatedAt)
	if err != nil {
		if scanErr(err) == domain.ErrNotFound {
			return nil, domain.ErrGatewayNotConfigured
		}
		return nil, domain.ErrReadDatabaseRow
	}
	if c.KeySecret, err = r.open(secretEnc); err != nil {
		return nil, err
	}
	if webhookSecretEnc != nil {
		if c.WebhookSecret, err = r.open(*webhookSecretEnc); err != nil {
			return nil, err
		}
	}
	if c.KeyID == "" || c.KeySecret == "" {
		return nil, domain.ErrGatewayNotConfigured
	}
	return &c, nil
}

func (r *gatewayConfigRepo) FindTenantSecret(ctx context.Context, tenantID string) (*model.TenantGatewaySecret, error) {
	const q = `SELECT key_secret_enc, webhook_secret_enc FROM tenant_gateway_secrets WHERE tenant_id=$1;`
	var (
		secretEnc        string
		webhookSecretEnc *string
	)
	err := r.pool.QueryRow(ctx, q, tenantID).Scan(&secretEnc, &webhookSecretEnc)
	if err != nil {
		if scanErr(err) == domain.ErrNotFound {
			return nil, domain.ErrCredentialsNotConfigured
		}
		return nil, domain.ErrReadDatabaseRow
	}
	s := &model.TenantGatewaySecret{TenantID: tenantID}
	if s.KeySecret, err = r.open(secretEnc); err != nil {
		return nil, err
	}
	if webhookSecretEnc != nil {
		if s.WebhookSecret, err = r.open(*webhookSecretEnc); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// open never wraps the decryption error, so ciphertext never reaches logs.
func (r *gatewayConfigRepo) open(enc string) (string, error) {
	if enc == "" {
		return "", nil
	}
	pt, err := r.enc.Decrypt(enc)
	if err != nil {
		return "", domain.ErrOperationFailed
	}
	return pt, nil
}

// Encrypter seals secrets before they are stored.
type Encrypter interface {
	Encrypt(plaintext string) (string, error)
}

// GatewayCredentialWriter stores gateway credentials sealed. Used by operator tooling only.
type GatewayCredentialWriter struct {
	pool *pgxpool.Pool
	enc  Encrypter
}

func NewGatewayCredentialWriter(pool *pgxpool.Pool, enc Encrypter) *GatewayCredentialWriter {
	return &GatewayCredentialWriter{pool: pool, enc: enc}
}

// ActivatePlatformConfig deactivates the current platform account and inserts c as active.
func (w *GatewayCredentialWriter) ActivatePlatformConfig(ctx context.Context, tx repository.Tx, c *model.PlatformGatewayConfig) error {
	if c == nil || !c.Credentials().Complete() {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(w.pool, tx)
	if err != nil {
		return err
	}
	secretEnc, err := w.enc.Encrypt(c.KeySecret)
	if err != nil {
		return domain.ErrOperationFailed
	}
	webhookEnc, err := w.seal(c.WebhookSecret)
	if err != nil {
		return err
	}
	if _, err := ex.Exec(ctx, `UPDATE platform_gateway_config SET is_active=FALSE, updated_at=NOW() WHERE is_active;`); err != nil {
		return writeErr(err)
	}
	const q = `
INSERT INTO platform_gateway_config (key_id, key_secret_enc, webhook_secret_enc, setup_fee, is_active, updated_at)
VALUES ($1, $2, $3, $4, TRUE, NOW());`
	_, err = ex.Exec(ctx, q, c.KeyID, secretEnc, webhookEnc, c.SetupFee)
	return writeErr(err)
}

// PutTenantSecret upserts a tenant's sealed key secret and webhook secret.
func (w *GatewayCredentialWriter) PutTenantSecret(ctx context.Context, tx repository.Tx, s *model.TenantGatewaySecret) error {
	if s == nil || s.TenantID == "" || s.KeySecret == "" {
		return domain.ErrInvalidArgument
	}
	ex, err := getExecutor(w.pool, tx)
	if err != nil {
		return err
	}
	secretEnc, err := w.enc.Encrypt(s.KeySecret)
	if err != nil {
		return domain.ErrOperationFailed
	}
	webhookEnc, err := w.seal(s.WebhookSecret)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO tenant_gateway_secrets (tenant_id, key_secret_enc, webhook_secret_enc, updated_at)
VALUES ($1, $2, $3, NOW())
ON CONFLICT (tenant_id) DO UPDATE
   SET key_secret_enc=EXCLUDED.key_secret_enc,
       webhook_secret_enc=EXCLUDED.webhook_secret_enc,
       updated_at=NOW();`
	_, err = ex.Exec(ctx, q, s.TenantID, secretEnc, webhookEnc)
	return writeErr(err)
}

func (w *GatewayCredentialWriter) seal(secret string) (*string, error) {
	if secret == "" {
		return nil, nil
	}
	enc, err := w.enc.Encrypt(secret)
	if err != nil {
		return nil, domain.ErrOperationFailed
	}
	return &enc, nil
}
