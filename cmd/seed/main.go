package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/config"
	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
	pg "restaurant-saas/internal/infra/db/postgres"
	"restaurant-saas/internal/infra/logging"
	"restaurant-saas/internal/infra/security"
	"restaurant-saas/internal/usecase"
)

// Secrets are read from the environment so they stay out of shell history.
const (
	envPlatformKeySecret     = "PLATFORM_KEY_SECRET"
	envPlatformWebhookSecret = "PLATFORM_WEBHOOK_SECRET"
	envTenantKeySecret       = "TENANT_KEY_SECRET"
	envTenantWebhookSecret   = "TENANT_WEBHOOK_SECRET"
)

func main() {
	platformKeyID := flag.String("platform-key-id", "", "activate platform gateway account with this key id (secret from "+envPlatformKeySecret+")")
	setupFee := flag.Int64("setup-fee", 0, "platform setup fee in whole units; 0 keeps the configured default")
	tenantID := flag.String("tenant-id", "", "store gateway secrets for this tenant (from "+envTenantKeySecret+")")

	cfg, err := config.LoadConfig()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Price plans ----
	planUC := usecase.NewPlanUseCase(pg.NewPostgresPlanRepo(pool))
	if err := planUC.Seed(ctx); err != nil {
		logger.Fatal().Err(err).Msg("seed plans")
	}
	plans, err := planUC.List(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("list plans")
	}
	for _, p := range plans {
		logger.Info().Str("plan", p.ID).Int64("monthly_price", p.Price()).Bool("purchasable", p.Purchasable()).Msg("plan seeded")
	}

	if *platformKeyID == "" && *tenantID == "" {
		return
	}

	// ---- Gateway credentials ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}
	writer := pg.NewGatewayCredentialWriter(pool, encSvc)
	tm := pg.NewTxManager(pool)

	if *platformKeyID != "" {
		c := &model.PlatformGatewayConfig{
			KeyID:         *platformKeyID,
			KeySecret:     os.Getenv(envPlatformKeySecret),
			WebhookSecret: os.Getenv(envPlatformWebhookSecret),
		}
		if *setupFee > 0 {
			c.SetupFee = setupFee
		}
		err := tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
			return writer.ActivatePlatformConfig(ctx, tx, c)
		})
		if err != nil {
			logger.Fatal().Err(err).Msg("platform gateway config")
		}
		logger.Info().Str("key_id", c.KeyID).Bool("webhook_secret", c.WebhookSecret != "").Msg("platform gateway account activated")
	}

	if *tenantID != "" {
		s := &model.TenantGatewaySecret{
			TenantID:      *tenantID,
			KeySecret:     os.Getenv(envTenantKeySecret),
			WebhookSecret: os.Getenv(envTenantWebhookSecret),
		}
		if err := writer.PutTenantSecret(ctx, repository.NoTX, s); err != nil {
			logger.Fatal().Err(err).Msg("tenant gateway secret")
		}
		logger.Info().Str("tenant_id", s.TenantID).Bool("webhook_secret", s.WebhookSecret != "").Msg("tenant gateway secrets stored")
	}
}
