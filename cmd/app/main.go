// File: cmd/app/main.go
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"restaurant-saas/internal/config"
	"restaurant-saas/internal/domain/ports/adapter"
	payAdapters "restaurant-saas/internal/infra/adapters/payment"
	"restaurant-saas/internal/infra/api"
	"restaurant-saas/internal/infra/api/apiv1"
	pg "restaurant-saas/internal/infra/db/postgres"
	"restaurant-saas/internal/infra/logging"
	"restaurant-saas/internal/infra/metrics"
	red "restaurant-saas/internal/infra/redis"
	"restaurant-saas/internal/infra/sched"
	"restaurant-saas/internal/infra/security"
	"restaurant-saas/internal/usecase"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "none"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		l := zerolog.New(os.Stderr)
		l.Fatal().Err(err).Msg("config")
	}
	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	if cfg.Runtime.Dev {
		logger.Warn().Msg("development mode enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.MustRegister()
	metrics.SetBuildInfo(version, commit)

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer redisClient.Close()

	// ---- Encryption ----
	encSvc, err := security.NewEncryptionService(cfg.Security.EncryptionKey)
	if err != nil {
		logger.Fatal().Err(err).Msg("encryption")
	}

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	planRepo := pg.NewPlanRepoCacheDecorator(pg.NewPostgresPlanRepo(pool), redisClient, cfg.Redis.TTL, logger)
	tenantRepo := pg.NewTenantRepo(pool)
	settingsRepo := pg.NewTenantSettingsRepo(pool)
	orderRepo := pg.NewOrderRepo(pool)
	paymentRepo := pg.NewPaymentRepo(pool)
	gwConfigRepo := pg.NewGatewayConfigRepo(pool, encSvc)
	eventRepo := pg.NewWebhookEventRepo(pool)

	// ---- Gateway ----
	var gateway adapter.PaymentGateway
	switch cfg.Payment.Provider {
	case "noop":
		gateway = payAdapters.NewNoopPaymentGateway()
		logger.Warn().Msg("payment gateway: noop (orders are not sent to a real gateway)")
	default:
		gw, err := payAdapters.NewRazorpayGateway(cfg.Payment.BaseURL, cfg.Payment.Timeout)
		if err != nil {
			logger.Fatal().Err(err).Msg("payment gateway")
		}
		gateway = gw
	}

	// ---- Use cases ----
	billing := usecase.BillingSettings{
		Currency:                cfg.Payment.Currency,
		DefaultSetupFee:         cfg.Payment.DefaultSetupFee,
		AllowUnverifiedWebhooks: cfg.Payment.AllowUnverifiedWebhooks,
	}
	roleRepo := pg.NewUserRoleRepo(pool)
	planUC := usecase.NewPlanUseCase(planRepo)
	orderUC := usecase.NewOrderPaymentUseCase(settingsRepo, orderRepo, gwConfigRepo, gateway, tm, billing, logger)
	planChangeUC := usecase.NewPlanChangeUseCase(tenantRepo, roleRepo, paymentRepo, gwConfigRepo, planUC, gateway, tm, billing, logger)
	subUC := usecase.NewSubscriptionUseCase(usecase.SubscriptionDeps{
		Payments: paymentRepo,
		Tenants:  tenantRepo,
		Settings: settingsRepo,
		Roles:    roleRepo,
		Profiles: pg.NewProfileRepo(pool),
		GwConfig: gwConfigRepo,
	}, planUC, gateway, tm, billing, logger)
	webhookUC := usecase.NewWebhookUseCase(orderRepo, paymentRepo, gwConfigRepo, eventRepo, planChangeUC, subUC, tm, billing, logger)

	// ---- Provisioning reconciler ----
	if cfg.Provisioning.ReconcileInterval > 0 {
		rec := sched.NewProvisioningReconciler(subUC, paymentRepo, cfg.Provisioning.ReconcileInterval, cfg.Provisioning.StaleAfter, logger)
		go rec.Start(ctx)
		logger.Info().Dur("interval", cfg.Provisioning.ReconcileInterval).Msg("provisioning reconciler started")
	}

	// ---- HTTP ----
	opts := apiv1.Options{
		SignatureHeader: cfg.Payment.SignatureHeader,
		EventIDHeader:   cfg.Payment.EventIDHeader,
		AdminAPIKey:     cfg.Admin.APIKey,
	}
	if cfg.Auth.JWTSecret != "" {
		opts.Auth = api.NewAuthManager(cfg.Auth.JWTSecret, cfg.Auth.Issuer)
	} else {
		logger.Warn().Msg("auth.jwt_secret not set; user routes accept unauthenticated requests")
	}
	if cfg.RateLimit.Enabled {
		opts.Limiter = red.NewRateLimiter(redisClient)
		opts.RateLimit = cfg.RateLimit.Limit
		opts.RateWindow = cfg.RateLimit.Window
	}
	v1 := apiv1.NewServer(planUC, orderUC, planChangeUC, subUC, webhookUC, opts, logger)

	proxies, err := cfg.HTTP.TrustedPrefixes()
	if err != nil {
		logger.Fatal().Err(err).Msg("config")
	}
	router := api.NewRouter(api.RouterOptions{
		HandlerTimeout: cfg.HTTP.HandlerTimeout,
		TrustedProxies: proxies,
		Checks:         map[string]api.Pinger{"postgres": pool, "redis": redisClient},
		BeforeScrape:   pg.PoolStatsReporter(pool),
	}, logger, func(r chi.Router) { apiv1.RegisterAPIV1(r, v1) })

	srv := api.NewServer(cfg.HTTP, router, logger)
	go func() {
		if err := srv.Start(); err != nil {
			logger.Error().Err(err).Msg("http server stopped")
			stop()
		}
	}()

	// ---- Graceful shutdown ----
	<-ctx.Done()
	logger.Info().Msg("shutdown requested")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
}
