package sched

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"restaurant-saas/internal/domain/ports/repository"
	"restaurant-saas/internal/infra/logging"
	"restaurant-saas/internal/usecase"
)

// Resumer finishes provisioning for a verified subscription payment.
type Resumer interface {
	ResumeProvisioning(ctx context.Context, gatewayOrderID string) (*usecase.ProvisioningResult, error)
}

// StalledLister finds verified subscription payments that never completed
// and pushes back the ones that could not be resumed.
type StalledLister interface {
	ListStalledProvisioning(ctx context.Context, tx repository.Tx, olderThan time.Time, limit int) ([]string, error)
	DeferStalled(ctx context.Context, tx repository.Tx, gatewayOrderID string) error
}

// ProvisioningReconciler periodically resumes provisioning for new-subscription
// payments whose signature was verified but whose tenant setup did not finish,
// e.g. after a crash between the two transactions of the verify path.
type ProvisioningReconciler struct {
	resumer    Resumer
	payments   StalledLister
	interval   time.Duration
	staleAfter time.Duration
	batch      int
	log        *zerolog.Logger
}

func NewProvisioningReconciler(resumer Resumer, payments StalledLister, interval, staleAfter time.Duration, logger *zerolog.Logger) *ProvisioningReconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	if staleAfter <= 0 {
		staleAfter = 10 * time.Minute
	}
	return &ProvisioningReconciler{
		resumer:    resumer,
		payments:   payments,
		interval:   interval,
		staleAfter: staleAfter,
		batch:      50,
		log:        logger,
	}
}

// Start blocks until ctx is done.
func (w *ProvisioningReconciler) Start(ctx context.Context) {
	t := time.NewTicker(w.interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			w.Tick(ctx)
		}
	}
}

// Tick runs one pass and reports how many payments were provisioned.
func (w *ProvisioningReconciler) Tick(ctx context.Context) int {
	ids, err := w.payments.ListStalledProvisioning(ctx, repository.NoTX, time.Now().Add(-w.staleAfter), w.batch)
	if err != nil {
		w.log.Error().Err(err).Msg("provisioning reconciler: list stalled payments")
		return 0
	}
	done := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		l := logging.With(logging.WithGatewayOrderID(ctx, id), w.log)
		res, err := w.resumer.ResumeProvisioning(ctx, id)
		if err != nil {
			l.Warn().Err(err).Msg("provisioning reconciler: resume failed")
			// Otherwise the same failing rows head every batch.
			if derr := w.payments.DeferStalled(ctx, repository.NoTX, id); derr != nil {
				l.Error().Err(derr).Msg("provisioning reconciler: defer stalled payment")
			}
			continue
		}
		if !res.AlreadyProvisioned {
			done++
		}
		l.Info().Str("tenant_id", res.TenantID).Bool("already_provisioned", res.AlreadyProvisioned).Msg("provisioning reconciled")
	}
	return done
}
