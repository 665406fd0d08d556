package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"restaurant-saas/internal/domain/model"
	"restaurant-saas/internal/domain/ports/repository"
	"restaurant-saas/internal/infra/metrics"
	red "restaurant-saas/internal/infra/redis"
)

var _ repository.PricePlanRepository = (*planRepoCacheDecorator)(nil)

const planListKey = "plans:all"

func planKey(id string) string { return fmt.Sprintf("plan:%s", id) }

// planRepoCacheDecorator caches the price list. Plans are reference data and
// the only thing this service caches; credentials are always read fresh.
type planRepoCacheDecorator struct {
	inner  repository.PricePlanRepository
	cache  red.RedisClient
	ttl    time.Duration
	logger *zerolog.Logger
}

func NewPlanRepoCacheDecorator(inner repository.PricePlanRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.PricePlanRepository {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &planRepoCacheDecorator{
		inner:  inner,
		cache:  cache,
		ttl:    ttl,
		logger: logger,
	}
}

func (d *planRepoCacheDecorator) FindByID(ctx context.Context, id string) (*model.PricePlan, error) {
	key := planKey(id)
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var plan model.PricePlan
		if json.Unmarshal([]byte(val), &plan) == nil {
			metrics.IncCacheRequest("plan", "hit")
			return &plan, nil
		}
	} else if !red.IsNil(err) {
		d.logger.Warn().Err(err).Str("key", key).Msg("plan cache read failed")
	}

	metrics.IncCacheRequest("plan", "miss")
	plan, err := d.inner.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if plan != nil {
		bytes, _ := json.Marshal(plan)
		if err := d.cache.Set(ctx, key, bytes, d.ttl); err != nil {
			d.logger.Warn().Err(err).Str("key", key).Msg("plan cache write failed")
		}
	}
	return plan, nil
}

// Save invalidates both the plan and the list entry.
func (d *planRepoCacheDecorator) Save(ctx context.Context, plan *model.PricePlan) error {
	if err := d.inner.Save(ctx, plan); err != nil {
		return err
	}
	if err := d.cache.Del(ctx, planKey(plan.ID), planListKey); err != nil {
		d.logger.Warn().Err(err).Str("plan_id", plan.ID).Msg("plan cache invalidation failed")
	}
	return nil
}

func (d *planRepoCacheDecorator) ListAll(ctx context.Context) ([]*model.PricePlan, error) {
	val, err := d.cache.Get(ctx, planListKey)
	if err == nil {
		var plans []*model.PricePlan
		if json.Unmarshal([]byte(val), &plans) == nil {
			metrics.IncCacheRequest("plan_list", "hit")
			return plans, nil
		}
	} else if !red.IsNil(err) {
		d.logger.Warn().Err(err).Str("key", planListKey).Msg("plan cache read failed")
	}

	metrics.IncCacheRequest("plan_list", "miss")
	plans, err := d.inner.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	if len(plans) > 0 {
		bytes, _ := json.Marshal(plans)
		if err := d.cache.Set(ctx, planListKey, bytes, d.ttl); err != nil {
			d.logger.Warn().Err(err).Str("key", planListKey).Msg("plan cache write failed")
		}
	}
	return plans, nil
}
