//go:build !integration

package redis

import (
	"context"
	"testing"
	"time"

	"restaurant-saas/internal/config"

	"github.com/alicebob/miniredis/v2"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redClient) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), &config.RedisConfig{URL: mr.Addr()})
	if err != nil {
		t.Fatalf("connect miniredis: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return mr, c
}

func TestClient_GetSetDel(t *testing.T) {
	_, c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.Get(ctx, "missing"); !IsNil(err) {
		t.Fatalf("expected cache miss, got %v", err)
	}
	if err := c.Set(ctx, "plan:pro", "{}", time.Minute); err != nil {
		t.Fatalf("set: %v", err)
	}
	v, err := c.Get(ctx, "plan:pro")
	if err != nil || v != "{}" {
		t.Fatalf("expected stored value, got %q (%v)", v, err)
	}
	if err := c.Del(ctx, "plan:pro"); err != nil {
		t.Fatalf("del: %v", err)
	}
	if _, err := c.Get(ctx, "plan:pro"); !IsNil(err) {
		t.Fatalf("expected key to be gone, got %v", err)
	}
}

func TestClient_RedisURL(t *testing.T) {
	mr := miniredis.RunT(t)
	c, err := NewClient(context.Background(), &config.RedisConfig{URL: "redis://" + mr.Addr() + "/0"})
	if err != nil {
		t.Fatalf("expected redis:// url to be accepted, got %v", err)
	}
	_ = c.Close()
}

func TestRateLimiter_Allow(t *testing.T) {
	mr, c := newTestClient(t)
	rl := NewRateLimiter(c)
	ctx := context.Background()
	key := RouteKey("user-1", "/api/v1/plan-change")

	for i := 0; i < 3; i++ {
		ok, err := rl.Allow(ctx, key, 3, time.Minute)
		if err != nil || !ok {
			t.Fatalf("request %d: expected allowed, got %v (%v)", i+1, ok, err)
		}
	}
	ok, err := rl.Allow(ctx, key, 3, time.Minute)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ok {
		t.Fatal("expected 4th request to be limited")
	}

	mr.FastForward(time.Minute + time.Second)
	ok, _ = rl.Allow(ctx, key, 3, time.Minute)
	if !ok {
		t.Error("expected window to reset after expiry")
	}
}
