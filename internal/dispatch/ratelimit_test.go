package dispatch

import (
	"context"
	"testing"
)

func TestRateLimiterLocalCounters(t *testing.T) {
	// No Redis client: counters live in memory.
	limiter := NewRateLimiter(nil, nil, RateLimitConfig{
		TenantHourlyLimit:    100,
		TenantDailyLimit:     1000,
		RecipientHourlyLimit: 3,
		RedisKeyPrefix:       "test:",
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		res, err := limiter.Allow(ctx, "tenant-1", "agent@example.com")
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !res.Allowed {
			t.Fatalf("send %d should be allowed", i+1)
		}
	}

	res, err := limiter.Allow(ctx, "tenant-1", "agent@example.com")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if res.Allowed {
		t.Fatal("4th send to the same recipient should be rate limited")
	}
	if res.LimitType != "recipient_hourly" {
		t.Errorf("LimitType = %s, want recipient_hourly", res.LimitType)
	}

	// A different recipient under the same tenant is unaffected.
	res, err = limiter.Allow(ctx, "tenant-1", "other@example.com")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if !res.Allowed {
		t.Error("different recipient should still be allowed")
	}
}

func TestRateLimiterTenantLimit(t *testing.T) {
	limiter := NewRateLimiter(nil, nil, RateLimitConfig{
		TenantHourlyLimit:    2,
		TenantDailyLimit:     100,
		RecipientHourlyLimit: 100,
		RedisKeyPrefix:       "test:",
	})

	ctx := context.Background()
	limiter.Allow(ctx, "tenant-1", "a@example.com")
	limiter.Allow(ctx, "tenant-1", "b@example.com")

	res, err := limiter.Allow(ctx, "tenant-1", "c@example.com")
	if err != nil {
		t.Fatalf("Allow() error: %v", err)
	}
	if res.Allowed {
		t.Fatal("tenant hourly limit should apply across recipients")
	}
	if res.LimitType != "tenant_hourly" {
		t.Errorf("LimitType = %s, want tenant_hourly", res.LimitType)
	}

	// Another tenant has its own counters.
	res, _ = limiter.Allow(ctx, "tenant-2", "a@example.com")
	if !res.Allowed {
		t.Error("limits must be scoped per tenant")
	}
}

func TestRateLimiterZeroLimitDisablesCheck(t *testing.T) {
	limiter := NewRateLimiter(nil, nil, RateLimitConfig{RedisKeyPrefix: "test:"})

	for i := 0; i < 50; i++ {
		res, err := limiter.Allow(context.Background(), "tenant-1", "a@example.com")
		if err != nil {
			t.Fatalf("Allow() error: %v", err)
		}
		if !res.Allowed {
			t.Fatal("zero limits disable rate limiting")
		}
	}
}
