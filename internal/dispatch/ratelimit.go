package dispatch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// RateLimitConfig holds configuration for reminder email rate limiting
type RateLimitConfig struct {
	// Per-tenant limits
	TenantHourlyLimit int // Max reminder emails per hour per tenant
	TenantDailyLimit  int // Max reminder emails per day per tenant

	// Per-recipient limit
	RecipientHourlyLimit int // Max reminder emails per hour to the same address

	// Redis settings
	RedisKeyPrefix string
}

// DefaultRateLimitConfig returns sensible defaults
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		TenantHourlyLimit:    500,
		TenantDailyLimit:     5000,
		RecipientHourlyLimit: 20,
		RedisKeyPrefix:       "reminder:ratelimit:",
	}
}

// RateLimiter caps outbound reminder emails per tenant and per recipient.
// Counters live in Redis when available, with an in-memory fallback so a
// Redis outage never blocks reminders.
type RateLimiter struct {
	config      RateLimitConfig
	redisClient *redis.Client
	logger      *logrus.Entry

	localCounters map[string]*counterState
	localMu       sync.Mutex
}

type counterState struct {
	count     int
	expiresAt time.Time
}

// RateLimitResult contains the result of a rate limit check
type RateLimitResult struct {
	Allowed   bool
	LimitType string // which limit was exceeded
}

// NewRateLimiter creates a rate limiter. redisClient may be nil, in which
// case only the in-memory counters are used.
func NewRateLimiter(redisClient *redis.Client, logger *logrus.Logger, config RateLimitConfig) *RateLimiter {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &RateLimiter{
		config:        config,
		redisClient:   redisClient,
		logger:        logger.WithField("component", "reminder_rate_limiter"),
		localCounters: make(map[string]*counterState),
	}
}

// Allow checks and consumes one send slot for the tenant/recipient pair.
func (r *RateLimiter) Allow(ctx context.Context, tenantID, recipient string) (*RateLimitResult, error) {
	checks := []struct {
		key       string
		limit     int
		window    time.Duration
		limitType string
	}{
		{fmt.Sprintf("%stenant:%s:hourly", r.config.RedisKeyPrefix, tenantID), r.config.TenantHourlyLimit, time.Hour, "tenant_hourly"},
		{fmt.Sprintf("%stenant:%s:daily", r.config.RedisKeyPrefix, tenantID), r.config.TenantDailyLimit, 24 * time.Hour, "tenant_daily"},
		{fmt.Sprintf("%srecipient:%s:%s", r.config.RedisKeyPrefix, tenantID, recipient), r.config.RecipientHourlyLimit, time.Hour, "recipient_hourly"},
	}

	for _, c := range checks {
		if c.limit <= 0 {
			continue
		}
		count, err := r.increment(ctx, c.key, c.window)
		if err != nil {
			return nil, err
		}
		if count > c.limit {
			r.logger.WithFields(logrus.Fields{
				"tenant_id":  tenantID,
				"limit_type": c.limitType,
				"count":      count,
			}).Warn("Reminder email rate limit exceeded")
			return &RateLimitResult{Allowed: false, LimitType: c.limitType}, nil
		}
	}

	return &RateLimitResult{Allowed: true}, nil
}

func (r *RateLimiter) increment(ctx context.Context, key string, window time.Duration) (int, error) {
	if r.redisClient != nil {
		count, err := r.redisClient.Incr(ctx, key).Result()
		if err == nil {
			if count == 1 {
				r.redisClient.Expire(ctx, key, window)
			}
			return int(count), nil
		}
		r.logger.WithError(err).Debug("Redis unavailable, using in-memory rate limit counters")
	}

	r.localMu.Lock()
	defer r.localMu.Unlock()

	now := time.Now()
	state, ok := r.localCounters[key]
	if !ok || now.After(state.expiresAt) {
		state = &counterState{expiresAt: now.Add(window)}
		r.localCounters[key] = state
	}
	state.count++
	return state.count, nil
}
