// Package ratelimit implements a fixed-window per-IP limiter backed by Redis,
// guarding the credential endpoints against brute force.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultLimit  = 10
	defaultWindow = time.Minute
)

// Limiter counts requests per (ip, purpose) in fixed windows.
type Limiter struct {
	client *redis.Client
	limit  int
	window time.Duration
}

func NewLimiter(client *redis.Client) *Limiter {
	return &Limiter{client: client, limit: defaultLimit, window: defaultWindow}
}

// WithLimit overrides the per-window request budget.
func (l *Limiter) WithLimit(limit int, window time.Duration) *Limiter {
	l.limit = limit
	l.window = window
	return l
}

func ipKey(ip, purpose string) string {
	return fmt.Sprintf("ratelimit:%s:%s", purpose, ip)
}

// CheckIPRateLimit reports whether the ip already exhausted its budget for
// the given purpose in the current window.
func (l *Limiter) CheckIPRateLimit(ctx context.Context, ip, purpose string) (bool, error) {
	count, err := l.client.Get(ctx, ipKey(ip, purpose)).Int()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("rate limit lookup: %w", err)
	}
	return count >= l.limit, nil
}

// RecordIPRequest counts one request against the ip's budget, starting the
// window on first use.
func (l *Limiter) RecordIPRequest(ctx context.Context, ip, purpose string) error {
	key := ipKey(ip, purpose)

	pipe := l.client.Pipeline()
	pipe.Incr(ctx, key)
	pipe.ExpireNX(ctx, key, l.window)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("rate limit record: %w", err)
	}

	return nil
}
