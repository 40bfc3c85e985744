// Package ratelimit implements a fixed-window request counter backed by Redis.
package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Rule is a limit of Limit hits per Window. A non-positive Limit disables it.
type Rule struct {
	Limit  int
	Window time.Duration
}

// Enabled reports whether the rule restricts anything.
func (r Rule) Enabled() bool {
	return r.Limit > 0 && r.Window > 0
}

// Limiter decides whether the hit identified by key is within rule.
//
// On backend failure Allow returns true together with the error so callers
// fail open and can log.
type Limiter interface {
	Allow(ctx context.Context, key string, rule Rule) (bool, error)
}

// Redis counts hits with INCR and sets the window expiry on the first hit.
type Redis struct {
	client redis.Cmdable
	prefix string
}

// NewRedis returns a limiter storing counters under "<prefix><key>".
func NewRedis(client redis.Cmdable, prefix string) *Redis {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &Redis{client: client, prefix: prefix}
}

// Allow increments the counter for key and reports whether it is still within the rule.
func (r *Redis) Allow(ctx context.Context, key string, rule Rule) (bool, error) {
	if !rule.Enabled() {
		return true, nil
	}

	fk := r.prefix + key

	var incr *redis.IntCmd
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		incr = pipe.Incr(ctx, fk)
		pipe.ExpireNX(ctx, fk, rule.Window)
		return nil
	})
	if err != nil {
		return true, fmt.Errorf("ratelimit: redis pipeline for %q: %w", fk, err)
	}

	return incr.Val() <= int64(rule.Limit), nil
}

// Reset clears the counter for key.
func (r *Redis) Reset(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Noop allows everything.
type Noop struct{}

// Allow always returns true.
func (Noop) Allow(context.Context, string, Rule) (bool, error) {
	return true, nil
}
