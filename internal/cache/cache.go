// Package cache defines the key/value store behind catalog snapshots and
// memoized extraction values.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/FAIRiCUBE/querycube-web/internal/cache/redisstore"
)

type Interface interface {
	MGet(keys []string) (map[string][]byte, error)
	Set(key string, val []byte, ttl time.Duration) error
	MSet(kv map[string][]byte, ttl time.Duration) error
	Del(keys ...string) error
	Incr(key string) (int64, error)
}

type redisAdapter struct {
	cli     *redisstore.Client
	timeout time.Duration
}

// NewRedis bounds every operation on c by timeout.
func NewRedis(c *redisstore.Client, timeout time.Duration) Interface {
	return &redisAdapter{cli: c, timeout: timeout}
}

// returns context with timeout if set
func (a *redisAdapter) withTimeout() (context.Context, context.CancelFunc) {
	if a.timeout <= 0 {
		return context.WithCancel(context.Background())
	}
	return context.WithTimeout(context.Background(), a.timeout)
}

func (a *redisAdapter) MGet(ks []string) (map[string][]byte, error) {
	ctx, cancel := a.withTimeout()
	defer cancel()
	m, err := a.cli.MGet(ctx, ks)
	if err != nil {
		return nil, fmt.Errorf("cache mget: %w", err)
	}
	return m, nil
}

func (a *redisAdapter) Set(key string, val []byte, ttl time.Duration) error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	if err := a.cli.Set(ctx, key, val, ttl); err != nil {
		return fmt.Errorf("cache set %q: %w", key, err)
	}
	return nil
}

func (a *redisAdapter) MSet(kv map[string][]byte, ttl time.Duration) error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	if err := a.cli.MSetWithTTL(ctx, kv, ttl); err != nil {
		return fmt.Errorf("cache mset: %w", err)
	}
	return nil
}

func (a *redisAdapter) Del(ks ...string) error {
	ctx, cancel := a.withTimeout()
	defer cancel()
	if err := a.cli.Del(ctx, ks...); err != nil {
		return fmt.Errorf("cache del %d keys: %w", len(ks), err)
	}
	return nil
}

func (a *redisAdapter) Incr(key string) (int64, error) {
	ctx, cancel := a.withTimeout()
	defer cancel()
	n, err := a.cli.Incr(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("cache incr %q: %w", key, err)
	}
	return n, nil
}
