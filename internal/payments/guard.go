package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventGuard remembers processed webhook events so replays are acknowledged
// without reprocessing. Reconciliation is idempotent on its own; the guard
// only saves the database round trips.
type EventGuard interface {
	// CheckAndMark reports whether eventID was already seen, marking it if not.
	CheckAndMark(ctx context.Context, gateway, eventID string) (seen bool, err error)
	// Release forgets eventID after a processing failure so a retry is handled.
	Release(ctx context.Context, gateway, eventID string) error
}

// NopGuard never reports a replay.
type NopGuard struct{}

func (NopGuard) CheckAndMark(context.Context, string, string) (bool, error) { return false, nil }
func (NopGuard) Release(context.Context, string, string) error             { return nil }

// setNXDeleter is the subset of redis.Cmdable used by RedisGuard.
type setNXDeleter interface {
	SetNX(ctx context.Context, key string, value any, expiration time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisGuard stores event markers with SETNX and a TTL.
type RedisGuard struct {
	store  setNXDeleter
	ttl    time.Duration
	prefix string
}

// NewRedisGuard connects to url and verifies the connection.
func NewRedisGuard(ctx context.Context, url string, ttl time.Duration) (*RedisGuard, func() error, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis: %w", err)
	}
	g, err := newRedisGuard(client, ttl)
	if err != nil {
		_ = client.Close()
		return nil, nil, err
	}
	return g, client.Close, nil
}

func newRedisGuard(store setNXDeleter, ttl time.Duration) (*RedisGuard, error) {
	if store == nil {
		return nil, errors.New("redis store is required")
	}
	if ttl < 0 {
		return nil, errors.New("ttl must be non-negative")
	}
	return &RedisGuard{store: store, ttl: ttl, prefix: "recipechat:webhook"}, nil
}

func (g *RedisGuard) key(gateway, eventID string) string {
	return g.prefix + ":" + gateway + ":" + eventID
}

func (g *RedisGuard) CheckAndMark(ctx context.Context, gateway, eventID string) (bool, error) {
	if eventID == "" {
		return false, errors.New("event id is required")
	}
	set, err := g.store.SetNX(ctx, g.key(gateway, eventID), "1", g.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("set event marker: %w", err)
	}
	return !set, nil
}

func (g *RedisGuard) Release(ctx context.Context, gateway, eventID string) error {
	if eventID == "" {
		return nil
	}
	return g.store.Del(ctx, g.key(gateway, eventID)).Err()
}
