package payments

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	data map[string]time.Duration
	err  error
}

func (m *memStore) SetNX(_ context.Context, key string, _ any, ttl time.Duration) *redis.BoolCmd {
	if m.err != nil {
		return redis.NewBoolResult(false, m.err)
	}
	if _, ok := m.data[key]; ok {
		return redis.NewBoolResult(false, nil)
	}
	m.data[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func (m *memStore) Del(_ context.Context, keys ...string) *redis.IntCmd {
	for _, k := range keys {
		delete(m.data, k)
	}
	return redis.NewIntResult(int64(len(keys)), nil)
}

func TestRedisGuard_MarksAndReleases(t *testing.T) {
	store := &memStore{data: map[string]time.Duration{}}
	g, err := newRedisGuard(store, time.Hour)
	require.NoError(t, err)
	ctx := context.Background()

	seen, err := g.CheckAndMark(ctx, GatewayStripe, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.Equal(t, time.Hour, store.data["recipechat:webhook:stripe:evt_1"])

	seen, err = g.CheckAndMark(ctx, GatewayStripe, "evt_1")
	require.NoError(t, err)
	assert.True(t, seen)

	seen, err = g.CheckAndMark(ctx, GatewayPhonePe, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen, "gateways are namespaced")

	require.NoError(t, g.Release(ctx, GatewayStripe, "evt_1"))
	seen, err = g.CheckAndMark(ctx, GatewayStripe, "evt_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisGuard_Errors(t *testing.T) {
	_, err := newRedisGuard(nil, time.Hour)
	assert.Error(t, err)
	_, err = newRedisGuard(&memStore{}, -time.Second)
	assert.Error(t, err)

	g, err := newRedisGuard(&memStore{data: map[string]time.Duration{}, err: errors.New("down")}, time.Hour)
	require.NoError(t, err)
	_, err = g.CheckAndMark(context.Background(), GatewayStripe, "evt")
	assert.ErrorContains(t, err, "down")
	_, err = g.CheckAndMark(context.Background(), GatewayStripe, "")
	assert.Error(t, err)
}

func TestNopGuard(t *testing.T) {
	var g EventGuard = NopGuard{}
	seen, err := g.CheckAndMark(context.Background(), GatewayStripe, "evt")
	require.NoError(t, err)
	assert.False(t, seen)
	assert.NoError(t, g.Release(context.Background(), GatewayStripe, "evt"))
}

func TestRegistry(t *testing.T) {
	s := newTestStripe(&fakeSessions{})
	r := NewRegistry(s, nil)

	g, err := r.Get(GatewayStripe)
	require.NoError(t, err)
	assert.Equal(t, GatewayStripe, g.Name())
	assert.Equal(t, "USD", g.Currency())
	assert.Equal(t, []int{20, 60}, g.Packs())

	_, err = r.Get(GatewayPhonePe)
	assert.ErrorIs(t, err, ErrNotConfigured)
	assert.Equal(t, []string{GatewayStripe}, r.Available())

	var nilReg *Registry
	_, err = nilReg.Get(GatewayStripe)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
