package cache_test

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"procurement/internal/cache"
)

type ranking struct {
	Vendor string `json:"vendor"`
	Total  string `json:"total"`
}

func newRedisCache(t *testing.T, ttl time.Duration) (*cache.RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return cache.NewRedisCache(client, ttl, zerolog.Nop()), mr
}

func TestRedisCacheRoundTrip(t *testing.T) {
	c, _ := newRedisCache(t, time.Minute)
	ctx := context.Background()
	key := cache.ComparisonKey("r1")

	var got []ranking
	found, err := c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)

	want := []ranking{{Vendor: "Acme", Total: "354.00"}}
	require.NoError(t, c.Set(ctx, key, want))

	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, want, got)

	require.NoError(t, c.Delete(ctx, key))
	found, err = c.Get(ctx, key, &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheExpires(t *testing.T) {
	c, mr := newRedisCache(t, 30*time.Second)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", ranking{Vendor: "x"}))
	mr.FastForward(31 * time.Second)

	var got ranking
	found, err := c.Get(ctx, "k", &got)
	require.NoError(t, err)
	assert.False(t, found)
}

func TestRedisCacheGetErrorWhenServerDown(t *testing.T) {
	c, mr := newRedisCache(t, time.Minute)
	mr.Close()

	var got ranking
	_, err := c.Get(context.Background(), "k", &got)
	assert.Error(t, err)
}

func TestNopCacheAlwaysMisses(t *testing.T) {
	var c cache.Cache = cache.Nop{}
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", 1))

	var v int
	found, err := c.Get(ctx, "k", &v)
	require.NoError(t, err)
	assert.False(t, found)
	assert.NoError(t, c.Delete(ctx, "k"))
}
