package storage

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) *RedisCache {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	return NewRedisCache(rdb)
}

func TestRedisCache_GetMiss(t *testing.T) {
	c := newTestRedisCache(t)
	val, ok, err := c.Get(context.Background(), "absent")
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, val)
}

func TestRedisCache_SetThenGet(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "llm:cache:key", []byte(`{"score":0.5}`), time.Minute))

	val, ok, err := c.Get(ctx, "llm:cache:key")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, `{"score":0.5}`, string(val))
}

func TestRedisCache_Overwrite(t *testing.T) {
	c := newTestRedisCache(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("first"), time.Minute))
	require.NoError(t, c.Set(ctx, "k", []byte("second"), time.Minute))

	val, ok, err := c.Get(ctx, "k")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "second", string(val))
}
