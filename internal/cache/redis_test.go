package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	c, err := NewRedisCache(RedisOptions{
		URL:        "redis://" + mr.Addr() + "/0",
		Prefix:     "deptdocs:",
		DefaultTTL: time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c, mr
}

func TestRedisCache_SetGetDelete(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "dashboard", []byte(`{"total":3}`), 0))
	assert.True(t, mr.Exists("deptdocs:dashboard"), "keys carry the prefix")
	assert.Equal(t, time.Minute, mr.TTL("deptdocs:dashboard"))

	got, err := c.Get(ctx, "dashboard")
	require.NoError(t, err)
	assert.JSONEq(t, `{"total":3}`, string(got))

	require.NoError(t, c.Delete(ctx, "dashboard"))
	_, err = c.Get(ctx, "dashboard")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_Expiry(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, "k", []byte("v"), 10*time.Second))
	mr.FastForward(11 * time.Second)

	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestRedisCache_ClearOnlyTouchesPrefix(t *testing.T) {
	c, mr := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, mr.Set("other:key", "keep"))
	for _, k := range []string{"a", "b", "c"} {
		require.NoError(t, c.Set(ctx, k, []byte(k), 0))
	}

	require.NoError(t, c.Clear(ctx))
	assert.False(t, mr.Exists("deptdocs:a"))
	assert.True(t, mr.Exists("other:key"))
}

func TestRedisCache_PingAndClose(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	require.NoError(t, c.Ping(ctx))
	require.NoError(t, c.Close())
	assert.ErrorIs(t, c.Ping(ctx), ErrCacheClosed)
	_, err := c.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrCacheClosed)
}

func TestRedisCache_Stats(t *testing.T) {
	c, _ := newTestRedis(t)
	ctx := context.Background()

	_ = c.Set(ctx, "a", []byte("1"), 0)
	_, _ = c.Get(ctx, "a")
	_, _ = c.Get(ctx, "b")

	s := c.Stats()
	assert.Equal(t, "redis", s.Backend)
	assert.Equal(t, int64(1), s.Hits)
	assert.Equal(t, int64(1), s.Misses)
}

func TestNewRedisCache_Errors(t *testing.T) {
	_, err := NewRedisCache(RedisOptions{})
	assert.Error(t, err)

	_, err = NewRedisCache(RedisOptions{URL: "not a url"})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()
	_, err = NewRedisCache(RedisOptions{URL: "redis://" + addr, ConnectTimeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
