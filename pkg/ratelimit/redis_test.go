package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T, cfg RedisConfig) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client, cfg), mr
}

func TestRedisStoreCounterLifecycle(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t, RedisConfig{Retention: time.Hour})

	c, err := s.Get(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, c)

	resetAt := time.Now().Add(time.Minute).UTC().Truncate(time.Millisecond)
	require.NoError(t, s.Reset(ctx, "abc", resetAt))
	n, err := s.Increment(ctx, "abc")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	c, err = s.Get(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 2, c.Count)
	assert.True(t, resetAt.Equal(c.ResetAt))

	assert.Equal(t, "2", mr.HGet("ratelimit:abc", "count"))
	assert.Greater(t, mr.TTL("ratelimit:abc"), time.Hour)
}

func TestRedisStoreHalfWrittenHashIsFresh(t *testing.T) {
	ctx := context.Background()
	s, mr := newTestRedis(t, RedisConfig{})
	mr.HSet("ratelimit:orphan", "count", "7")

	c, err := s.Get(ctx, "orphan")
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestRedisStoreDuplicatesAreCapped(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestRedis(t, RedisConfig{MaxDuplicates: 3})
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	for i := 0; i < 5; i++ {
		require.NoError(t, s.RecordDuplicate(ctx, "id|with|pipes", base.Add(time.Duration(i)*time.Second)))
	}

	d, err := s.Duplicates(ctx, 0)
	require.NoError(t, err)
	require.Len(t, d, 3)
	assert.Equal(t, "id|with|pipes", d[0].Identity)
	assert.True(t, base.Add(4*time.Second).Equal(d[0].AttemptedAt), "newest first")
}

func TestNewRedisClientRequiresAddress(t *testing.T) {
	_, err := NewRedisClient(context.Background(), RedisConfig{})
	assert.Error(t, err)

	mr := miniredis.RunT(t)
	client, err := NewRedisClient(context.Background(), RedisConfig{Addr: mr.Addr()})
	require.NoError(t, err)
	assert.NoError(t, client.Close())
}
