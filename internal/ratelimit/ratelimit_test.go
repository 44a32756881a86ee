package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/tirta/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	srv := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: srv.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return srv, client
}

func TestLockerExclusive(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	token, ok, err := locker.TryLock(ctx, "scheduler:overdue_sweep", time.Minute)
	require.NoError(t, err)
	require.True(t, ok)
	require.NotEmpty(t, token)

	_, ok, err = locker.TryLock(ctx, "scheduler:overdue_sweep", time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// a stale token must not release someone else's lock
	require.NoError(t, locker.Release(ctx, "scheduler:overdue_sweep", "stale"))
	assert.True(t, srv.Exists("scheduler:overdue_sweep"))

	require.NoError(t, locker.Release(ctx, "scheduler:overdue_sweep", token))
	assert.False(t, srv.Exists("scheduler:overdue_sweep"))

	_, ok, err = locker.TryLock(ctx, "scheduler:overdue_sweep", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerExpires(t *testing.T) {
	srv, client := newRedis(t)
	locker := NewLocker(client)
	ctx := context.Background()

	_, ok, err := locker.TryLock(ctx, "job", time.Second)
	require.NoError(t, err)
	require.True(t, ok)

	srv.FastForward(2 * time.Second)

	_, ok, err = locker.TryLock(ctx, "job", time.Second)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestLockerNil(t *testing.T) {
	var locker *Locker
	_, _, err := locker.TryLock(context.Background(), "job", time.Second)
	require.ErrorIs(t, err, ErrLockNotConfigured)
	assert.NoError(t, locker.Release(context.Background(), "job", "token"))
	assert.Nil(t, NewLocker(nil))
}

func TestTokenBucketExhausts(t *testing.T) {
	_, client := newRedis(t)
	bucket := NewTokenBucket(client)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		res, err := bucket.Allow(ctx, "reading:ingest:apartment:1001", 0.01, 3)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i)
		assert.Equal(t, 3, res.Limit)
	}

	res, err := bucket.Allow(ctx, "reading:ingest:apartment:1001", 0.01, 3)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Greater(t, res.RetryAfter, time.Duration(0))

	other, err := bucket.Allow(ctx, "reading:ingest:apartment:2002", 0.01, 3)
	require.NoError(t, err)
	assert.True(t, other.Allowed)
}

func TestTokenBucketValidation(t *testing.T) {
	_, client := newRedis(t)
	bucket := NewTokenBucket(client)

	_, err := bucket.Allow(context.Background(), "", 1, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 0, 1)
	assert.Error(t, err)
	_, err = bucket.Allow(context.Background(), "k", 1, 0)
	assert.Error(t, err)
}

func TestBucketTTL(t *testing.T) {
	assert.Equal(t, 2*time.Second, bucketTTL(10, 10))
	assert.Equal(t, time.Second, bucketTTL(100, 1))
	assert.Equal(t, 600*time.Second, bucketTTL(0.1, 30))
}

func TestReadingIngestLimiter(t *testing.T) {
	_, client := newRedis(t)

	disabled, err := NewReadingIngestLimiter(config.Config{}, client)
	require.NoError(t, err)
	assert.False(t, disabled.Enabled())
	res, err := disabled.AllowApartment(context.Background(), "1001")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	cfg := config.Config{RateLimit: config.RateLimitConfig{
		Enabled:            true,
		ReadingIngestRate:  0.01,
		ReadingIngestBurst: 1,
	}}

	_, err = NewReadingIngestLimiter(cfg, nil)
	assert.Error(t, err)

	limiter, err := NewReadingIngestLimiter(cfg, client)
	require.NoError(t, err)
	require.True(t, limiter.Enabled())

	res, err = limiter.AllowApartment(context.Background(), "1001")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	res, err = limiter.AllowApartment(context.Background(), "1001")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
}
