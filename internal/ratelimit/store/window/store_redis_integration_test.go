//go:build integration

package window

import (
	"context"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"admissions/internal/ratelimit/models"
	"admissions/pkg/testutil"
	"admissions/pkg/testutil/containers"
)

func newRedisStore(t *testing.T) *RedisStore {
	t.Helper()
	rc := containers.GetManager().GetRedis(t)
	opts, err := redis.ParseURL(rc.URL)
	require.NoError(t, err)
	client := redis.NewClient(opts)
	t.Cleanup(func() { _ = client.Close() })
	require.NoError(t, client.FlushDB(context.Background()).Err())
	return NewRedisStore(client)
}

func TestRedisStore_FixedWindow(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	now := time.Now()
	limit := models.Limit{MaxRequests: 3, Window: time.Minute}
	key := models.Key(models.ProfileAuth, "203.0.113.10")

	for i, want := range []int{2, 1, 0} {
		res, err := store.Take(ctx, key, limit, now)
		require.NoError(t, err)
		assert.True(t, res.Allowed, "request %d", i+1)
		assert.Equal(t, want, res.Remaining)
	}

	res, err := store.Take(ctx, key, limit, now)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Positive(t, res.RetryAfter)
	assert.LessOrEqual(t, res.RetryAfter, 60)

	require.NoError(t, store.Reset(ctx, key))
	res, err = store.Take(ctx, key, limit, now)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, 2, res.Remaining)
}

func TestRedisStore_WindowExpires(t *testing.T) {
	store := newRedisStore(t)
	ctx := context.Background()
	limit := models.Limit{MaxRequests: 1, Window: 200 * time.Millisecond}
	key := models.Key(models.ProfileAPI, "expiring")

	res, err := store.Take(ctx, key, limit, time.Now())
	require.NoError(t, err)
	require.True(t, res.Allowed)

	res, err = store.Take(ctx, key, limit, time.Now())
	require.NoError(t, err)
	require.False(t, res.Allowed)

	time.Sleep(300 * time.Millisecond)
	res, err = store.Take(ctx, key, limit, time.Now())
	require.NoError(t, err)
	assert.True(t, res.Allowed)
}

func TestRedisStore_ConcurrentAdmitsExactlyLimit(t *testing.T) {
	store := newRedisStore(t)
	limit := models.Limit{MaxRequests: 25, Window: time.Minute}
	key := models.Key(models.ProfileUpload, "burst")

	result := testutil.RunConcurrent(100, func(int) bool {
		res, err := store.Take(context.Background(), key, limit, time.Now())
		return err == nil && res.Allowed
	})

	assert.Equal(t, int32(25), result.Accepted)
	assert.Equal(t, int32(75), result.Rejected)
}
