package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testLimiterConfig = LimiterConfig{
	MaxAttempts:  3,
	Window:       time.Minute,
	LockDuration: 5 * time.Minute,
}

func TestMemoryLimiterLocksAfterMaxAttempts(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(testLimiterConfig)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for want := 2; want >= 0; want-- {
		remaining, err := l.RecordFailure(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.Equal(t, want, remaining)
	}

	retryAfter, err := l.Check(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, retryAfter)

	retryAfter, err = l.Check(ctx, "192.0.2.2")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)

	now = now.Add(5 * time.Minute)
	retryAfter, err = l.Check(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)
}

func TestMemoryLimiterWindowExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(testLimiterConfig)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	_, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	_, err = l.RecordFailure(ctx, "ip")
	require.NoError(t, err)

	now = now.Add(2 * time.Minute)
	remaining, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestMemoryLimiterReset(t *testing.T) {
	l := NewMemoryLimiter(testLimiterConfig)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.RecordFailure(ctx, "ip")
		require.NoError(t, err)
	}
	require.NoError(t, l.Reset(ctx, "ip"))

	retryAfter, err := l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)
}

func TestLimiterConfigDefaults(t *testing.T) {
	l := NewMemoryLimiter(LimiterConfig{})
	assert.Equal(t, DefaultLimiterConfig(), l.cfg)
}

func newTestRedisLimiter(t *testing.T) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return NewRedisLimiter(rdb, testLimiterConfig), mr
}

func TestRedisLimiterLocksAfterMaxAttempts(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	ctx := context.Background()

	retryAfter, err := l.Check(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)

	for want := 2; want >= 0; want-- {
		remaining, err := l.RecordFailure(ctx, "192.0.2.1")
		require.NoError(t, err)
		assert.Equal(t, want, remaining)
	}

	retryAfter, err = l.Check(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Greater(t, retryAfter, time.Duration(0))
	assert.LessOrEqual(t, retryAfter, 5*time.Minute)
	assert.False(t, mr.Exists("auth:login:fail:192.0.2.1"))

	mr.FastForward(6 * time.Minute)
	retryAfter, err = l.Check(ctx, "192.0.2.1")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)
}

func TestRedisLimiterWindowExpires(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	ctx := context.Background()

	_, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	_, err = l.RecordFailure(ctx, "ip")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)
	remaining, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)
}

func TestRedisLimiterReset(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.RecordFailure(ctx, "ip")
		require.NoError(t, err)
	}
	require.NoError(t, l.Reset(ctx, "ip"))
	assert.False(t, mr.Exists("auth:login:lock:ip"))

	retryAfter, err := l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)
}

func TestRedisLimiterUnavailable(t *testing.T) {
	l, mr := newTestRedisLimiter(t)
	mr.Close()

	_, err := l.Check(context.Background(), "ip")
	assert.ErrorIs(t, err, ErrLimiterUnavailable)
	_, err = l.RecordFailure(context.Background(), "ip")
	assert.ErrorIs(t, err, ErrLimiterUnavailable)
}

// ロック時間が失敗の集計期間より短くても、ロック解除後は最初から数え直す。
var shortLockConfig = LimiterConfig{
	MaxAttempts:  3,
	Window:       15 * time.Minute,
	LockDuration: 10 * time.Minute,
}

func TestMemoryLimiterStartsFreshAfterLockExpires(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewMemoryLimiter(shortLockConfig)
	l.now = func() time.Time { return now }
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.RecordFailure(ctx, "ip")
		require.NoError(t, err)
	}
	retryAfter, err := l.Check(ctx, "ip")
	require.NoError(t, err)
	require.Equal(t, 10*time.Minute, retryAfter)

	now = now.Add(11 * time.Minute)
	remaining, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	retryAfter, err = l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)
}

func TestRedisLimiterStartsFreshAfterLockExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLimiter(rdb, shortLockConfig)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := l.RecordFailure(ctx, "ip")
		require.NoError(t, err)
	}
	retryAfter, err := l.Check(ctx, "ip")
	require.NoError(t, err)
	require.Greater(t, retryAfter, time.Duration(0))

	mr.FastForward(11 * time.Minute)
	remaining, err := l.RecordFailure(ctx, "ip")
	require.NoError(t, err)
	assert.Equal(t, 2, remaining)

	retryAfter, err = l.Check(ctx, "ip")
	require.NoError(t, err)
	assert.Zero(t, retryAfter)
}
