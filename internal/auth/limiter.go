package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrLimiterUnavailable は試行回数の保存先にアクセスできないことを表します。
var ErrLimiterUnavailable = errors.New("auth: attempt limiter unavailable")

// AttemptLimiter はログイン失敗回数をキー（クライアントIP）ごとに数えます。
type AttemptLimiter interface {
	// Check はロック中なら残りのロック時間を返します。ロックされていなければ 0 です。
	Check(ctx context.Context, key string) (time.Duration, error)
	// RecordFailure は失敗を1回記録し、ロックまでの残り回数を返します。
	RecordFailure(ctx context.Context, key string) (int, error)
	// Reset は記録を消去します。
	Reset(ctx context.Context, key string) error
}

// LimiterConfig は試行回数制限の設定です。
type LimiterConfig struct {
	MaxAttempts  int
	Window       time.Duration
	LockDuration time.Duration
}

// DefaultLimiterConfig は 15 分以内に 5 回失敗すると 10 分ロックする設定です。
func DefaultLimiterConfig() LimiterConfig {
	return LimiterConfig{
		MaxAttempts:  5,
		Window:       15 * time.Minute,
		LockDuration: 10 * time.Minute,
	}
}

func (c LimiterConfig) withDefaults() LimiterConfig {
	d := DefaultLimiterConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.Window <= 0 {
		c.Window = d.Window
	}
	if c.LockDuration <= 0 {
		c.LockDuration = d.LockDuration
	}
	return c
}

type attemptState struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

// MemoryLimiter はプロセス内のマップで試行回数を管理します。
type MemoryLimiter struct {
	cfg      LimiterConfig
	now      func() time.Time
	lock     sync.Mutex
	attempts map[string]*attemptState
}

// NewMemoryLimiter は MemoryLimiter を作成します。
func NewMemoryLimiter(cfg LimiterConfig) *MemoryLimiter {
	return &MemoryLimiter{
		cfg:      cfg.withDefaults(),
		now:      time.Now,
		attempts: make(map[string]*attemptState),
	}
}

// Check は AttemptLimiter を実装します。
func (m *MemoryLimiter) Check(_ context.Context, key string) (time.Duration, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	state, ok := m.attempts[key]
	if !ok {
		return 0, nil
	}
	now := m.now()
	if !now.Before(state.lockedUntil) {
		return 0, nil
	}
	return state.lockedUntil.Sub(now), nil
}

// RecordFailure は AttemptLimiter を実装します。
func (m *MemoryLimiter) RecordFailure(_ context.Context, key string) (int, error) {
	m.lock.Lock()
	defer m.lock.Unlock()

	now := m.now()
	state, ok := m.attempts[key]
	if !ok || now.Sub(state.firstAttempt) > m.cfg.Window {
		state = &attemptState{firstAttempt: now}
		m.attempts[key] = state
	}

	state.count++
	if state.count >= m.cfg.MaxAttempts {
		// ロック解除後は新しい期間として数え直す
		state.lockedUntil = now.Add(m.cfg.LockDuration)
		state.count = 0
		state.firstAttempt = now
		return 0, nil
	}

	return m.cfg.MaxAttempts - state.count, nil
}

// Reset は AttemptLimiter を実装します。
func (m *MemoryLimiter) Reset(_ context.Context, key string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.attempts, key)
	return nil
}

// RedisLimiter は Redis のカウンターで試行回数を管理します。複数プロセスで共有できます。
type RedisLimiter struct {
	rdb    redis.UniversalClient
	cfg    LimiterConfig
	prefix string
}

// NewRedisLimiter は RedisLimiter を作成します。
func NewRedisLimiter(rdb redis.UniversalClient, cfg LimiterConfig) *RedisLimiter {
	return &RedisLimiter{
		rdb:    rdb,
		cfg:    cfg.withDefaults(),
		prefix: "auth:login",
	}
}

func (r *RedisLimiter) failKey(key string) string {
	return fmt.Sprintf("%s:fail:%s", r.prefix, key)
}

func (r *RedisLimiter) lockKey(key string) string {
	return fmt.Sprintf("%s:lock:%s", r.prefix, key)
}

// Check は AttemptLimiter を実装します。
func (r *RedisLimiter) Check(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := r.rdb.PTTL(ctx, r.lockKey(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	// キーが無い場合は負の値が返る
	if ttl <= 0 {
		return 0, nil
	}
	return ttl, nil
}

// RecordFailure は AttemptLimiter を実装します。
func (r *RedisLimiter) RecordFailure(ctx context.Context, key string) (int, error) {
	failKey := r.failKey(key)

	count, err := r.rdb.Incr(ctx, failKey).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	if count == 1 {
		if err := r.rdb.Expire(ctx, failKey, r.cfg.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
		}
	}

	if count < int64(r.cfg.MaxAttempts) {
		return r.cfg.MaxAttempts - int(count), nil
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, r.lockKey(key), 1, r.cfg.LockDuration)
	pipe.Del(ctx, failKey)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return 0, nil
}

// Reset は AttemptLimiter を実装します。
func (r *RedisLimiter) Reset(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, r.failKey(key), r.lockKey(key)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrLimiterUnavailable, err)
	}
	return nil
}
