package service

import (
	"context"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// Throttle grants at most one action per key per window.
type Throttle interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

type RedisThrottle struct {
	Redis  *redis.Client
	Prefix string
}

func NewRedisThrottle(rdb *redis.Client) *RedisThrottle {
	return &RedisThrottle{Redis: rdb, Prefix: "otp_cooldown:"}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	return t.Redis.SetNX(ctx, t.Prefix+key, 1, window).Result()
}

// MemoryThrottle is the single-process fallback used when redis is disabled.
type MemoryThrottle struct {
	mu    sync.Mutex
	until map[string]time.Time
	Now   func() time.Time
}

func NewMemoryThrottle() *MemoryThrottle {
	return &MemoryThrottle{until: make(map[string]time.Time), Now: time.Now}
}

func (t *MemoryThrottle) Allow(_ context.Context, key string, window time.Duration) (bool, error) {
	if window <= 0 {
		return true, nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.Now()
	if until, ok := t.until[key]; ok && now.Before(until) {
		return false, nil
	}
	for k, until := range t.until {
		if !now.Before(until) {
			delete(t.until, k)
		}
	}
	t.until[key] = now.Add(window)
	return true, nil
}
