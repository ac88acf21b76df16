package service

import (
	"context"

	"github.com/go-redis/redis/v8"
)

// Sequence yields the next employee number for a department code. floor is
// the largest number already persisted; the result is always above it.
// Release hands back a number whose insert failed, when nothing was handed
// out after it.
type Sequence interface {
	Next(ctx context.Context, code string, floor int) (int, error)
	Release(ctx context.Context, code string, n int) error
}

// ScanSequence derives the next number from the store maximum alone.
type ScanSequence struct{}

func (ScanSequence) Next(_ context.Context, _ string, floor int) (int, error) {
	return floor + 1, nil
}

func (ScanSequence) Release(context.Context, string, int) error { return nil }

var nextSequenceScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
local floor = tonumber(ARGV[1])
if current < floor then
	redis.call('SET', KEYS[1], floor)
end
return redis.call('INCR', KEYS[1])
`)

var releaseSequenceScript = redis.NewScript(`
if tonumber(redis.call('GET', KEYS[1]) or '0') == tonumber(ARGV[1]) then
	return redis.call('DECR', KEYS[1])
end
return -1
`)

// RedisSequence keeps one atomic counter per department code. The counter is
// raised to the store maximum before incrementing, so a flushed or fresh
// redis never hands out a number that is already taken.
type RedisSequence struct {
	Redis  *redis.Client
	Prefix string
}

func NewRedisSequence(rdb *redis.Client) *RedisSequence {
	return &RedisSequence{Redis: rdb, Prefix: "employee_id_seq:"}
}

func (s *RedisSequence) Next(ctx context.Context, code string, floor int) (int, error) {
	n, err := nextSequenceScript.Run(ctx, s.Redis, []string{s.Prefix + code}, floor).Int()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// Release rewinds the counter only while n is still its latest value. A
// number released after a later allocation stays a gap.
func (s *RedisSequence) Release(ctx context.Context, code string, n int) error {
	return releaseSequenceScript.Run(ctx, s.Redis, []string{s.Prefix + code}, n).Err()
}
