package reward

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
)

// DailyCapLimiter enforces the fixed maximum of rewarded ad views per user
// per calendar day. Acquire must be atomic: a rejected attempt never
// consumes a slot, and concurrent attempts can never push the counter past
// the cap.
type DailyCapLimiter interface {
	// Acquire takes one slot for (userID, day) if the counter is below
	// cap. It reports the count after the call and whether the slot was
	// taken.
	Acquire(ctx context.Context, userID, day string, cap int64) (count int64, ok bool, err error)
	// Count reads the current counter without consuming a slot.
	Count(ctx context.Context, userID, day string) (int64, error)
}

// acquireScript increments only while below the cap, so check and increment
// are one atomic step on the redis side.
var acquireScript = redis.NewScript(`
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= tonumber(ARGV[1]) then
  return -1
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('EXPIRE', KEYS[1], ARGV[2])
end
return current
`)

type RedisLimiter struct {
	rdb *redis.Client
}

type LimiterParams struct {
	fx.In
	Redis *redis.Client
}

func NewRedisLimiter(p LimiterParams) DailyCapLimiter {
	return &RedisLimiter{rdb: p.Redis}
}

func capKey(userID, day string) string {
	return fmt.Sprintf("adcap:%s:%s", userID, day)
}

func (l *RedisLimiter) Acquire(ctx context.Context, userID, day string, cap int64) (int64, bool, error) {
	ttl := int64(time.Until(time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)).Seconds())
	if ttl <= 0 {
		ttl = 1
	}

	res, err := acquireScript.Run(ctx, l.rdb, []string{capKey(userID, day)}, cap, ttl).Int64()
	if err != nil {
		return 0, false, err
	}

	if res < 0 {
		return cap, false, nil
	}
	return res, true, nil
}

func (l *RedisLimiter) Count(ctx context.Context, userID, day string) (int64, error) {
	count, err := l.rdb.Get(ctx, capKey(userID, day)).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	return count, err
}

// MemoryLimiter is the in-process implementation used by tests and
// single-node setups without redis.
type MemoryLimiter struct {
	mu     sync.Mutex
	counts map[string]int64
}

func NewMemoryLimiter() *MemoryLimiter {
	return &MemoryLimiter{counts: make(map[string]int64)}
}

func (l *MemoryLimiter) Acquire(ctx context.Context, userID, day string, cap int64) (int64, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := capKey(userID, day)
	if l.counts[key] >= cap {
		return l.counts[key], false, nil
	}

	l.counts[key]++
	return l.counts[key], true, nil
}

func (l *MemoryLimiter) Count(ctx context.Context, userID, day string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.counts[capKey(userID, day)], nil
}
