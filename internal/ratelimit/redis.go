package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// incrScript increments the counter and arms the window expiry on the first
// hit, returning the count and the remaining TTL in one round trip. Running
// it as a script keeps increment and expiry atomic under concurrent clients.
var incrScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if count == 1 then
  redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
local ttl = redis.call("PTTL", KEYS[1])
return {count, ttl}
`)

// RedisStore keeps counters in Redis so limits hold across processes.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit:"}
}

func (s *RedisStore) Incr(ctx context.Context, key string, win time.Duration) (int64, time.Duration, error) {
	vals, err := incrScript.Run(ctx, s.client, []string{s.prefix + key}, win.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, 0, fmt.Errorf("redis incr: %w", err)
	}
	if len(vals) != 2 {
		return 0, 0, fmt.Errorf("redis incr: unexpected reply %v", vals)
	}
	count, ttlMillis := vals[0], vals[1]
	elapsed := win - time.Duration(ttlMillis)*time.Millisecond
	if ttlMillis < 0 || elapsed < 0 {
		elapsed = 0
	}
	return count, elapsed, nil
}
