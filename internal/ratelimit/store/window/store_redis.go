package window

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"admissions/internal/ratelimit/models"
)

// takeScript applies the fixed-window rule atomically. A full window is left
// untouched; otherwise the counter is incremented and the expiry is set when
// the window is opened. Returns {count, ttl_ms, allowed}.
var takeScript = redis.NewScript(`
local max = tonumber(ARGV[2])
local current = tonumber(redis.call('GET', KEYS[1]) or '0')
if current >= max then
  local ttl = redis.call('PTTL', KEYS[1])
  if ttl >= 0 then
    return {current, ttl, 0}
  end
  redis.call('DEL', KEYS[1])
  current = 0
end
current = redis.call('INCR', KEYS[1])
if current == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {current, ttl, 1}
`)

// RedisStore shares fixed windows across instances. Keys expire with their
// window, so no sweep is needed.
type RedisStore struct {
	client redis.UniversalClient
}

// NewRedisStore accepts *redis.Client, *redis.ClusterClient or a ring.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Take(ctx context.Context, key string, limit models.Limit, now time.Time) (models.Result, error) {
	raw, err := takeScript.Run(ctx, s.client, []string{key}, limit.Window.Milliseconds(), limit.MaxRequests).Int64Slice()
	if err != nil {
		return models.Result{}, fmt.Errorf("redis take %s: %w", key, err)
	}
	if len(raw) != 3 {
		return models.Result{}, fmt.Errorf("redis take %s: unexpected reply length %d", key, len(raw))
	}

	count, ttl, allowed := int(raw[0]), time.Duration(raw[1])*time.Millisecond, raw[2] == 1
	resetAt := now.Add(ttl)
	if !allowed {
		return models.Reject(limit, resetAt, now), nil
	}
	return models.Allow(limit, count, resetAt), nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis reset %s: %w", key, err)
	}
	return nil
}
