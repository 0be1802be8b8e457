package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Every script reads the clock with TIME so all instances agree on window edges.
var incrementScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local window = tonumber(ARGV[1])
local resetAt = tonumber(redis.call('HGET', KEYS[1], 'reset_at') or '0')
local count
if now >= resetAt then
	resetAt = now + window
	count = 1
	redis.call('HSET', KEYS[1], 'count', count, 'reset_at', resetAt)
	redis.call('PEXPIREAT', KEYS[1], resetAt)
else
	count = redis.call('HINCRBY', KEYS[1], 'count', 1)
end
return {count, resetAt}
`)

var peekScript = redis.NewScript(`
local t = redis.call('TIME')
local now = tonumber(t[1]) * 1000 + math.floor(tonumber(t[2]) / 1000)
local vals = redis.call('HMGET', KEYS[1], 'count', 'reset_at')
local resetAt = tonumber(vals[2] or '0')
if now >= resetAt then
	return {0, 0}
end
return {tonumber(vals[1] or '0'), resetAt}
`)

// RedisStore keeps each window in a hash that expires with the window.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

var _ CounterStore = (*RedisStore)(nil)

func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "ratelimit"}
}

func (s *RedisStore) key(scopeKey, bucket string) string {
	return fmt.Sprintf("%s:{%s}:%s", s.prefix, scopeKey, bucket)
}

func (s *RedisStore) Increment(ctx context.Context, scopeKey, bucket string, window time.Duration) (Counter, error) {
	vals, err := incrementScript.Run(ctx, s.client, []string{s.key(scopeKey, bucket)}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return Counter{}, fmt.Errorf("ratelimit: redis increment: %w", err)
	}
	return counterFromScript(vals)
}

func (s *RedisStore) Peek(ctx context.Context, scopeKey, bucket string) (Counter, error) {
	vals, err := peekScript.Run(ctx, s.client, []string{s.key(scopeKey, bucket)}).Int64Slice()
	if err != nil {
		return Counter{}, fmt.Errorf("ratelimit: redis peek: %w", err)
	}
	return counterFromScript(vals)
}

func (s *RedisStore) Reset(ctx context.Context, scopeKey, bucket string) error {
	if err := s.client.Del(ctx, s.key(scopeKey, bucket)).Err(); err != nil {
		return fmt.Errorf("ratelimit: redis reset: %w", err)
	}
	return nil
}

func counterFromScript(vals []int64) (Counter, error) {
	if len(vals) != 2 {
		return Counter{}, fmt.Errorf("ratelimit: unexpected script reply %v", vals)
	}
	if vals[1] == 0 {
		return Counter{Count: vals[0]}, nil
	}
	return Counter{Count: vals[0], ResetAt: time.UnixMilli(vals[1])}, nil
}
