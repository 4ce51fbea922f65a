package ratelimiter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// consumeScript refills and drains one bucket atomically. State is a hash
// {tokens, refill} with refill in unix milliseconds.
//
// KEYS[1] bucket key
// ARGV    capacity, refill rate, interval ms, now ms, tokens, ttl ms
const consumeScript = `
local capacity = tonumber(ARGV[1])
local rate = tonumber(ARGV[2])
local interval = tonumber(ARGV[3])
local now = tonumber(ARGV[4])
local n = tonumber(ARGV[5])
local ttl = tonumber(ARGV[6])

local state = redis.call('HMGET', KEYS[1], 'tokens', 'refill')
local tokens = tonumber(state[1])
local refill = tonumber(state[2])
if tokens == nil or refill == nil then
  tokens = capacity
  refill = now
end

local intervals = math.floor((now - refill) / interval)
local cap = math.floor(capacity / rate) + 1
if intervals > cap then
  intervals = cap
end
if intervals > 0 then
  tokens = math.min(tokens + intervals * rate, capacity)
  refill = now
end

tokens = tokens - n
redis.call('HSET', KEYS[1], 'tokens', tokens, 'refill', refill)
redis.call('PEXPIRE', KEYS[1], ttl)
return {tokens, refill}
`

var consumeLua = redis.NewScript(consumeScript)

// RedisStore keeps buckets in Redis so every instance shares one budget.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

var _ Store = (*RedisStore)(nil)

type RedisStoreOption func(*RedisStore)

// WithRedisClock overrides time.Now
func WithRedisClock(now func() time.Time) RedisStoreOption {
	return func(s *RedisStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewRedisStore returns a store namespacing its keys with prefix.
func NewRedisStore(rdb redis.UniversalClient, prefix string, opts ...RedisStoreOption) *RedisStore {
	if prefix == "" {
		prefix = "ratelimit"
	}
	s := &RedisStore{rdb: rdb, prefix: prefix, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisStore) key(k string) string { return s.prefix + ":" + k }

func (s *RedisStore) ConsumeTokens(ctx context.Context, key string, tokens int, cfg Config) (int, time.Time, error) {
	res, err := consumeLua.Run(ctx, s.rdb, []string{s.key(key)},
		cfg.Capacity,
		cfg.RefillRate,
		cfg.RefillInterval.Milliseconds(),
		s.now().UnixMilli(),
		tokens,
		cfg.fullAfter().Milliseconds(),
	).Int64Slice()
	if err != nil {
		return 0, time.Time{}, errors.Join(ErrStoreUnavailable, err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("%w: unexpected script reply %v", ErrStoreUnavailable, res)
	}
	resetAt := time.UnixMilli(res[1]).Add(cfg.RefillInterval)
	return int(res[0]), resetAt, nil
}

func (s *RedisStore) Reset(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, s.key(key)).Err(); err != nil {
		return errors.Join(ErrStoreUnavailable, err)
	}
	return nil
}
