package utils

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig controls redis client behavior.
type RedisConfig struct {
	Addr string

	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration

	PoolSize    int
	PoolTimeout time.Duration

	PingTimeout time.Duration
}

func (c RedisConfig) withDefaults() RedisConfig {
	out := c
	if out.DialTimeout <= 0 {
		out.DialTimeout = 3 * time.Second
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = 2 * time.Second
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = 2 * time.Second
	}
	if out.PoolSize <= 0 {
		out.PoolSize = 10
	}
	if out.PoolTimeout <= 0 {
		out.PoolTimeout = 4 * time.Second
	}
	if out.PingTimeout <= 0 {
		out.PingTimeout = 2 * time.Second
	}
	return out
}

// OpenRedis initializes a Redis client and validates connectivity via PING.
func OpenRedis(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	cfg = cfg.withDefaults()
	if cfg.Addr == "" {
		return nil, errors.New("redis addr is required")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, cfg.PingTimeout)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return rdb, nil
}

// KEYS[1] counter, ARGV[1] limit, ARGV[2] ttl in ms. Returns 1 on acquire, 0 when full.
// The TTL is refreshed on every acquire so a crashed holder frees its slot eventually.
var slotAcquireScript = redis.NewScript(`
local current = redis.call('INCR', KEYS[1])
redis.call('PEXPIRE', KEYS[1], ARGV[2])
if current > tonumber(ARGV[1]) then
  redis.call('DECR', KEYS[1])
  return 0
end
return 1
`)

var slotReleaseScript = redis.NewScript(`
local current = redis.call('DECR', KEYS[1])
if current <= 0 then
  redis.call('DEL', KEYS[1])
end
return 1
`)

// AcquireConcurrencyCap tries to take one of limit slots stored under key.
// It never blocks; callers poll when they need to wait.
func AcquireConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string, limit int, ttl time.Duration) (bool, error) {
	if rdb == nil {
		return false, errors.New("redis client is nil")
	}
	if key == "" {
		return false, errors.New("key is required")
	}
	if limit <= 0 {
		return false, errors.New("limit must be > 0")
	}
	if ttl <= 0 {
		return false, errors.New("ttl must be > 0")
	}

	res, err := slotAcquireScript.Run(ctx, rdb, []string{key}, limit, ttl.Milliseconds()).Int()
	if err != nil {
		return false, fmt.Errorf("acquire slot %s: %w", key, err)
	}
	return res == 1, nil
}

// ReleaseConcurrencyCap returns a slot taken by AcquireConcurrencyCap.
func ReleaseConcurrencyCap(ctx context.Context, rdb redis.Scripter, key string) error {
	if rdb == nil {
		return errors.New("redis client is nil")
	}
	if key == "" {
		return errors.New("key is required")
	}
	if _, err := slotReleaseScript.Run(ctx, rdb, []string{key}).Result(); err != nil {
		return fmt.Errorf("release slot %s: %w", key, err)
	}
	return nil
}
