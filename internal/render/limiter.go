package render

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"passport-platform/internal/metrics"
	"passport-platform/pkg/utils"
)

// Limiter bounds how many renders run at once. Acquire blocks until a slot frees or ctx ends.
type Limiter interface {
	Acquire(ctx context.Context) (release func(), err error)
}

// LocalLimiter caps renders inside one process.
type LocalLimiter struct {
	sem *semaphore.Weighted
}

func NewLocalLimiter(slots int) *LocalLimiter {
	if slots <= 0 {
		slots = 1
	}
	return &LocalLimiter{sem: semaphore.NewWeighted(int64(slots))}
}

func (l *LocalLimiter) Acquire(ctx context.Context) (func(), error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("render slot: %w", err)
	}
	metrics.RenderSlotsInUse.Inc()
	return func() {
		metrics.RenderSlotsInUse.Dec()
		l.sem.Release(1)
	}, nil
}

// RedisLimiter caps renders across every replica sharing one Redis.
type RedisLimiter struct {
	rdb   redis.Scripter
	key   string
	slots int
	// ttl bounds how long a crashed holder keeps a slot.
	ttl  time.Duration
	poll time.Duration
}

func NewRedisLimiter(rdb redis.Scripter, key string, slots int, renderTimeout time.Duration) *RedisLimiter {
	if slots <= 0 {
		slots = 1
	}
	return &RedisLimiter{
		rdb:   rdb,
		key:   key,
		slots: slots,
		ttl:   2*renderTimeout + 10*time.Second,
		poll:  200 * time.Millisecond,
	}
}

func (l *RedisLimiter) Acquire(ctx context.Context) (func(), error) {
	t := time.NewTicker(l.poll)
	defer t.Stop()
	for {
		ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, l.key, l.slots, l.ttl)
		if err != nil {
			return nil, err
		}
		if ok {
			metrics.RenderSlotsInUse.Inc()
			return l.releaser(), nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("render slot: %w", ctx.Err())
		case <-t.C:
		}
	}
}

func (l *RedisLimiter) releaser() func() {
	return func() {
		metrics.RenderSlotsInUse.Dec()
		// The caller's context may already be cancelled; the slot must still go back.
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := utils.ReleaseConcurrencyCap(ctx, l.rdb, l.key); err != nil {
			slog.Default().Warn("render slot release failed", "key", l.key, "err", err)
		}
	}
}
