package transport

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// ConnLimiter enforces the per-source-address connection cap spec.md §5
// names (default 20). Acquire reserves a slot for addr; when ok is true the
// caller must invoke release once the connection closes.
type ConnLimiter interface {
	Acquire(ctx context.Context, addr string) (ok bool, release func(), err error)
}

// memLimiter is the default single-process limiter.
type memLimiter struct {
	mu     sync.Mutex
	max    int
	counts map[string]int
}

// NewMemLimiter returns an in-process ConnLimiter, used when no Redis
// address is configured.
func NewMemLimiter(max int) ConnLimiter {
	return &memLimiter{max: max, counts: map[string]int{}}
}

func (m *memLimiter) Acquire(_ context.Context, addr string) (bool, func(), error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.counts[addr] >= m.max {
		return false, nil, nil
	}
	m.counts[addr]++
	release := func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.counts[addr]--
		if m.counts[addr] <= 0 {
			delete(m.counts, addr)
		}
	}
	return true, release, nil
}

// redisLimiter backs the cap with Redis so the limit holds across multiple
// transport process instances sharing one FALCON_REDIS_ADDR, per
// SPEC_FULL.md's connection-cap note.
type redisLimiter struct {
	client *redis.Client
	max    int
	ttl    time.Duration
}

// NewRedisLimiter returns a ConnLimiter backed by client. ttl bounds how
// long a leaked count (process killed before release runs) survives.
func NewRedisLimiter(client *redis.Client, max int, ttl time.Duration) ConnLimiter {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &redisLimiter{client: client, max: max, ttl: ttl}
}

func (r *redisLimiter) key(addr string) string { return "falcon:transport:conns:" + addr }

func (r *redisLimiter) Acquire(ctx context.Context, addr string) (bool, func(), error) {
	key := r.key(addr)
	n, err := r.client.Incr(ctx, key).Result()
	if err != nil {
		return false, nil, err
	}
	if n == 1 {
		r.client.Expire(ctx, key, r.ttl)
	}
	if n > int64(r.max) {
		r.client.Decr(ctx, key)
		return false, nil, nil
	}
	release := func() {
		r.client.Decr(context.Background(), key)
	}
	return true, release, nil
}
