package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// MemoryStore keeps counters in process. Expired keys are swept lazily.
type MemoryStore struct {
	mu        sync.Mutex
	counts    map[string]*counter
	now       func() time.Time
	lastSweep time.Time
}

type counter struct {
	n       int64
	expires time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counts: map[string]*counter{}, now: time.Now}
}

func (m *MemoryStore) Incr(_ context.Context, key string, ttl time.Duration) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if now.Sub(m.lastSweep) > time.Minute {
		for k, c := range m.counts {
			if now.After(c.expires) {
				delete(m.counts, k)
			}
		}
		m.lastSweep = now
	}

	c, ok := m.counts[key]
	if !ok || now.After(c.expires) {
		c = &counter{expires: now.Add(ttl)}
		m.counts[key] = c
	}
	c.n++
	return c.n, nil
}

// Len reports how many keys are held.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.counts)
}

// RedisStore shares counters between instances through INCR and EXPIRE.
type RedisStore struct {
	rdb *redis.Client
}

func NewRedisStore(rdb *redis.Client) *RedisStore { return &RedisStore{rdb: rdb} }

func (s *RedisStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	pipe := s.rdb.Pipeline()
	cnt := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return cnt.Val(), nil
}
