package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// WindowCounter counts hits per key in fixed windows. Hit returns the count
// including this hit and the time left until the window resets.
type WindowCounter interface {
	Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error)
}

type memoryWindow struct {
	count int
	reset time.Time
}

// sweepEvery is how many hits pass between sweeps of expired windows.
const sweepEvery = 1024

// MemoryCounter keeps windows in process. Each replica counts on its own.
// Keys may carry caller-supplied emails, so expired windows are dropped
// every sweepEvery hits.
type MemoryCounter struct {
	mu         sync.Mutex
	now        func() time.Time
	windows    map[string]*memoryWindow
	sinceSweep int
}

func NewMemoryCounter() *MemoryCounter {
	return &MemoryCounter{now: time.Now, windows: map[string]*memoryWindow{}}
}

func (c *MemoryCounter) Hit(_ context.Context, key string, window time.Duration) (int, time.Duration, error) {
	now := c.now()
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sinceSweep++
	if c.sinceSweep >= sweepEvery {
		c.sweep(now)
	}
	w, ok := c.windows[key]
	if !ok || !now.Before(w.reset) {
		w = &memoryWindow{reset: now.Add(window)}
		c.windows[key] = w
	}
	w.count++
	return w.count, w.reset.Sub(now), nil
}

func (c *MemoryCounter) sweep(now time.Time) {
	for key, w := range c.windows {
		if !now.Before(w.reset) {
			delete(c.windows, key)
		}
	}
	c.sinceSweep = 0
}

// Len reports how many windows are held, expired or not.
func (c *MemoryCounter) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.windows)
}

// RedisCounter shares windows between replicas with INCR plus PEXPIRE.
type RedisCounter struct {
	client *redis.Client
	prefix string
}

func NewRedisCounter(client *redis.Client) *RedisCounter {
	return &RedisCounter{client: client, prefix: "ratelimit:"}
}

func (c *RedisCounter) Hit(ctx context.Context, key string, window time.Duration) (int, time.Duration, error) {
	k := c.prefix + key
	n, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	ttl, err := c.client.PTTL(ctx, k).Result()
	if err != nil {
		return 0, 0, err
	}
	// A key without expiry is either new or lost its PEXPIRE to a crash.
	if ttl < 0 {
		if err := c.client.PExpire(ctx, k, window).Err(); err != nil {
			return 0, 0, err
		}
		ttl = window
	}
	return int(n), ttl, nil
}
