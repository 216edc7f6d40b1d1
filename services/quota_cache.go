package services

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
)

// MemoryQuotaCache is the default single-instance quota cache. The clock is
// injected so expiry is testable without sleeping.
type MemoryQuotaCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]memoryQuotaEntry
}

type memoryQuotaEntry struct {
	decision  QuotaDecision
	expiresAt time.Time
}

// NewMemoryQuotaCache builds an in-process cache; now may be nil for the
// real clock.
func NewMemoryQuotaCache(now func() time.Time) *MemoryQuotaCache {
	if now == nil {
		now = time.Now
	}
	return &MemoryQuotaCache{now: now, entries: make(map[string]memoryQuotaEntry)}
}

func (c *MemoryQuotaCache) Get(_ context.Context, key string) (QuotaDecision, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return QuotaDecision{}, false
	}
	if c.now().After(entry.expiresAt) {
		delete(c.entries, key)
		return QuotaDecision{}, false
	}
	return entry.decision, true
}

func (c *MemoryQuotaCache) Set(_ context.Context, key string, d QuotaDecision, ttl time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = memoryQuotaEntry{decision: d, expiresAt: c.now().Add(ttl)}
}

func (c *MemoryQuotaCache) Delete(_ context.Context, key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
}

// RedisQuotaCache shares quota decisions and invalidations across server
// instances. Redis owns the TTL; cache errors degrade to misses so a Redis
// outage never blocks submissions.
type RedisQuotaCache struct {
	client *redis.Client
}

func NewRedisQuotaCache(client *redis.Client) *RedisQuotaCache {
	return &RedisQuotaCache{client: client}
}

func (c *RedisQuotaCache) Get(ctx context.Context, key string) (QuotaDecision, bool) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return QuotaDecision{}, false
	}
	var d QuotaDecision
	if err := json.Unmarshal(raw, &d); err != nil {
		return QuotaDecision{}, false
	}
	return d, true
}

func (c *RedisQuotaCache) Set(ctx context.Context, key string, d QuotaDecision, ttl time.Duration) {
	raw, err := json.Marshal(d)
	if err != nil {
		return
	}
	c.client.Set(ctx, key, raw, ttl)
}

func (c *RedisQuotaCache) Delete(ctx context.Context, key string) {
	c.client.Del(ctx, key)
}
