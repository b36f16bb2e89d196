package interactions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"pillscan/internal/scraper"
)

const cacheKeyPrefix = "pillscan:drugid:"

// IDCache remembers resolved site IDs by drug name.
type IDCache = scraper.IDCache

func cacheKey(drugName string) string {
	return strings.ToLower(strings.TrimSpace(drugName))
}

type memoryEntry struct {
	id      string
	expires time.Time
}

// MemoryCache is an in-process IDCache with a fixed TTL.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache. A ttl of zero keeps entries forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

func (e memoryEntry) expired(now time.Time) bool {
	return !e.expires.IsZero() && now.After(e.expires)
}

func (c *MemoryCache) Get(_ context.Context, drugName string) (string, bool, error) {
	key := cacheKey(drugName)
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return "", false, nil
	}
	if e.expired(c.now()) {
		c.evict(key)
		return "", false, nil
	}
	return e.id, true, nil
}

// evict deletes key if it is still expired under the write lock. A Set that
// raced the caller's read survives.
func (c *MemoryCache) evict(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && e.expired(c.now()) {
		delete(c.entries, key)
	}
}

func (c *MemoryCache) Set(_ context.Context, drugName, id string) error {
	e := memoryEntry{id: id}
	if c.ttl > 0 {
		e.expires = c.now().Add(c.ttl)
	}
	c.mu.Lock()
	c.entries[cacheKey(drugName)] = e
	c.mu.Unlock()
	return nil
}

// Prune deletes every expired entry.
func (c *MemoryCache) Prune() {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	for key, e := range c.entries {
		if e.expired(now) {
			delete(c.entries, key)
		}
	}
}

// Run prunes every interval until ctx is done.
func (c *MemoryCache) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Prune()
		}
	}
}

// RedisCache stores site IDs in redis.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache wraps an existing client.
func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// DialRedisCache parses a redis:// URL and verifies the connection.
func DialRedisCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return NewRedisCache(client, ttl), nil
}

func (c *RedisCache) Get(ctx context.Context, drugName string) (string, bool, error) {
	id, err := c.client.Get(ctx, cacheKeyPrefix+cacheKey(drugName)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read cached drug ID: %w", err)
	}
	return id, true, nil
}

func (c *RedisCache) Set(ctx context.Context, drugName, id string) error {
	if err := c.client.Set(ctx, cacheKeyPrefix+cacheKey(drugName), id, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache drug ID: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
