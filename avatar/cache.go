package avatar

import (
	"context"
	"encoding/json"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Cache is a short-lived memo of prior successful deliveries keyed by
// payload fingerprint. It absorbs duplicate traffic from upstream retries;
// it is not a durable store. Only Success results are ever stored.
type Cache interface {
	Get(ctx context.Context, fingerprint string) (*SpeakResult, bool)
	Put(ctx context.Context, fingerprint string, result *SpeakResult, ttl time.Duration)
	Len() int
}

type cacheEntry struct {
	result    *SpeakResult
	expiresAt time.Time
}

// MemoryCache is a capacity-bounded in-process cache with LRU eviction and
// per-entry TTL expiry.
type MemoryCache struct {
	entries *lru.Cache[string, cacheEntry]
	now     func() time.Time
}

// NewMemoryCache creates a MemoryCache holding at most capacity entries.
func NewMemoryCache(capacity int) (*MemoryCache, error) {
	if capacity <= 0 {
		capacity = 1024
	}
	entries, err := lru.New[string, cacheEntry](capacity)
	if err != nil {
		return nil, err
	}
	return &MemoryCache{entries: entries, now: time.Now}, nil
}

// Get returns the cached result, dropping entries past their TTL.
func (c *MemoryCache) Get(_ context.Context, fingerprint string) (*SpeakResult, bool) {
	entry, ok := c.entries.Get(fingerprint)
	if !ok {
		return nil, false
	}
	if c.now().After(entry.expiresAt) {
		c.entries.Remove(fingerprint)
		return nil, false
	}
	res := *entry.result
	res.Cached = true
	return &res, true
}

// Put stores a result under the fingerprint for ttl.
func (c *MemoryCache) Put(_ context.Context, fingerprint string, result *SpeakResult, ttl time.Duration) {
	if ttl <= 0 || result == nil {
		return
	}
	c.entries.Add(fingerprint, cacheEntry{result: result, expiresAt: c.now().Add(ttl)})
}

// Len returns the current number of entries, expired ones included until
// their next lookup.
func (c *MemoryCache) Len() int { return c.entries.Len() }

// RedisCache shares the delivery memo across client instances. Backend
// failures degrade to a miss rather than failing the request.
type RedisCache struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisCache wraps an existing Redis client. The connection is verified
// with a short ping so misconfiguration surfaces at startup.
func NewRedisCache(client *redis.Client, logger *zap.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &RedisCache{client: client, logger: logger.With(zap.String("component", "cache"))}, nil
}

func (c *RedisCache) Get(ctx context.Context, fingerprint string) (*SpeakResult, bool) {
	data, err := c.client.Get(ctx, fingerprint).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		c.logger.Warn("cache get failed", zap.String("key", fingerprint), zap.Error(err))
		return nil, false
	}
	var res SpeakResult
	if err := json.Unmarshal(data, &res); err != nil {
		c.logger.Warn("cache entry corrupt", zap.String("key", fingerprint), zap.Error(err))
		return nil, false
	}
	res.Cached = true
	return &res, true
}

func (c *RedisCache) Put(ctx context.Context, fingerprint string, result *SpeakResult, ttl time.Duration) {
	if ttl <= 0 || result == nil {
		return
	}
	data, err := json.Marshal(result)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, fingerprint, data, ttl).Err(); err != nil {
		c.logger.Warn("cache set failed", zap.String("key", fingerprint), zap.Error(err))
	}
}

// Len reports the keyspace size of the backing database.
func (c *RedisCache) Len() int {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	n, err := c.client.DBSize(ctx).Result()
	if err != nil {
		return 0
	}
	return int(n)
}
