package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"

	"github.com/FranksOps/sourcer/internal/metrics"
)

// DefaultCacheTTL is how long a cached lookup stays valid.
const DefaultCacheTTL = 24 * time.Hour

// Cache stores encoded registry records.
type Cache interface {
	// Get returns the value for key and whether it was present.
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// RedisCache keeps records in Redis under a key prefix.
type RedisCache struct {
	client *redis.Client
	prefix string
}

// NewRedisCache connects to the Redis server at url (redis://host:port/db)
// and verifies the connection.
func NewRedisCache(ctx context.Context, url, prefix string) (*RedisCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("registry: invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("registry: redis ping: %w", err)
	}
	return &RedisCache{client: client, prefix: prefix}, nil
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	b, err := c.client.Get(ctx, c.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return b, true, nil
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, c.prefix+key, value, ttl).Err()
}

// Close releases the Redis connection pool.
func (c *RedisCache) Close() error {
	return c.client.Close()
}

// DefaultMemoryCacheSize bounds a MemoryCache built with a zero size.
const DefaultMemoryCacheSize = 4096

// MemoryCache is an in-process, size-bounded Cache used when no Redis server
// is configured. Entries expire after the ttl given to NewMemoryCache; the
// per-call ttl of Set is ignored.
type MemoryCache struct {
	lru *expirable.LRU[string, []byte]
}

func NewMemoryCache(size int, ttl time.Duration) *MemoryCache {
	if size <= 0 {
		size = DefaultMemoryCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	return &MemoryCache{lru: expirable.NewLRU[string, []byte](size, nil, ttl)}
}

func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	v, ok := c.lru.Get(key)
	return v, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.lru.Add(key, append([]byte(nil), value...))
	return nil
}

// Len reports the number of live entries.
func (c *MemoryCache) Len() int {
	return c.lru.Len()
}

// MockNamespace names the cache entries of a synthetic store built from
// seed. Stores from different seeds hold different companies.
func MockNamespace(seed uint64) string {
	return fmt.Sprintf("mock:%d", seed)
}

// RemoteNamespace names the cache entries of the registry API at baseURL.
func RemoteNamespace(baseURL string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return "remote:" + strings.TrimRight(baseURL, "/")
}

// CachedProvider wraps a Provider and memoizes ok and not_found records.
// Error records are never cached so transient failures are retried. Cache
// failures are logged and bypassed. Keys carry the namespace of the wrapped
// provider so one cache can serve several providers.
type CachedProvider struct {
	next      Provider
	cache     Cache
	namespace string
	ttl       time.Duration
	logger    *slog.Logger
}

var _ Provider = (*CachedProvider)(nil)

// NewCachedProvider wraps next. namespace identifies the data behind next,
// see MockNamespace and RemoteNamespace, and must not be empty.
func NewCachedProvider(next Provider, cache Cache, namespace string, ttl time.Duration, logger *slog.Logger) (*CachedProvider, error) {
	if strings.TrimSpace(namespace) == "" {
		return nil, ErrCacheNamespace
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &CachedProvider{next: next, cache: cache, namespace: namespace, ttl: ttl, logger: logger}, nil
}

func (p *CachedProvider) BasicInfo(ctx context.Context, name string) (Record, error) {
	return p.lookup(ctx, OpBasicInfo, name)
}

func (p *CachedProvider) RiskInfo(ctx context.Context, name string) (Record, error) {
	return p.lookup(ctx, OpRiskInfo, name)
}

func (p *CachedProvider) IntellectualProperty(ctx context.Context, name string) (Record, error) {
	return p.lookup(ctx, OpIntellectualProperty, name)
}

func (p *CachedProvider) FinancialData(ctx context.Context, name string) (Record, error) {
	return p.lookup(ctx, OpFinancialData, name)
}

func (p *CachedProvider) cacheKey(op Operation, name string) string {
	return p.namespace + ":" + string(op) + ":" + name
}

func (p *CachedProvider) lookup(ctx context.Context, op Operation, name string) (Record, error) {
	key := p.cacheKey(op, name)

	b, ok, err := p.cache.Get(ctx, key)
	switch {
	case err != nil:
		metrics.RegistryCacheTotal.WithLabelValues("error").Inc()
		p.logger.Warn("registry cache read failed", "key", key, "err", err)
	case ok:
		var rec Record
		if err := json.Unmarshal(b, &rec); err == nil && rec.Status != "" {
			metrics.RegistryCacheTotal.WithLabelValues("hit").Inc()
			return rec, nil
		}
		metrics.RegistryCacheTotal.WithLabelValues("error").Inc()
		p.logger.Warn("discarding undecodable cache entry", "key", key)
	default:
		metrics.RegistryCacheTotal.WithLabelValues("miss").Inc()
	}

	rec, err := Lookup(ctx, p.next, op, name)
	if err != nil {
		return rec, err
	}
	if rec.Status == StatusError {
		return rec, nil
	}

	enc, err := json.Marshal(rec)
	if err == nil {
		err = p.cache.Set(ctx, key, enc, p.ttl)
	}
	if err != nil {
		p.logger.Warn("registry cache write failed", "key", key, "err", err)
	}
	return rec, nil
}
