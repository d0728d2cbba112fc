package cache

import (
	"time"

	"github.com/dgraph-io/ristretto"
)

// ByteCache caches serialized response bodies with a TTL. It backs the HTTP
// layer's response caching and is separate from the namespaced Store, which
// must be able to enumerate its entries.
type ByteCache interface {
	// Get returns the cached bytes and true if found and not expired.
	Get(key string) ([]byte, bool)

	// Set stores value under key. TTL of 0 means the default TTL.
	Set(key string, value []byte, ttl time.Duration)

	// Delete removes key.
	Delete(key string)

	// Clear removes everything.
	Clear()
}

// ResponseCache is a size-bounded LRU ByteCache built on ristretto.
type ResponseCache struct {
	inner      *ristretto.Cache
	defaultTTL time.Duration
}

// ResponseCacheConfig bounds the response cache.
type ResponseCacheConfig struct {
	MaxSizeMB  int64
	MaxEntries int64
	DefaultTTL time.Duration
}

type respItem struct {
	body      []byte
	expiresAt time.Time
}

// NewResponseCache creates a response cache with the given bounds.
func NewResponseCache(cfg ResponseCacheConfig) (*ResponseCache, error) {
	// Ristretto wants ~10x the expected entry count for its counters.
	counters := cfg.MaxEntries * 10
	if counters < 1000 {
		counters = 1000
	}
	inner, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     cfg.MaxSizeMB * 1024 * 1024,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &ResponseCache{inner: inner, defaultTTL: cfg.DefaultTTL}, nil
}

// Get returns the cached body for key, checking expiry on read.
func (c *ResponseCache) Get(key string) ([]byte, bool) {
	val, found := c.inner.Get(key)
	if !found {
		return nil, false
	}
	item, ok := val.(*respItem)
	if !ok {
		c.inner.Del(key)
		return nil, false
	}
	if time.Now().After(item.expiresAt) {
		c.inner.Del(key)
		return nil, false
	}
	return item.body, true
}

// Set stores a response body. Admission is best-effort; ristretto may reject
// entries under memory pressure.
func (c *ResponseCache) Set(key string, value []byte, ttl time.Duration) {
	if ttl == 0 {
		ttl = c.defaultTTL
	}
	item := &respItem{body: value, expiresAt: time.Now().Add(ttl)}
	_ = c.inner.Set(key, item, int64(len(value)))
	// Flush ristretto's set buffers so the entry is visible to readers.
	c.inner.Wait()
}

// Delete removes key.
func (c *ResponseCache) Delete(key string) {
	c.inner.Del(key)
}

// Clear removes every cached response.
func (c *ResponseCache) Clear() {
	c.inner.Clear()
}

// Close releases ristretto's resources.
func (c *ResponseCache) Close() {
	c.inner.Close()
}
