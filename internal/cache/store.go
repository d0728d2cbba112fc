// Package cache provides the in-memory caching layer for the SignAlong core:
// a namespaced TTL store with statistics and invalidation hooks, plus a
// size-bounded LRU used for HTTP response caching.
package cache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sync"
	"time"

	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/metrics"
)

// DefaultTTL is the process-wide fallback when a namespace has no default
// and the call site supplies none.
const DefaultTTL = 10 * time.Minute

// removal reasons, used for metrics labels and logging.
const (
	reasonExpired = "expired"
	reasonDelete  = "delete"
	reasonClear   = "clear"
	reasonPattern = "pattern"
	reasonPrune   = "prune"
)

// entry is a single cached value with its bookkeeping.
type entry struct {
	value       interface{}
	ttl         time.Duration
	writtenAt   time.Time
	accessCount uint64
	lastAccess  time.Time
	sizeBytes   int64
}

func (e *entry) validAt(now time.Time) bool {
	return now.Sub(e.writtenAt) < e.ttl
}

// InvalidateFunc is called when a watched (namespace, key) pair is removed
// by any path: explicit delete, clear, pattern invalidation, or TTL expiry.
type InvalidateFunc func(namespace, key string)

// Store is a namespaced, TTL-aware key/value store. Expiry is checked on
// read; nothing runs in the background. Callers that want proactive cleanup
// schedule Prune themselves.
//
// All operations are safe for concurrent use.
type Store struct {
	mu         sync.Mutex
	namespaces map[string]map[string]*entry
	nsTTL      map[string]time.Duration
	defaultTTL time.Duration

	hits          uint64
	misses        uint64
	invalidations uint64
	writes        uint64

	watchers map[string][]InvalidateFunc

	now func() time.Time
	log *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithDefaultTTL overrides the process-wide fallback TTL.
func WithDefaultTTL(ttl time.Duration) StoreOption {
	return func(s *Store) { s.defaultTTL = ttl }
}

// WithNamespaceTTLs sets per-namespace default TTLs.
func WithNamespaceTTLs(ttls map[string]time.Duration) StoreOption {
	return func(s *Store) {
		for ns, ttl := range ttls {
			s.nsTTL[ns] = ttl
		}
	}
}

// WithClock injects a time source; tests use this to simulate expiry.
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) { s.now = now }
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		namespaces: make(map[string]map[string]*entry),
		nsTTL:      make(map[string]time.Duration),
		defaultTTL: DefaultTTL,
		watchers:   make(map[string][]InvalidateFunc),
		now:        time.Now,
		log:        logger.WithComponent("cache"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func watchKey(namespace, key string) string {
	return namespace + "\x00" + key
}

// Get returns the value stored under (namespace, key) and whether it was
// found and still valid. An expired entry is removed and reported as absent;
// a miss is not an error.
func (s *Store) Get(namespace, key string) (interface{}, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(namespace, key)
	if !ok {
		s.misses++
		metrics.CacheMisses.WithLabelValues(namespace).Inc()
		return nil, false
	}
	now := s.now()
	if !e.validAt(now) {
		s.removeLocked(namespace, key, reasonExpired)
		return nil, false
	}
	e.accessCount++
	e.lastAccess = now
	s.hits++
	metrics.CacheHits.WithLabelValues(namespace).Inc()
	return e.value, true
}

// Set stores value under (namespace, key) using the namespace default TTL,
// or the store-wide default if the namespace has none. Any existing entry
// is replaced.
func (s *Store) Set(namespace, key string, value interface{}) {
	s.SetWithTTL(namespace, key, value, s.resolveTTL(namespace))
}

// SetWithTTL stores value with an explicit TTL. A zero or negative TTL
// expires the entry immediately.
func (s *Store) SetWithTTL(namespace, key string, value interface{}, ttl time.Duration) {
	size := estimateSize(value)

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		ns = make(map[string]*entry)
		s.namespaces[namespace] = ns
	}
	now := s.now()
	ns[key] = &entry{
		value:     value,
		ttl:       ttl,
		writtenAt: now,
		sizeBytes: size,
	}
	s.writes++
	metrics.CacheWrites.WithLabelValues(namespace).Inc()
	metrics.CacheEntries.Set(float64(s.entryCountLocked()))
}

// Has reports whether a valid entry exists without touching its access
// bookkeeping. An expired entry is still purged as a side effect.
func (s *Store) Has(namespace, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.lookup(namespace, key)
	if !ok {
		return false
	}
	if !e.validAt(s.now()) {
		s.removeLocked(namespace, key, reasonExpired)
		return false
	}
	return true
}

// Delete removes (namespace, key) and reports whether anything was removed.
func (s *Store) Delete(namespace, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked(namespace, key, reasonDelete)
}

// Clear removes every entry and resets statistics.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for namespace, ns := range s.namespaces {
		for key := range ns {
			s.removeLocked(namespace, key, reasonClear)
		}
	}
	s.hits, s.misses, s.invalidations, s.writes = 0, 0, 0, 0
	metrics.CacheEntries.Set(0)
}

// ClearNamespace removes every entry in one namespace. Statistics are kept.
func (s *Store) ClearNamespace(namespace string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return
	}
	for key := range ns {
		s.removeLocked(namespace, key, reasonClear)
	}
}

// InvalidatePattern removes all entries in namespace whose bare key matches
// the regular expression and returns how many were removed. Pattern
// compilation is fallible, not trusted.
func (s *Store) InvalidatePattern(namespace, pattern string) (int, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return 0, fmt.Errorf("cache: invalid pattern %q: %w", pattern, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ns, ok := s.namespaces[namespace]
	if !ok {
		return 0, nil
	}
	matched := make([]string, 0)
	for key := range ns {
		if re.MatchString(key) {
			matched = append(matched, key)
		}
	}
	for _, key := range matched {
		s.removeLocked(namespace, key, reasonPattern)
	}
	return len(matched), nil
}

// Prune removes every expired entry and returns how many were removed.
// Intended to be called on a schedule by the host application.
func (s *Store) Prune() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for namespace, ns := range s.namespaces {
		for key, e := range ns {
			if !e.validAt(now) {
				s.removeLocked(namespace, key, reasonPrune)
				removed++
			}
		}
	}
	if removed > 0 {
		s.log.Debug("pruned expired cache entries", "count", removed)
	}
	return removed
}

// SetNamespaceTTL updates the default TTL for future writes to a namespace.
// Existing entries keep the TTL they were written with.
func (s *Store) SetNamespaceTTL(namespace string, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nsTTL[namespace] = ttl
}

// OnInvalidate registers a callback invoked synchronously whenever the exact
// (namespace, key) pair is removed by any path. Panics in callbacks are
// swallowed and logged, never propagated.
func (s *Store) OnInvalidate(namespace, key string, fn InvalidateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	wk := watchKey(namespace, key)
	s.watchers[wk] = append(s.watchers[wk], fn)
}

// Stats is a snapshot of the store's cumulative counters.
type Stats struct {
	Hits          uint64 `json:"hits"`
	Misses        uint64 `json:"misses"`
	Invalidations uint64 `json:"invalidations"`
	Writes        uint64 `json:"writes"`
	HitRate       string `json:"hit_rate"`
	TotalEntries  int    `json:"total_entries"`
}

// Stats returns cumulative hit/miss/invalidation/write counters. HitRate is
// hits/(hits+misses) as a percentage string, "0%" before any access.
func (s *Store) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	rate := "0%"
	if total := s.hits + s.misses; total > 0 {
		rate = fmt.Sprintf("%.1f%%", float64(s.hits)/float64(total)*100)
	}
	return Stats{
		Hits:          s.hits,
		Misses:        s.misses,
		Invalidations: s.invalidations,
		Writes:        s.writes,
		HitRate:       rate,
		TotalEntries:  s.entryCountLocked(),
	}
}

// SizeStats approximates memory usage from the serialized length of stored
// values. It is a diagnostic estimate, not exact accounting.
type SizeStats struct {
	EntryCount         int     `json:"entry_count"`
	EstimatedSizeBytes int64   `json:"estimated_size_bytes"`
	EstimatedSizeKB    float64 `json:"estimated_size_kb"`
	AverageEntrySize   int64   `json:"average_entry_size"`
}

// SizeStats returns the approximate size of the store's contents.
func (s *Store) SizeStats() SizeStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total int64
	count := 0
	for _, ns := range s.namespaces {
		for _, e := range ns {
			total += e.sizeBytes
			count++
		}
	}
	stats := SizeStats{
		EntryCount:         count,
		EstimatedSizeBytes: total,
		EstimatedSizeKB:    float64(total) / 1024,
	}
	if count > 0 {
		stats.AverageEntrySize = total / int64(count)
	}
	return stats
}

// lookup finds an entry without validity checks. Caller must hold the lock.
func (s *Store) lookup(namespace, key string) (*entry, bool) {
	ns, ok := s.namespaces[namespace]
	if !ok {
		return nil, false
	}
	e, ok := ns[key]
	return e, ok
}

// removeLocked deletes an entry, bumps the invalidation counter, and fires
// watchers. Caller must hold the lock.
func (s *Store) removeLocked(namespace, key, reason string) bool {
	ns, ok := s.namespaces[namespace]
	if !ok {
		return false
	}
	if _, ok := ns[key]; !ok {
		return false
	}
	delete(ns, key)
	if len(ns) == 0 {
		delete(s.namespaces, namespace)
	}
	s.invalidations++
	metrics.CacheInvalidations.WithLabelValues(namespace, reason).Inc()
	metrics.CacheEntries.Set(float64(s.entryCountLocked()))
	s.notifyLocked(namespace, key)
	return true
}

func (s *Store) notifyLocked(namespace, key string) {
	fns := s.watchers[watchKey(namespace, key)]
	for _, fn := range fns {
		func() {
			defer func() {
				if r := recover(); r != nil {
					s.log.Error("invalidation callback panicked",
						"namespace", namespace, "key", key, "panic", r)
				}
			}()
			fn(namespace, key)
		}()
	}
}

func (s *Store) entryCountLocked() int {
	count := 0
	for _, ns := range s.namespaces {
		count += len(ns)
	}
	return count
}

func (s *Store) resolveTTL(namespace string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ttl, ok := s.nsTTL[namespace]; ok {
		return ttl
	}
	return s.defaultTTL
}

// estimateSize approximates the serialized size of a value in bytes.
func estimateSize(value interface{}) int64 {
	data, err := json.Marshal(value)
	if err != nil {
		return 0
	}
	return int64(len(data))
}
