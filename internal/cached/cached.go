// Package cached wraps the learning-API client with a read-through cache.
// Every read goes through one of four strategies; mutations invalidate the
// affected namespaces only after the upstream call succeeds.
package cached

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/sync/singleflight"

	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cache"
	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/metrics"
)

// Strategy selects how a read balances the cache against the network.
type Strategy string

const (
	// CacheFirst returns cached data when present, otherwise fetches and
	// caches. The default.
	CacheFirst Strategy = "cache-first"
	// NetworkFirst always fetches; on failure it falls back to cached data.
	NetworkFirst Strategy = "network-first"
	// CacheOnly never touches the network. A miss is ErrNoCachedData.
	CacheOnly Strategy = "cache-only"
	// NetworkOnly always fetches and refreshes the cache.
	NetworkOnly Strategy = "network-only"
)

// ErrNoCachedData is returned by cache-only reads that miss.
var ErrNoCachedData = errors.New("no cached data for resource")

// Options tune a single read. The zero value means cache-first with the
// resource's registered key and TTL.
type Options struct {
	Strategy  Strategy
	CacheKey  string        // overrides the resource's default key
	TTL       time.Duration // overrides the namespace TTL; <= 0 means default
	SkipCache bool          // bypass the cache read; the result is still cached
}

// resource binds a named read to its cache location.
type resource struct {
	name      string
	namespace string
	key       string
}

// Cache namespaces. Mutation invalidation and warming address these.
const (
	NSLessons  = "lessons"
	NSProgress = "progress"
	NSStreak   = "streak"
	NSProfile  = "profile"
)

var (
	resAllLessons = resource{name: "all-lessons", namespace: NSLessons, key: "all_lessons"}
	resProgress   = resource{name: "progress", namespace: NSProgress, key: "progress"}
	resStreak     = resource{name: "streak", namespace: NSStreak, key: "streak"}
	resProfile    = resource{name: "profile", namespace: NSProfile, key: "profile"}
)

var tracer = otel.Tracer("signalong-core/cached")

// Client is a cache-aware facade over the learning API.
type Client struct {
	api   *backendapi.Client
	store *cache.Store
	group singleflight.Group
}

func NewClient(api *backendapi.Client, store *cache.Store) *Client {
	return &Client{api: api, store: store}
}

// Store exposes the backing cache for admin and warmup use.
func (c *Client) Store() *cache.Store { return c.store }

// API exposes the raw learning-API client.
func (c *Client) API() *backendapi.Client { return c.api }

// fetch runs one read under the chosen strategy. Network calls for the same
// namespace/key are collapsed so concurrent readers share a single upstream
// request.
func fetch[T any](ctx context.Context, c *Client, res resource, opts Options, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	strategy := opts.Strategy
	if strategy == "" {
		strategy = CacheFirst
	}
	key := res.key
	if opts.CacheKey != "" {
		key = opts.CacheKey
	}

	ctx, span := tracer.Start(ctx, "cached.fetch")
	span.SetAttributes(
		attribute.String("cache.resource", res.name),
		attribute.String("cache.strategy", string(strategy)),
	)
	defer span.End()

	readCache := func() (T, bool) {
		if opts.SkipCache {
			return zero, false
		}
		raw, ok := c.store.Get(res.namespace, key)
		if !ok {
			return zero, false
		}
		val, ok := raw.(T)
		if !ok {
			// A type clash means the key was reused for a different
			// shape; treat it as a miss and let the fetch overwrite it.
			logger.Warn("cached value has unexpected type",
				"namespace", res.namespace, "key", key, "got", fmt.Sprintf("%T", raw))
			return zero, false
		}
		return val, true
	}

	writeCache := func(val T) {
		if opts.TTL > 0 {
			c.store.SetWithTTL(res.namespace, key, val, opts.TTL)
		} else {
			c.store.Set(res.namespace, key, val)
		}
	}

	fromNetwork := func() (T, error) {
		raw, err, _ := c.group.Do(res.namespace+"\x00"+key, func() (interface{}, error) {
			return fn(ctx)
		})
		if err != nil {
			return zero, err
		}
		return raw.(T), nil
	}

	record := func(source string) {
		metrics.CachedCalls.WithLabelValues(res.name, string(strategy), source).Inc()
		span.SetAttributes(attribute.String("cache.source", source))
	}

	switch strategy {
	case CacheOnly:
		if val, ok := readCache(); ok {
			record("cache")
			return val, nil
		}
		record("miss")
		return zero, fmt.Errorf("%w: %s", ErrNoCachedData, res.name)

	case NetworkFirst:
		val, err := fromNetwork()
		if err == nil {
			writeCache(val)
			record("network")
			return val, nil
		}
		if cached, ok := readCache(); ok {
			logger.WarnContext(ctx, "serving cached data after fetch failure",
				"resource", res.name, "error", err)
			record("fallback")
			return cached, nil
		}
		record("error")
		return zero, err

	case NetworkOnly:
		val, err := fromNetwork()
		if err != nil {
			record("error")
			return zero, err
		}
		writeCache(val)
		record("network")
		return val, nil

	default: // CacheFirst
		if val, ok := readCache(); ok {
			record("cache")
			return val, nil
		}
		val, err := fromNetwork()
		if err != nil {
			record("error")
			return zero, err
		}
		writeCache(val)
		record("network")
		return val, nil
	}
}

// AllLessons returns the lesson catalog.
func (c *Client) AllLessons(ctx context.Context, opts Options) ([]backendapi.Lesson, error) {
	return fetch(ctx, c, resAllLessons, opts, c.api.GetAllLessons)
}

// Lesson returns a single lesson, cached under its own key.
func (c *Client) Lesson(ctx context.Context, id string, opts Options) (*backendapi.Lesson, error) {
	res := resource{name: "lesson", namespace: NSLessons, key: "lesson_" + id}
	return fetch(ctx, c, res, opts, func(ctx context.Context) (*backendapi.Lesson, error) {
		return c.api.GetLesson(ctx, id)
	})
}

// Progress returns the current user's progress.
func (c *Client) Progress(ctx context.Context, opts Options) (*backendapi.Progress, error) {
	return fetch(ctx, c, resProgress, opts, c.api.GetProgress)
}

// Streak returns the current user's practice streak.
func (c *Client) Streak(ctx context.Context, opts Options) (*backendapi.Streak, error) {
	return fetch(ctx, c, resStreak, opts, c.api.GetStreak)
}

// Profile returns the current user's profile.
func (c *Client) Profile(ctx context.Context, opts Options) (*backendapi.Profile, error) {
	return fetch(ctx, c, resProfile, opts, c.api.GetProfile)
}
