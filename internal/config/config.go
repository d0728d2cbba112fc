package config

import (
	"os"
	"strings"
	"time"

	"github.com/signalong/signalong-core/internal/utils"
)

// Config holds application configuration derived from environment variables.
type Config struct {
	// Learning API (upstream REST backend)
	APIBaseURL     string
	APIToken       string
	UserAgent      string
	HTTPMaxRetries int
	HTTPRetryBase  time.Duration
	HTTPTimeout    time.Duration
	LogHTTPRetries bool

	// Cache store
	CacheDefaultTTL  time.Duration // fallback TTL when a namespace has no default
	LessonsTTL       time.Duration
	ProgressTTL      time.Duration
	StreakTTL        time.Duration
	ProfileTTL       time.Duration
	CachePruneEvery  string // scheduler expression, e.g. "@every 1m"
	RespCacheSizeMB  int64  // HTTP response cache (LRU) size
	RespCacheEntries int64
	RespCacheTTL     time.Duration

	// Warmer
	WarmPriorityThreshold int // run tasks with priority <= threshold
	WarmOnSession         bool

	// Admin API token for gating admin endpoints (Bearer token)
	AdminAPIToken string

	// Security settings
	RateLimitGlobal      float64
	RateLimitGlobalBurst int
	RateLimitPerIP       float64
	RateLimitPerIPBurst  int
	CORSAllowedOrigins   []string
	EnableRateLimit      bool

	// Server
	ListenAddr string

	// Observability settings
	LogLevel          string
	OTELEnabled       bool
	OTELEndpoint      string
	OTELSampleRate    float64
	SentryDSN         string
	SentryEnvironment string
	SentryRelease     string
}

var cached *Config

// Load reads env vars once and caches them.
func Load() *Config {
	if cached != nil {
		return cached
	}
	base := strings.TrimSpace(os.Getenv("SIGNALONG_API_BASE_URL"))
	if base == "" {
		base = "http://localhost:4000/api/v1"
	}
	ua := strings.TrimSpace(os.Getenv("SIGNALONG_USER_AGENT"))
	if ua == "" {
		ua = "signalong-core/0.1"
	}
	cached = &Config{
		APIBaseURL:     strings.TrimRight(base, "/"),
		APIToken:       strings.TrimSpace(os.Getenv("SIGNALONG_API_TOKEN")),
		UserAgent:      ua,
		HTTPMaxRetries: utils.GetEnvAsInt("HTTP_MAX_RETRIES", 3),
		HTTPRetryBase:  time.Duration(utils.GetEnvAsInt("HTTP_RETRY_BASE_MS", 300)) * time.Millisecond,
		HTTPTimeout:    time.Duration(utils.GetEnvAsInt("HTTP_TIMEOUT_MS", 15000)) * time.Millisecond,
		LogHTTPRetries: utils.GetEnvAsBool("LOG_HTTP_RETRIES", false),

		CacheDefaultTTL:  utils.GetEnvAsDuration("CACHE_DEFAULT_TTL", 10*time.Minute),
		LessonsTTL:       utils.GetEnvAsDuration("CACHE_LESSONS_TTL", 30*time.Minute),
		ProgressTTL:      utils.GetEnvAsDuration("CACHE_PROGRESS_TTL", 5*time.Minute),
		StreakTTL:        utils.GetEnvAsDuration("CACHE_STREAK_TTL", 5*time.Minute),
		ProfileTTL:       utils.GetEnvAsDuration("CACHE_PROFILE_TTL", 15*time.Minute),
		CachePruneEvery:  strings.TrimSpace(os.Getenv("CACHE_PRUNE_EVERY")),
		RespCacheSizeMB:  int64(utils.GetEnvAsInt("RESP_CACHE_SIZE_MB", 32)),
		RespCacheEntries: int64(utils.GetEnvAsInt("RESP_CACHE_MAX_ENTRIES", 2000)),
		RespCacheTTL:     utils.GetEnvAsDuration("RESP_CACHE_TTL", time.Minute),

		WarmPriorityThreshold: utils.GetEnvAsInt("WARM_PRIORITY_THRESHOLD", 2),
		WarmOnSession:         utils.GetEnvAsBool("WARM_ON_SESSION", true),

		AdminAPIToken: strings.TrimSpace(os.Getenv("ADMIN_API_TOKEN")),

		RateLimitGlobal:      utils.GetEnvAsFloat("RATE_LIMIT_GLOBAL", 100.0),
		RateLimitGlobalBurst: utils.GetEnvAsInt("RATE_LIMIT_GLOBAL_BURST", 200),
		RateLimitPerIP:       utils.GetEnvAsFloat("RATE_LIMIT_PER_IP", 10.0),
		RateLimitPerIPBurst:  utils.GetEnvAsInt("RATE_LIMIT_PER_IP_BURST", 20),
		EnableRateLimit:      utils.GetEnvAsBool("ENABLE_RATE_LIMIT", true),

		ListenAddr: strings.TrimSpace(os.Getenv("LISTEN_ADDR")),

		LogLevel:          strings.ToLower(strings.TrimSpace(os.Getenv("LOG_LEVEL"))),
		OTELEnabled:       utils.GetEnvAsBool("OTEL_ENABLED", false),
		OTELEndpoint:      strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")),
		OTELSampleRate:    utils.GetEnvAsFloat("OTEL_TRACE_SAMPLE_RATE", 0.1),
		SentryDSN:         strings.TrimSpace(os.Getenv("SENTRY_DSN")),
		SentryEnvironment: strings.TrimSpace(os.Getenv("SENTRY_ENVIRONMENT")),
		SentryRelease:     strings.TrimSpace(os.Getenv("SENTRY_RELEASE")),
	}
	if cached.ListenAddr == "" {
		cached.ListenAddr = ":8000"
	}
	if cached.CachePruneEvery == "" {
		cached.CachePruneEvery = "@every 1m"
	}
	if cached.LogLevel == "" {
		cached.LogLevel = "info"
	}
	if cached.SentryEnvironment == "" {
		if env := os.Getenv("ENV"); env != "" {
			cached.SentryEnvironment = env
		} else {
			cached.SentryEnvironment = "development"
		}
	}

	corsOrigins := strings.TrimSpace(os.Getenv("CORS_ALLOWED_ORIGINS"))
	if corsOrigins == "" {
		cached.CORSAllowedOrigins = []string{"http://localhost:5173", "http://localhost:3000"}
	} else {
		cached.CORSAllowedOrigins = strings.Split(corsOrigins, ",")
		for i := range cached.CORSAllowedOrigins {
			cached.CORSAllowedOrigins[i] = strings.TrimSpace(cached.CORSAllowedOrigins[i])
		}
	}

	return cached
}

// NamespaceTTLs returns the per-namespace default TTLs derived from config.
// Unset values are omitted so the store's fallback applies.
func (c *Config) NamespaceTTLs() map[string]time.Duration {
	ttls := make(map[string]time.Duration, 4)
	for ns, ttl := range map[string]time.Duration{
		"lessons":  c.LessonsTTL,
		"progress": c.ProgressTTL,
		"streak":   c.StreakTTL,
		"profile":  c.ProfileTTL,
	} {
		if ttl > 0 {
			ttls[ns] = ttl
		}
	}
	return ttls
}

// ResetForTest clears cached config; for use in tests only.
func ResetForTest() { cached = nil }
