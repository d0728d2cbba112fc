// Package server assembles the cache core: store, cache-aware client,
// warmer, maintenance scheduler, warm-progress hub, and the HTTP stack.
package server

import (
	"context"
	"net/http"
	"time"

	"github.com/signalong/signalong-core/internal/api"
	"github.com/signalong/signalong-core/internal/api/handlers"
	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cache"
	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/config"
	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/metrics"
	"github.com/signalong/signalong-core/internal/middleware"
	"github.com/signalong/signalong-core/internal/scheduler"
	"github.com/signalong/signalong-core/internal/session"
	"github.com/signalong/signalong-core/internal/warmup"
)

type Server struct {
	Client    *cached.Client
	Sessions  *session.Store
	Warmer    *warmup.Warmer
	Hub       *handlers.Hub
	RespCache *cache.ResponseCache

	cfg     *config.Config
	sched   *scheduler.Service
	limiter *middleware.RateLimiter
	httpSrv *http.Server
}

// New builds a fully wired server from config.
func New(cfg *config.Config) (*Server, error) {
	store := cache.NewStore(
		cache.WithDefaultTTL(cfg.CacheDefaultTTL),
		cache.WithNamespaceTTLs(cfg.NamespaceTTLs()),
	)
	client := cached.NewClient(backendapi.NewClient(cfg), store)
	sessions := session.NewStore()

	warmer := warmup.New(sessions, warmup.Priority(cfg.WarmPriorityThreshold))
	warmup.RegisterDefaults(warmer, client)

	hub := handlers.NewHub()
	warmer.OnProgress(hub.BroadcastProgress)
	warmer.OnCompletion(hub.BroadcastCompletion)

	respCache, err := cache.NewResponseCache(cache.ResponseCacheConfig{
		MaxSizeMB:  cfg.RespCacheSizeMB,
		MaxEntries: cfg.RespCacheEntries,
		DefaultTTL: cfg.RespCacheTTL,
	})
	if err != nil {
		return nil, err
	}

	sched := scheduler.NewService(time.Minute)
	if cfg.CachePruneEvery != "" {
		if err := sched.Register("cache-prune", cfg.CachePruneEvery, func(ctx context.Context) error {
			removed := store.Prune()
			if removed > 0 {
				logger.DebugContext(ctx, "pruned expired cache entries", "removed", removed)
			}
			metrics.CacheEntries.Set(float64(store.Stats().TotalEntries))
			return nil
		}); err != nil {
			return nil, err
		}
	}

	s := &Server{
		Client:    client,
		Sessions:  sessions,
		Warmer:    warmer,
		Hub:       hub,
		RespCache: respCache,
		cfg:       cfg,
		sched:     sched,
	}
	s.httpSrv = &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           s.buildHandler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

func listenAddr(cfg *config.Config) string {
	if cfg.ListenAddr != "" {
		return cfg.ListenAddr
	}
	return ":8000"
}

// buildHandler stacks middleware outside-in: recovery first so everything
// below it is covered, then request IDs, CORS, rate limiting, compression.
func (s *Server) buildHandler() http.Handler {
	router := api.NewRouter(api.Deps{
		Client:    s.Client,
		Sessions:  s.Sessions,
		Warmer:    s.Warmer,
		Hub:       s.Hub,
		RespCache: s.RespCache,
		Config:    s.cfg,
	})

	var h http.Handler = router
	h = middleware.Compress(h)
	if s.cfg.EnableRateLimit {
		s.limiter = middleware.NewRateLimiter(
			s.cfg.RateLimitGlobal, s.cfg.RateLimitGlobalBurst,
			s.cfg.RateLimitPerIP, s.cfg.RateLimitPerIPBurst,
		)
		h = s.limiter.Limit(h)
	}
	corsCfg := middleware.DefaultCORSConfig()
	if len(s.cfg.CORSAllowedOrigins) > 0 {
		corsCfg.AllowedOrigins = s.cfg.CORSAllowedOrigins
	}
	h = middleware.CORS(corsCfg)(h)
	h = middleware.RequestID(h)
	h = middleware.RecoverWithSentry(h)
	return h
}

// Start runs background services and the HTTP listener. It blocks until the
// listener exits.
func (s *Server) Start(ctx context.Context) error {
	go s.Hub.Run(ctx)
	go s.sched.Start(ctx)

	logger.Info("server listening", "addr", s.httpSrv.Addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains the HTTP server and stops background services.
func (s *Server) Shutdown(ctx context.Context) error {
	s.sched.Stop()
	if s.limiter != nil {
		s.limiter.Stop()
	}
	s.RespCache.Close()
	return s.httpSrv.Shutdown(ctx)
}
