package api

import (
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/signalong/signalong-core/internal/api/handlers"
	"github.com/signalong/signalong-core/internal/cache"
	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/config"
	"github.com/signalong/signalong-core/internal/session"
	"github.com/signalong/signalong-core/internal/warmup"
)

// Deps carries everything the routes need.
type Deps struct {
	Client    *cached.Client
	Sessions  *session.Store
	Warmer    *warmup.Warmer
	Hub       *handlers.Hub
	RespCache cache.ByteCache
	Config    *config.Config
}

// NewRouter wires every endpoint.
func NewRouter(d Deps) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", handlers.Health(d.Client, d.Warmer)).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Lessons
	api.HandleFunc("/lessons", handlers.GetLessons(d.Client, d.RespCache, d.Config.RespCacheTTL)).Methods("GET")
	api.HandleFunc("/lessons/{id}", handlers.GetLesson(d.Client)).Methods("GET")
	api.HandleFunc("/lessons/{id}/complete", handlers.CompleteLesson(d.Client, d.Sessions)).Methods("POST")

	// Progress
	api.HandleFunc("/progress", handlers.GetProgress(d.Client, d.Sessions)).Methods("GET")
	api.HandleFunc("/progress", handlers.UpdateProgress(d.Client, d.Sessions)).Methods("PUT")

	// Streak
	api.HandleFunc("/streak", handlers.GetStreak(d.Client, d.Sessions)).Methods("GET")
	api.HandleFunc("/streak", handlers.UpdateStreak(d.Client, d.Sessions)).Methods("POST")

	// Profile
	api.HandleFunc("/profile", handlers.GetProfile(d.Client, d.Sessions)).Methods("GET")

	// Session
	api.HandleFunc("/session", handlers.SignIn(d.Sessions, d.Client, d.Warmer, d.Config.WarmOnSession)).Methods("POST")
	api.HandleFunc("/session", handlers.GetSession(d.Sessions)).Methods("GET")
	api.HandleFunc("/session", handlers.SignOut(d.Sessions, d.Client, d.Warmer)).Methods("DELETE")

	// Warming
	api.HandleFunc("/warm", handlers.TriggerWarm(d.Warmer, d.Sessions)).Methods("POST")
	api.HandleFunc("/warm/status", handlers.WarmStatus(d.Warmer)).Methods("GET")
	api.HandleFunc("/warm/reset", handlers.ResetWarm(d.Warmer)).Methods("POST")
	api.HandleFunc("/warm/ws", d.Hub.ServeWS).Methods("GET")

	// Cache administration
	admin := handlers.NewCacheAdminHandler(d.Client.Store(), d.Config.AdminAPIToken)
	api.HandleFunc("/admin/cache/stats", admin.GetStats).Methods("GET")
	api.HandleFunc("/admin/cache/invalidate", admin.Invalidate).Methods("POST")
	api.HandleFunc("/admin/cache/prune", admin.Prune).Methods("POST")
	api.HandleFunc("/admin/cache/export", admin.Export).Methods("GET")
	api.HandleFunc("/admin/cache/import", admin.Import).Methods("POST")

	return r
}
