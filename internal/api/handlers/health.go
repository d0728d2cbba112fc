package handlers

import (
	"net/http"

	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/warmup"
)

// Health reports liveness plus the pieces worth glancing at in an incident:
// cache counters, upstream circuit state, warmer state.
func Health(client *cached.Client, warmer *warmup.Warmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats := client.CacheStats()
		warmState, _ := warmer.GetStatus()
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"status":        "ok",
			"upstream":      client.API().BreakerState(),
			"warming":       warmState,
			"cache_entries": stats.TotalEntries,
			"cache_hits":    stats.Hits,
			"cache_misses":  stats.Misses,
		})
	}
}
