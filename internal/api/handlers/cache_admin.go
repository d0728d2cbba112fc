package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/signalong/signalong-core/internal/apierr"
	"github.com/signalong/signalong-core/internal/cache"
)

// CacheAdminHandler exposes store administration: stats, invalidation,
// pruning and snapshot export/import. Every endpoint requires the admin
// bearer token.
type CacheAdminHandler struct {
	store *cache.Store
	token string
}

func NewCacheAdminHandler(store *cache.Store, token string) *CacheAdminHandler {
	return &CacheAdminHandler{store: store, token: token}
}

// authorize checks the bearer token. An unset token disables the API
// entirely rather than leaving it open.
func (h *CacheAdminHandler) authorize(w http.ResponseWriter, r *http.Request) bool {
	if h.token == "" {
		apierr.WriteErrorContext(r.Context(), w, apierr.AuthForbidden("admin API is not configured"))
		return false
	}
	auth := r.Header.Get("Authorization")
	if !strings.HasPrefix(auth, "Bearer ") || strings.TrimPrefix(auth, "Bearer ") != h.token {
		apierr.WriteErrorContext(r.Context(), w, apierr.AuthInvalid("invalid admin token"))
		return false
	}
	return true
}

// GetStats returns hit/miss counters and size estimates.
// GET /api/admin/cache/stats
func (h *CacheAdminHandler) GetStats(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	stats := h.store.Stats()
	size := h.store.SizeStats()
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"hits":           stats.Hits,
		"misses":         stats.Misses,
		"invalidations":  stats.Invalidations,
		"writes":         stats.Writes,
		"hit_rate":       stats.HitRate,
		"entries":        stats.TotalEntries,
		"size_bytes":     size.EstimatedSizeBytes,
		"avg_entry_size": size.AverageEntrySize,
	})
}

// Invalidate drops entries. With no body everything goes; a namespace alone
// clears that namespace; namespace plus pattern removes matching keys.
// POST /api/admin/cache/invalidate
func (h *CacheAdminHandler) Invalidate(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	var body struct {
		Namespace string `json:"namespace"`
		Pattern   string `json:"pattern"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.ValidationInvalidJSON("request body is not valid JSON"))
			return
		}
	}

	switch {
	case body.Pattern != "":
		if body.Namespace == "" {
			apierr.WriteErrorContext(r.Context(), w, apierr.ValidationMissingField("namespace"))
			return
		}
		removed, err := h.store.InvalidatePattern(body.Namespace, body.Pattern)
		if err != nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.CacheInvalidPattern(err.Error()))
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "removed": removed})
	case body.Namespace != "":
		h.store.ClearNamespace(body.Namespace)
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "namespace": body.Namespace})
	default:
		h.store.Clear()
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "message": "cache cleared"})
	}
}

// Prune removes expired entries immediately.
// POST /api/admin/cache/prune
func (h *CacheAdminHandler) Prune(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	removed := h.store.Prune()
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "removed": removed})
}

// Export returns a snapshot of every live entry with its remaining TTL.
// GET /api/admin/cache/export
func (h *CacheAdminHandler) Export(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	writeJSON(w, http.StatusOK, h.store.Export())
}

// Import loads a snapshot, preserving each entry's remaining lifetime.
// POST /api/admin/cache/import
func (h *CacheAdminHandler) Import(w http.ResponseWriter, r *http.Request) {
	if !h.authorize(w, r) {
		return
	}
	var snap cache.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		apierr.WriteErrorContext(r.Context(), w, apierr.CacheImportFailed("snapshot is not valid JSON"))
		return
	}
	imported := h.store.Import(snap)
	writeJSON(w, http.StatusOK, map[string]interface{}{"status": "ok", "imported": imported})
}
