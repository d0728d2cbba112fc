package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/signalong/signalong-core/internal/cache"
)

func adminFixture(t *testing.T) (*CacheAdminHandler, *cache.Store) {
	t.Helper()
	store := cache.NewStore(cache.WithDefaultTTL(time.Minute))
	return NewCacheAdminHandler(store, "secret"), store
}

func adminReq(method, path, token string, body []byte) *http.Request {
	var req *http.Request
	if body != nil {
		req = httptest.NewRequest(method, path, bytes.NewReader(body))
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestAdminRejectsMissingToken(t *testing.T) {
	h, _ := adminFixture(t)
	rec := httptest.NewRecorder()
	h.GetStats(rec, adminReq(http.MethodGet, "/api/admin/cache/stats", "", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminRejectsWrongToken(t *testing.T) {
	h, _ := adminFixture(t)
	rec := httptest.NewRecorder()
	h.Prune(rec, adminReq(http.MethodPost, "/api/admin/cache/prune", "wrong", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestAdminDisabledWithoutConfiguredToken(t *testing.T) {
	store := cache.NewStore()
	h := NewCacheAdminHandler(store, "")
	rec := httptest.NewRecorder()
	h.GetStats(rec, adminReq(http.MethodGet, "/api/admin/cache/stats", "anything", nil))
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
}

func TestAdminStats(t *testing.T) {
	h, store := adminFixture(t)
	store.Set("lessons", "all_lessons", []string{"l1"})
	store.Get("lessons", "all_lessons")
	store.Get("lessons", "nope")

	rec := httptest.NewRecorder()
	h.GetStats(rec, adminReq(http.MethodGet, "/api/admin/cache/stats", "secret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["hits"].(float64) != 1 || body["misses"].(float64) != 1 {
		t.Errorf("stats = %v", body)
	}
	if body["hit_rate"] != "50.0%" {
		t.Errorf("hit_rate = %v", body["hit_rate"])
	}
}

func TestAdminInvalidatePattern(t *testing.T) {
	h, store := adminFixture(t)
	store.Set("lessons", "lesson_a", 1)
	store.Set("lessons", "lesson_b", 2)
	store.Set("lessons", "all_lessons", 3)

	payload := []byte(`{"namespace":"lessons","pattern":"lesson_.*"}`)
	rec := httptest.NewRecorder()
	h.Invalidate(rec, adminReq(http.MethodPost, "/api/admin/cache/invalidate", "secret", payload))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["removed"].(float64) != 2 {
		t.Errorf("removed = %v, want 2", body["removed"])
	}
	if !store.Has("lessons", "all_lessons") {
		t.Error("non-matching key must survive")
	}
}

func TestAdminInvalidateBadPatternIs400(t *testing.T) {
	h, _ := adminFixture(t)
	payload := []byte(`{"namespace":"lessons","pattern":"["}`)
	rec := httptest.NewRecorder()
	h.Invalidate(rec, adminReq(http.MethodPost, "/api/admin/cache/invalidate", "secret", payload))
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestAdminInvalidateAll(t *testing.T) {
	h, store := adminFixture(t)
	store.Set("lessons", "all_lessons", 1)
	store.Set("progress", "progress", 2)

	rec := httptest.NewRecorder()
	h.Invalidate(rec, adminReq(http.MethodPost, "/api/admin/cache/invalidate", "secret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.Stats().TotalEntries != 0 {
		t.Error("store not emptied")
	}
}

func TestAdminExportImportRoundTrip(t *testing.T) {
	h, store := adminFixture(t)
	store.Set("lessons", "all_lessons", []interface{}{"l1", "l2"})
	store.Set("streak", "streak", map[string]interface{}{"current": float64(4)})

	rec := httptest.NewRecorder()
	h.Export(rec, adminReq(http.MethodGet, "/api/admin/cache/export", "secret", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("export status = %d", rec.Code)
	}
	exported := rec.Body.Bytes()

	h2, store2 := adminFixture(t)
	rec = httptest.NewRecorder()
	h2.Import(rec, adminReq(http.MethodPost, "/api/admin/cache/import", "secret", exported))
	if rec.Code != http.StatusOK {
		t.Fatalf("import status = %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["imported"].(float64) != 2 {
		t.Errorf("imported = %v, want 2", body["imported"])
	}
	if !store2.Has("lessons", "all_lessons") || !store2.Has("streak", "streak") {
		t.Error("imported entries missing")
	}
}

func TestAdminPrune(t *testing.T) {
	h, store := adminFixture(t)
	store.SetWithTTL("lessons", "gone", 1, time.Nanosecond)
	store.Set("lessons", "kept", 2)
	time.Sleep(time.Millisecond)

	rec := httptest.NewRecorder()
	h.Prune(rec, adminReq(http.MethodPost, "/api/admin/cache/prune", "secret", nil))
	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["removed"].(float64) != 1 {
		t.Errorf("removed = %v, want 1", body["removed"])
	}
}
