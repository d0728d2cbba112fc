package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/signalong/signalong-core/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		APIBaseURL:            "http://localhost:4000/api/v1",
		UserAgent:             "signalong-core/test",
		HTTPTimeout:           time.Second,
		CacheDefaultTTL:       time.Minute,
		RespCacheSizeMB:       1,
		RespCacheEntries:      100,
		RespCacheTTL:          time.Minute,
		CachePruneEvery:       "@every 1m",
		WarmPriorityThreshold: 2,
	}
}

func TestServerWiring(t *testing.T) {
	srv, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.RespCache.Close()

	if srv.Client == nil || srv.Warmer == nil || srv.Hub == nil {
		t.Fatal("incomplete wiring")
	}
}

func TestHealthThroughMiddlewareStack(t *testing.T) {
	srv, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.RespCache.Close()

	h := srv.buildHandler()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("request ID middleware not applied")
	}
	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	srv, err := New(testConfig())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.RespCache.Close()

	rec := httptest.NewRecorder()
	srv.buildHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d", rec.Code)
	}
}
