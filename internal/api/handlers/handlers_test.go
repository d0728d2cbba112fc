package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cache"
	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/config"
	"github.com/signalong/signalong-core/internal/session"
	"github.com/signalong/signalong-core/internal/warmup"
)

type fixture struct {
	client   *cached.Client
	sessions *session.Store
	warmer   *warmup.Warmer
}

func newFixture(t *testing.T, upstream http.HandlerFunc) *fixture {
	t.Helper()
	config.ResetForTest()
	t.Setenv("HTTP_MAX_RETRIES", "1")
	t.Cleanup(config.ResetForTest)

	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	api := backendapi.NewClient(&config.Config{
		APIBaseURL:  srv.URL,
		UserAgent:   "signalong-core/test",
		HTTPTimeout: 2 * time.Second,
	})
	store := cache.NewStore(cache.WithDefaultTTL(time.Minute))
	client := cached.NewClient(api, store)
	sessions := session.NewStore()
	return &fixture{
		client:   client,
		sessions: sessions,
		warmer:   warmup.New(sessions, warmup.PriorityHigh),
	}
}

func upstreamOK(w http.ResponseWriter, r *http.Request) {
	switch {
	case r.URL.Path == "/lessons":
		w.Write([]byte(`{"success":true,"data":[{"id":"l1","title":"Greetings"}]}`))
	case strings.HasPrefix(r.URL.Path, "/lessons/"):
		w.Write([]byte(`{"success":true,"data":{"id":"l1","title":"Greetings"}}`))
	case strings.HasSuffix(r.URL.Path, "/progress"):
		w.Write([]byte(`{"success":true,"data":{"user_id":"u1","total_lessons":10,"percent":10}}`))
	case strings.HasSuffix(r.URL.Path, "/streak"):
		w.Write([]byte(`{"success":true,"data":{"user_id":"u1","current":4,"longest":9}}`))
	default:
		http.NotFound(w, r)
	}
}

func TestHealth(t *testing.T) {
	f := newFixture(t, upstreamOK)
	rec := httptest.NewRecorder()
	Health(f.client, f.warmer)(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["status"] != "ok" || body["upstream"] != "closed" {
		t.Errorf("body = %v", body)
	}
}

func TestGetLessonsUsesResponseCache(t *testing.T) {
	f := newFixture(t, upstreamOK)
	respCache := cache.NewMockByteCache()
	h := GetLessons(f.client, respCache, time.Minute)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/lessons", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	first := rec.Body.String()

	if _, ok := respCache.Get("lessons:/api/lessons"); !ok {
		t.Fatal("serialized response not cached")
	}

	rec = httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/lessons", nil))
	if rec.Body.String() != first {
		t.Error("cached response differs from first response")
	}
}

func TestGetLessonsSkipCacheBypassesResponseCache(t *testing.T) {
	f := newFixture(t, upstreamOK)
	respCache := cache.NewMockByteCache()
	h := GetLessons(f.client, respCache, time.Minute)

	rec := httptest.NewRecorder()
	h(rec, httptest.NewRequest(http.MethodGet, "/api/lessons?skip_cache=true", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if _, ok := respCache.Get("lessons:/api/lessons?skip_cache=true"); ok {
		t.Error("skip_cache response must not be cached")
	}
}

func TestUserEndpointsRequireSession(t *testing.T) {
	f := newFixture(t, upstreamOK)
	endpoints := map[string]http.HandlerFunc{
		"progress": GetProgress(f.client, f.sessions),
		"streak":   GetStreak(f.client, f.sessions),
		"profile":  GetProfile(f.client, f.sessions),
	}
	for name, h := range endpoints {
		rec := httptest.NewRecorder()
		h(rec, httptest.NewRequest(http.MethodGet, "/api/"+name, nil))
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s without session: status = %d, want 401", name, rec.Code)
		}
	}
}

func TestGetProgressWithSession(t *testing.T) {
	f := newFixture(t, upstreamOK)
	f.sessions.SignIn("u1", "Casey")

	rec := httptest.NewRecorder()
	GetProgress(f.client, f.sessions)(rec, httptest.NewRequest(http.MethodGet, "/api/progress", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var p backendapi.Progress
	json.NewDecoder(rec.Body).Decode(&p)
	if p.Percent != 10 {
		t.Errorf("progress = %+v", p)
	}
}

func TestCacheOnlyMissIs404(t *testing.T) {
	f := newFixture(t, upstreamOK)
	f.sessions.SignIn("u1", "Casey")

	rec := httptest.NewRecorder()
	GetStreak(f.client, f.sessions)(rec, httptest.NewRequest(http.MethodGet, "/api/streak?strategy=cache-only", nil))
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestSignInSignOutLifecycle(t *testing.T) {
	f := newFixture(t, upstreamOK)

	body := bytes.NewBufferString(`{"user_id":"u1","display_name":"Casey"}`)
	rec := httptest.NewRecorder()
	SignIn(f.sessions, f.client, f.warmer, false)(rec, httptest.NewRequest(http.MethodPost, "/api/session", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("sign-in status = %d: %s", rec.Code, rec.Body.String())
	}
	if !f.sessions.Active() {
		t.Fatal("session not created")
	}

	rec = httptest.NewRecorder()
	SignOut(f.sessions, f.client, f.warmer)(rec, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("sign-out status = %d", rec.Code)
	}
	if f.sessions.Active() {
		t.Fatal("session not cleared")
	}

	// A second sign-out is a 401.
	rec = httptest.NewRecorder()
	SignOut(f.sessions, f.client, f.warmer)(rec, httptest.NewRequest(http.MethodDelete, "/api/session", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("repeat sign-out status = %d", rec.Code)
	}
}

func TestUserSwitchDropsPreviousUserData(t *testing.T) {
	f := newFixture(t, upstreamOK)
	f.sessions.SignIn("u1", "Casey")
	store := f.client.Store()
	store.Set(cached.NSProgress, "progress", "stale")
	store.Set(cached.NSLessons, "all_lessons", "shared")

	body := bytes.NewBufferString(`{"user_id":"u2","display_name":"Riley"}`)
	rec := httptest.NewRecorder()
	SignIn(f.sessions, f.client, f.warmer, false)(rec, httptest.NewRequest(http.MethodPost, "/api/session", body))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
	if store.Has(cached.NSProgress, "progress") {
		t.Error("previous user's progress must be dropped on user switch")
	}
	if !store.Has(cached.NSLessons, "all_lessons") {
		t.Error("shared lesson catalog must survive a user switch")
	}
}

func TestCompleteLessonThroughRouter(t *testing.T) {
	f := newFixture(t, upstreamOK)
	f.sessions.SignIn("u1", "Casey")

	r := mux.NewRouter()
	r.HandleFunc("/api/lessons/{id}/complete", CompleteLesson(f.client, f.sessions)).Methods("POST")

	body := bytes.NewBufferString(`{"score":90}`)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/lessons/l1/complete", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
}

func TestTriggerWarmRequiresSession(t *testing.T) {
	f := newFixture(t, upstreamOK)
	rec := httptest.NewRecorder()
	TriggerWarm(f.warmer, f.sessions)(rec, httptest.NewRequest(http.MethodPost, "/api/warm", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWarmStatusIdle(t *testing.T) {
	f := newFixture(t, upstreamOK)
	rec := httptest.NewRecorder()
	WarmStatus(f.warmer)(rec, httptest.NewRequest(http.MethodGet, "/api/warm/status", nil))

	var body map[string]interface{}
	json.NewDecoder(rec.Body).Decode(&body)
	if body["state"] != "idle" {
		t.Errorf("state = %v", body["state"])
	}
}

func TestWebSocketReceivesWarmEvents(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(hub.ServeWS))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Let the hub register the client before broadcasting.
	time.Sleep(50 * time.Millisecond)
	hub.BroadcastProgress(warmup.Progress{Tier: warmup.PriorityCritical, Completed: 1, Total: 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event WarmEvent
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("reading event: %v", err)
	}
	if event.Type != "progress" {
		t.Errorf("event type = %q", event.Type)
	}
}
