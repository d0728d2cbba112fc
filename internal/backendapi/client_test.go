package backendapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/signalong/signalong-core/internal/config"
)

func testClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := NewClient(&config.Config{
		APIBaseURL:  srv.URL,
		APIToken:    "test-token",
		UserAgent:   "signalong-core/test",
		HTTPTimeout: 2 * time.Second,
	})
	return client, srv
}

func TestGetAllLessonsDecodesEnvelope(t *testing.T) {
	var gotAuth, gotUA string
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotUA = r.Header.Get("User-Agent")
		if r.URL.Path != "/lessons" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"success":true,"data":[
			{"id":"l1","title":"Greetings","category":"basics","difficulty":"beginner"},
			{"id":"l2","title":"Numbers","category":"basics","difficulty":"beginner"}
		]}`))
	}))

	lessons, err := client.GetAllLessons(context.Background())
	if err != nil {
		t.Fatalf("GetAllLessons: %v", err)
	}
	if len(lessons) != 2 || lessons[0].ID != "l1" || lessons[1].Title != "Numbers" {
		t.Errorf("unexpected lessons: %+v", lessons)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotUA != "signalong-core/test" {
		t.Errorf("User-Agent = %q", gotUA)
	}
}

func TestEnvelopeFailureBecomesError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":false,"error":"lesson service unavailable"}`))
	}))

	_, err := client.GetProgress(context.Background())
	apiErr, ok := IsAPIError(err)
	if !ok {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Message != "lesson service unavailable" {
		t.Errorf("message = %q", apiErr.Message)
	}
}

func TestNotFoundClassified(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"success":false,"error":"no such lesson"}`))
	}))

	_, err := client.GetLesson(context.Background(), "nope")
	if !IsNotFound(err) {
		t.Fatalf("expected not-found error, got %v", err)
	}
	apiErr, _ := IsAPIError(err)
	if apiErr.Message != "no such lesson" {
		t.Errorf("message = %q", apiErr.Message)
	}
	if apiErr.Retryable {
		t.Error("404 must not be retryable")
	}
}

func TestMalformedEnvelope(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json at all`))
	}))

	_, err := client.GetStreak(context.Background())
	apiErr, ok := IsAPIError(err)
	if !ok || apiErr.Type != ErrorEnvelope {
		t.Fatalf("expected envelope error, got %v", err)
	}
}

func TestSuccessWithoutDataIsError(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success":true}`))
	}))

	_, err := client.GetProfile(context.Background())
	apiErr, ok := IsAPIError(err)
	if !ok || apiErr.Type != ErrorEnvelope {
		t.Fatalf("expected envelope error, got %v", err)
	}
}

func TestCompleteLessonPostsAndReturnsProgress(t *testing.T) {
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/lessons/l1/complete" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		w.Write([]byte(`{"success":true,"data":{"user_id":"u1","completed_lessons":["l1"],"total_lessons":10,"percent":10}}`))
	}))

	p, err := client.CompleteLesson(context.Background(), CompleteLessonRequest{LessonID: "l1", Score: 90})
	if err != nil {
		t.Fatalf("CompleteLesson: %v", err)
	}
	if p.Percent != 10 || len(p.CompletedLessons) != 1 {
		t.Errorf("unexpected progress: %+v", p)
	}
}

func TestServerErrorRetriedThenSucceeds(t *testing.T) {
	config.ResetForTest()
	t.Setenv("HTTP_RETRY_BASE_MS", "10")
	t.Cleanup(config.ResetForTest)

	var calls atomic.Int32
	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{"success":true,"data":{"user_id":"u1","current":3,"longest":7}}`))
	}))

	s, err := client.GetStreak(context.Background())
	if err != nil {
		t.Fatalf("GetStreak: %v", err)
	}
	if s.Current != 3 || s.Longest != 7 {
		t.Errorf("unexpected streak: %+v", s)
	}
	if calls.Load() != 2 {
		t.Errorf("expected 2 calls, got %d", calls.Load())
	}
}

func TestBreakerOpensAfterRepeatedFailures(t *testing.T) {
	config.ResetForTest()
	t.Setenv("HTTP_MAX_RETRIES", "1")
	t.Cleanup(config.ResetForTest)

	client, _ := testClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	for i := 0; i < 5; i++ {
		if _, err := client.GetAllLessons(context.Background()); err == nil {
			t.Fatal("expected error from failing upstream")
		}
	}
	if state := client.BreakerState(); state != "open" {
		t.Errorf("breaker state = %q, want open", state)
	}
}
