package apierr

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestErrorInterface(t *testing.T) {
	err := New(ErrCacheMiss, "nothing cached", http.StatusNotFound)
	if err.Error() != "CACHE_MISS: nothing cached" {
		t.Errorf("unexpected Error() output: %s", err.Error())
	}
	if err.Status() != http.StatusNotFound {
		t.Errorf("expected 404, got %d", err.Status())
	}
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, CacheMiss(""))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON content type, got %q", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Error == nil || resp.Error.Code != ErrCacheMiss {
		t.Fatalf("unexpected error payload: %+v", resp.Error)
	}
}

func TestHelperStatuses(t *testing.T) {
	cases := []struct {
		name string
		err  *Error
		want int
	}{
		{"auth missing", AuthMissing(""), http.StatusUnauthorized},
		{"no session", AuthNoSession(), http.StatusUnauthorized},
		{"lesson not found", LessonNotFound(""), http.StatusNotFound},
		{"upstream timeout", UpstreamTimeout(""), http.StatusGatewayTimeout},
		{"warm running", WarmAlreadyRunning(), http.StatusConflict},
		{"invalid pattern", CacheInvalidPattern(""), http.StatusBadRequest},
		{"rate limit ip", RateLimitIP(), http.StatusTooManyRequests},
		{"internal", SystemInternal(""), http.StatusInternalServerError},
	}
	for _, c := range cases {
		if c.err.Status() != c.want {
			t.Errorf("%s: expected status %d, got %d", c.name, c.want, c.err.Status())
		}
		if c.err.Message == "" {
			t.Errorf("%s: expected default message", c.name)
		}
	}
}

func TestWithDetailsAndRequestID(t *testing.T) {
	err := ValidationMissingField("lesson_id").
		WithDetails(map[string]interface{}{"field": "lesson_id"}).
		WithRequestID("req-1")
	if err.Details["field"] != "lesson_id" {
		t.Errorf("expected details to carry field name")
	}
	if err.RequestID != "req-1" {
		t.Errorf("expected request ID to be set")
	}
}
