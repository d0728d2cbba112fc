package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/signalong/signalong-core/internal/apierr"
	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cache"
	"github.com/signalong/signalong-core/internal/cached"
)

// GetLessons serves the lesson catalog. The serialized response is kept in
// the byte cache so repeat hits skip JSON encoding entirely; the entry is
// keyed by the full request URI because strategy parameters change the
// semantics.
func GetLessons(client *cached.Client, resp cache.ByteCache, respTTL time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := optionsFromQuery(r)
		cacheable := opts.Strategy == "" && !opts.SkipCache

		key := "lessons:" + r.URL.RequestURI()
		if cacheable {
			if body, ok := resp.Get(key); ok {
				w.Header().Set("Content-Type", "application/json")
				w.Write(body)
				return
			}
		}

		lessons, err := client.AllLessons(r.Context(), opts)
		if err != nil {
			writeFetchError(w, r, err, "lessons")
			return
		}

		body, err := json.Marshal(lessons)
		if err != nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.SystemInternal("encoding lessons"))
			return
		}
		if cacheable {
			resp.Set(key, body, respTTL)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(body)
	}
}

// GetLesson serves one lesson by ID.
func GetLesson(client *cached.Client) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := mux.Vars(r)["id"]
		lesson, err := client.Lesson(r.Context(), id, optionsFromQuery(r))
		if err != nil {
			if backendapi.IsNotFound(err) {
				apierr.WriteErrorContext(r.Context(), w, apierr.LessonNotFound("lesson "+id+" does not exist"))
				return
			}
			writeFetchError(w, r, err, "lesson")
			return
		}
		writeJSON(w, http.StatusOK, lesson)
	}
}
