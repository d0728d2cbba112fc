package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/signalong/signalong-core/internal/apierr"
	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/session"
)

// requireSession rejects user-scoped requests when nobody is signed in.
func requireSession(sessions *session.Store, w http.ResponseWriter, r *http.Request) bool {
	if !sessions.Active() {
		apierr.WriteErrorContext(r.Context(), w, apierr.AuthNoSession())
		return false
	}
	return true
}

// GetProgress serves the signed-in user's learning progress.
func GetProgress(client *cached.Client, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(sessions, w, r) {
			return
		}
		p, err := client.Progress(r.Context(), optionsFromQuery(r))
		if err != nil {
			writeFetchError(w, r, err, "progress")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// CompleteLesson marks the lesson in the path as finished.
func CompleteLesson(client *cached.Client, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(sessions, w, r) {
			return
		}
		var body struct {
			Score int `json:"score"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				apierr.WriteErrorContext(r.Context(), w, apierr.ValidationInvalidJSON("request body is not valid JSON"))
				return
			}
		}

		id := mux.Vars(r)["id"]
		p, err := client.CompleteLesson(r.Context(), backendapi.CompleteLessonRequest{
			LessonID: id,
			Score:    body.Score,
		})
		if err != nil {
			if backendapi.IsNotFound(err) {
				apierr.WriteErrorContext(r.Context(), w, apierr.LessonNotFound("lesson "+id+" does not exist"))
				return
			}
			apierr.WriteErrorContext(r.Context(), w, apierr.ProgressUpdateFailed(""))
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// UpdateProgress moves the last-visited lesson pointer.
func UpdateProgress(client *cached.Client, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(sessions, w, r) {
			return
		}
		var body struct {
			LastLessonID string `json:"last_lesson_id"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.ValidationInvalidJSON("request body is not valid JSON"))
			return
		}
		if body.LastLessonID == "" {
			apierr.WriteErrorContext(r.Context(), w, apierr.ValidationMissingField("last_lesson_id"))
			return
		}
		p, err := client.UpdateProgress(r.Context(), body.LastLessonID)
		if err != nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.ProgressUpdateFailed(""))
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
