package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/signalong/signalong-core/internal/apierr"
	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/session"
)

// GetStreak serves the signed-in user's practice streak.
func GetStreak(client *cached.Client, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(sessions, w, r) {
			return
		}
		s, err := client.Streak(r.Context(), optionsFromQuery(r))
		if err != nil {
			writeFetchError(w, r, err, "streak")
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// UpdateStreak records a practice session. An omitted practiced_at defaults
// to now.
func UpdateStreak(client *cached.Client, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(sessions, w, r) {
			return
		}
		var body struct {
			PracticedAt time.Time `json:"practiced_at"`
		}
		if r.Body != nil && r.ContentLength != 0 {
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				apierr.WriteErrorContext(r.Context(), w, apierr.ValidationInvalidJSON("request body is not valid JSON"))
				return
			}
		}
		if body.PracticedAt.IsZero() {
			body.PracticedAt = time.Now()
		}

		s, err := client.UpdateStreak(r.Context(), backendapi.UpdateStreakRequest{PracticedAt: body.PracticedAt})
		if err != nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.StreakUpdateFailed(""))
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

// GetProfile serves the signed-in user's profile.
func GetProfile(client *cached.Client, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !requireSession(sessions, w, r) {
			return
		}
		p, err := client.Profile(r.Context(), optionsFromQuery(r))
		if err != nil {
			writeFetchError(w, r, err, "profile")
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
