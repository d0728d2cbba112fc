package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/signalong/signalong-core/internal/apierr"
	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/session"
	"github.com/signalong/signalong-core/internal/warmup"
)

// SignIn starts a session and, when enabled, kicks off cache warming in the
// background. A user switch drops the previous user's cached data first.
func SignIn(sessions *session.Store, client *cached.Client, warmer *warmup.Warmer, warmOnSession bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			UserID      string `json:"user_id"`
			DisplayName string `json:"display_name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.ValidationInvalidJSON("request body is not valid JSON"))
			return
		}
		if body.UserID == "" {
			apierr.WriteErrorContext(r.Context(), w, apierr.ValidationMissingField("user_id"))
			return
		}

		if prev := sessions.CurrentUser(); prev != nil && prev.ID != body.UserID {
			client.InvalidateUserData()
			warmer.Reset()
		}
		user := sessions.SignIn(body.UserID, body.DisplayName)

		if warmOnSession {
			go func() {
				// Detach from the request; warming outlives the response.
				if _, err := warmer.Run(context.WithoutCancel(r.Context())); err != nil {
					logger.Warn("post-signin warming skipped", "error", err)
				}
			}()
		}

		writeJSON(w, http.StatusCreated, map[string]interface{}{
			"user_id":      user.ID,
			"display_name": user.DisplayName,
			"signed_in_at": user.SignedInAt,
			"warming":      warmOnSession,
		})
	}
}

// SignOut ends the session and drops user-scoped cached data.
func SignOut(sessions *session.Store, client *cached.Client, warmer *warmup.Warmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sessions.SignOut() {
			apierr.WriteErrorContext(r.Context(), w, apierr.AuthNoSession())
			return
		}
		client.InvalidateUserData()
		warmer.Reset()
		writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
	}
}

// GetSession reports who is signed in.
func GetSession(sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		user := sessions.CurrentUser()
		if user == nil {
			apierr.WriteErrorContext(r.Context(), w, apierr.AuthNoSession())
			return
		}
		writeJSON(w, http.StatusOK, user)
	}
}
