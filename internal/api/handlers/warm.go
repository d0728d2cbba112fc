package handlers

import (
	"context"
	"net/http"

	"github.com/signalong/signalong-core/internal/apierr"
	"github.com/signalong/signalong-core/internal/session"
	"github.com/signalong/signalong-core/internal/warmup"
)

// TriggerWarm starts a warm run in the background and returns immediately.
// POST /api/warm
func TriggerWarm(warmer *warmup.Warmer, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !sessions.Active() {
			apierr.WriteErrorContext(r.Context(), w, apierr.WarmNoSession())
			return
		}
		if state, _ := warmer.GetStatus(); state == warmup.StateWarming {
			apierr.WriteErrorContext(r.Context(), w, apierr.WarmAlreadyRunning())
			return
		}

		go func() {
			// Detached from the request; a race with another trigger is
			// benign, the losing run logs and stops.
			_, _ = warmer.Run(context.WithoutCancel(r.Context()))
		}()

		writeJSON(w, http.StatusAccepted, map[string]string{"status": "warming"})
	}
}

// WarmStatus reports the warmer state and the last run's report.
// GET /api/warm/status
func WarmStatus(warmer *warmup.Warmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, report := warmer.GetStatus()
		resp := map[string]interface{}{"state": state}
		if report != nil {
			resp["warmed"] = report.Warmed
			resp["failed"] = report.Failed
			resp["total"] = report.Total
			resp["duration_ms"] = report.Duration.Milliseconds()
			resp["failures"] = report.Failures
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// ResetWarm returns a completed warmer to idle.
// POST /api/warm/reset
func ResetWarm(warmer *warmup.Warmer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !warmer.Reset() {
			apierr.WriteErrorContext(r.Context(), w, apierr.WarmAlreadyRunning())
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "idle"})
	}
}
