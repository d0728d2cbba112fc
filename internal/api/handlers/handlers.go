// Package handlers implements the HTTP surface of the cache core: lesson,
// progress and streak reads through the cache-aware client, session
// endpoints that drive warming, and admin endpoints over the store.
package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/signalong/signalong-core/internal/apierr"
	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cached"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// optionsFromQuery builds fetch options from query parameters. Unknown
// strategy values fall back to cache-first.
func optionsFromQuery(r *http.Request) cached.Options {
	q := r.URL.Query()
	opts := cached.Options{}
	switch cached.Strategy(q.Get("strategy")) {
	case cached.NetworkFirst:
		opts.Strategy = cached.NetworkFirst
	case cached.CacheOnly:
		opts.Strategy = cached.CacheOnly
	case cached.NetworkOnly:
		opts.Strategy = cached.NetworkOnly
	}
	if skip, err := strconv.ParseBool(q.Get("skip_cache")); err == nil {
		opts.SkipCache = skip
	}
	return opts
}

// writeFetchError maps read failures to structured responses.
func writeFetchError(w http.ResponseWriter, r *http.Request, err error, resource string) {
	ctx := r.Context()
	switch {
	case errors.Is(err, cached.ErrNoCachedData):
		apierr.WriteErrorContext(ctx, w, apierr.CacheMiss("no cached "+resource+" available"))
	case errors.Is(err, context.DeadlineExceeded):
		apierr.WriteErrorContext(ctx, w, apierr.UpstreamTimeout("fetching "+resource+" timed out"))
	default:
		if apiErr, ok := backendapi.IsAPIError(err); ok && apiErr.Type == backendapi.ErrorAuthFailed {
			apierr.WriteErrorContext(ctx, w, apierr.AuthInvalid("learning API rejected credentials"))
			return
		}
		apierr.WriteErrorContext(ctx, w, apierr.UpstreamFailed("fetching "+resource+" failed"))
	}
}
