// Package httpx wraps outbound HTTP requests with lightweight retries.
package httpx

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/signalong/signalong-core/internal/config"
	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/metrics"
)

// PreAttempt lets callers run logic (e.g. rate limiting) before each try;
// return a context error to abort.
type PreAttempt func(ctx context.Context, attempt int) error

// DoWithRetry issues the request produced by build, retrying transport
// errors, 429s and 5xx responses with backoff and jitter, honoring
// Retry-After. Retry limits and base delay come from config.
func DoWithRetry(ctx context.Context, client *http.Client, build func() (*http.Request, error), pre PreAttempt) (*http.Response, error) {
	cfg := config.Load()
	maxAttempts := cfg.HTTPMaxRetries
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	baseDelay := cfg.HTTPRetryBase

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if pre != nil {
			if err := pre(ctx, attempt); err != nil {
				return nil, err
			}
		}
		req, err := build()
		if err != nil {
			return nil, err
		}
		req = req.WithContext(ctx)

		resp, err := client.Do(req)
		if err != nil {
			metrics.APIRequests.WithLabelValues("error").Inc()
			if attempt == maxAttempts || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				if cfg.LogHTTPRetries {
					logger.Debug("httpx giving up", "attempt", attempt, "url", req.URL.String(), "err", err)
				}
				return nil, err
			}
			metrics.APIRetries.Inc()
		} else {
			if resp.StatusCode != http.StatusTooManyRequests && resp.StatusCode < 500 {
				metrics.APIRequests.WithLabelValues("success").Inc()
				return resp, nil
			}
			// 429 or 5xx, retry if attempts remain.
			metrics.APIRequests.WithLabelValues("retry").Inc()
			if attempt == maxAttempts {
				return resp, nil
			}
			if wait, ok := retryAfter(resp); ok {
				resp.Body.Close()
				metrics.APIRetryAfterWaits.Observe(wait.Seconds())
				if cfg.LogHTTPRetries {
					logger.Debug("httpx honoring Retry-After", "attempt", attempt, "wait", wait, "url", req.URL.String())
				}
				if err := sleepCtx(ctx, wait); err != nil {
					return nil, err
				}
				continue
			}
			resp.Body.Close()
			metrics.APIRetries.Inc()
		}

		jitter := time.Duration(rand.Intn(200)) * time.Millisecond
		delay := baseDelay*time.Duration(attempt) + jitter
		if cfg.LogHTTPRetries {
			logger.Debug("httpx backing off", "attempt", attempt, "delay", delay)
		}
		if err := sleepCtx(ctx, delay); err != nil {
			return nil, err
		}
	}
	return nil, errors.New("httpx: exhausted retries")
}

// retryAfter parses a Retry-After header as either seconds or an HTTP date.
func retryAfter(resp *http.Response) (time.Duration, bool) {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if t, err := http.ParseTime(ra); err == nil {
		if delta := time.Until(t); delta > 0 {
			return delta, true
		}
	}
	return 0, false
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
