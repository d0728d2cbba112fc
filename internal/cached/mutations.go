package cached

import (
	"context"

	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cache"
	"github.com/signalong/signalong-core/internal/logger"
)

// target names one cache entry a mutation makes stale.
type target struct {
	namespace string
	key       string
}

// Invalidation map per mutation. A failed mutation never invalidates:
// stale-but-consistent beats empty.
var (
	completeLessonInvalidates = []target{
		{NSLessons, "all_lessons"},
		{NSProgress, "progress"},
	}
	updateStreakInvalidates = []target{
		{NSStreak, "streak"},
		{NSProgress, "progress"},
	}
	updateProgressInvalidates = []target{
		{NSProgress, "progress"},
	}
)

func (c *Client) invalidate(ctx context.Context, mutation string, targets []target) {
	for _, t := range targets {
		c.store.Delete(t.namespace, t.key)
	}
	logger.DebugContext(ctx, "invalidated cache after mutation",
		"mutation", mutation, "targets", len(targets))
}

// CompleteLesson records a finished lesson upstream, refreshes the cached
// progress with the response, and drops the now-stale lesson list.
func (c *Client) CompleteLesson(ctx context.Context, req backendapi.CompleteLessonRequest) (*backendapi.Progress, error) {
	p, err := c.api.CompleteLesson(ctx, req)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, "complete-lesson", completeLessonInvalidates)
	c.store.Set(NSProgress, "progress", p)
	return p, nil
}

// UpdateStreak records a practice session upstream and refreshes the cached
// streak with the response.
func (c *Client) UpdateStreak(ctx context.Context, req backendapi.UpdateStreakRequest) (*backendapi.Streak, error) {
	s, err := c.api.UpdateStreak(ctx, req)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, "update-streak", updateStreakInvalidates)
	c.store.Set(NSStreak, "streak", s)
	return s, nil
}

// UpdateProgress moves the last-visited lesson pointer upstream and
// refreshes the cached progress.
func (c *Client) UpdateProgress(ctx context.Context, lastLessonID string) (*backendapi.Progress, error) {
	p, err := c.api.UpdateProgress(ctx, lastLessonID)
	if err != nil {
		return nil, err
	}
	c.invalidate(ctx, "update-progress", updateProgressInvalidates)
	c.store.Set(NSProgress, "progress", p)
	return p, nil
}

// InvalidateUserData drops every user-scoped namespace. Called on sign-out
// and on user switch; the lesson catalog is shared and survives.
func (c *Client) InvalidateUserData() {
	for _, ns := range []string{NSProgress, NSStreak, NSProfile} {
		c.store.ClearNamespace(ns)
	}
}

// CacheStats reports hit/miss counters for the backing store.
func (c *Client) CacheStats() cache.Stats {
	return c.store.Stats()
}

// ClearCache empties one namespace, or everything when ns is empty.
func (c *Client) ClearCache(ns string) {
	if ns == "" {
		c.store.Clear()
		return
	}
	c.store.ClearNamespace(ns)
}
