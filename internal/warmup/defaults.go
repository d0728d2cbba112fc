package warmup

import (
	"context"
	"time"

	"github.com/signalong/signalong-core/internal/cached"
)

// RegisterDefaults wires the standard warm set: the user's progress is
// critical, the lesson catalog high, the streak medium. With the default
// threshold of PriorityHigh the streak stays cold until first use.
func RegisterDefaults(w *Warmer, client *cached.Client) {
	w.RegisterTask("warm-user-progress", PriorityCritical, 5*time.Second, func(ctx context.Context) error {
		_, err := client.Progress(ctx, cached.Options{Strategy: cached.NetworkOnly})
		return err
	})
	w.RegisterTask("warm-all-lessons", PriorityHigh, 8*time.Second, func(ctx context.Context) error {
		_, err := client.AllLessons(ctx, cached.Options{Strategy: cached.NetworkOnly})
		return err
	})
	w.RegisterTask("warm-user-streak", PriorityMedium, 5*time.Second, func(ctx context.Context) error {
		_, err := client.Streak(ctx, cached.Options{Strategy: cached.NetworkOnly})
		return err
	})
}
