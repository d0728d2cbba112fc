// Command warm runs one warming pass against the learning API and prints the
// report. Useful for smoke-testing credentials and warm-task configuration
// without starting the server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/signalong/signalong-core/internal/backendapi"
	"github.com/signalong/signalong-core/internal/cache"
	"github.com/signalong/signalong-core/internal/cached"
	"github.com/signalong/signalong-core/internal/config"
	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/session"
	"github.com/signalong/signalong-core/internal/warmup"
)

func main() {
	userID := flag.String("user", "local", "user ID to warm for")
	threshold := flag.Int("threshold", 0, "priority threshold override (0 = config default)")
	timeout := flag.Duration("timeout", time.Minute, "overall warm timeout")
	flag.Parse()

	_ = godotenv.Load()
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	store := cache.NewStore(
		cache.WithDefaultTTL(cfg.CacheDefaultTTL),
		cache.WithNamespaceTTLs(cfg.NamespaceTTLs()),
	)
	client := cached.NewClient(backendapi.NewClient(cfg), store)

	sessions := session.NewStore()
	sessions.SignIn(*userID, "")

	prio := warmup.Priority(cfg.WarmPriorityThreshold)
	if *threshold > 0 {
		prio = warmup.Priority(*threshold)
	}
	warmer := warmup.New(sessions, prio)
	warmup.RegisterDefaults(warmer, client)
	warmer.OnProgress(func(p warmup.Progress) {
		fmt.Printf("tier %d settled: %d warmed, %d failed of %d\n",
			p.Tier, p.Completed, p.Failed, p.Total)
	})

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := warmer.Run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warm run failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("warmed %d/%d in %s\n", len(report.Warmed), report.Total, report.Duration.Round(time.Millisecond))
	for task, msg := range report.Failures {
		fmt.Printf("  failed %s: %s\n", task, msg)
	}
	if len(report.Failed) > 0 {
		os.Exit(1)
	}
}
