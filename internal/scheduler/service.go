// Package scheduler runs in-process maintenance jobs on simple schedules.
// The cache pruner is its main customer; jobs live in memory and die with
// the process.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/signalong/signalong-core/internal/logger"
)

// Job is a named maintenance unit with a schedule expression.
type Job struct {
	Name string
	Expr string
	Run  func(ctx context.Context) error

	nextRun time.Time
}

// Service ticks once per interval and runs every job that has come due.
type Service struct {
	mu    sync.Mutex
	jobs  []*Job
	tick  time.Duration
	stop  chan struct{}
	once  sync.Once
	clock func() time.Time
}

// NewService builds a scheduler that checks for due jobs every tick.
func NewService(tick time.Duration) *Service {
	if tick <= 0 {
		tick = time.Minute
	}
	return &Service{tick: tick, stop: make(chan struct{}), clock: time.Now}
}

// Register adds a job. Returns an error for a bad schedule expression.
func (s *Service) Register(name, expr string, run func(ctx context.Context) error) error {
	next, err := NextRun(expr, s.clock())
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs = append(s.jobs, &Job{Name: name, Expr: expr, Run: run, nextRun: next})
	return nil
}

// Start blocks until the context is cancelled or Stop is called. Run it in
// its own goroutine.
func (s *Service) Start(ctx context.Context) {
	logger.Info("scheduler started", "tick", s.tick, "jobs", len(s.jobs))
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopped", "reason", "context")
			return
		case <-s.stop:
			logger.Info("scheduler stopped", "reason", "signal")
			return
		case <-ticker.C:
			s.runDue(ctx)
		}
	}
}

// Stop shuts the scheduler down. Safe to call more than once.
func (s *Service) Stop() {
	s.once.Do(func() { close(s.stop) })
}

// runDue executes every job whose nextRun has passed and reschedules it.
// Jobs run inline; they are expected to be quick.
func (s *Service) runDue(ctx context.Context) {
	now := s.clock()

	s.mu.Lock()
	var due []*Job
	for _, j := range s.jobs {
		if !j.nextRun.After(now) {
			due = append(due, j)
		}
	}
	s.mu.Unlock()

	for _, j := range due {
		if err := j.Run(ctx); err != nil {
			logger.ErrorContext(ctx, "scheduled job failed", "job", j.Name, "error", err)
		}
		next, err := NextRun(j.Expr, s.clock())
		if err != nil {
			// Validated at registration; keep the job parked rather
			// than letting it fire every tick.
			logger.ErrorContext(ctx, "rescheduling failed", "job", j.Name, "error", err)
			next = s.clock().Add(24 * time.Hour)
		}
		s.mu.Lock()
		j.nextRun = next
		s.mu.Unlock()
	}
}
