// Package warmup preloads the request cache after sign-in. Tasks are grouped
// into priority tiers; a tier's tasks run concurrently and tiers run strictly
// in order, so critical data is warm before anything lower is attempted.
package warmup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/signalong/signalong-core/internal/logger"
	"github.com/signalong/signalong-core/internal/metrics"
)

// Priority orders warm tasks. Lower runs earlier.
type Priority int

const (
	PriorityCritical Priority = 1
	PriorityHigh     Priority = 2
	PriorityMedium   Priority = 3
	PriorityLow      Priority = 4
)

// State is the warmer lifecycle.
type State string

const (
	StateIdle      State = "idle"
	StateWarming   State = "warming"
	StateCompleted State = "completed"
)

// Fetcher performs one warm fetch, writing into the cache as a side effect.
// A non-nil error marks the task failed; it never aborts the run.
type Fetcher func(ctx context.Context) error

// Task is one registered warm unit.
type Task struct {
	Name     string
	Priority Priority
	Timeout  time.Duration
	Run      Fetcher
}

// Progress is delivered after each tier settles.
type Progress struct {
	Tier      Priority
	Completed int
	Failed    int
	Total     int
	ETA       time.Duration
}

// Report summarizes a finished run.
type Report struct {
	Warmed   []string
	Failed   []string
	Total    int
	Duration time.Duration
	Failures map[string]string // task name -> error text
}

// SessionChecker gates warming on an active session.
type SessionChecker interface {
	Active() bool
}

// Warmer runs registered tasks by tier. Safe for concurrent use; at most one
// run is in flight at a time.
type Warmer struct {
	mu        sync.Mutex
	tasks     []Task
	state     State
	last      *Report
	threshold Priority
	sessions  SessionChecker

	onProgress   func(Progress)
	onCompletion func(Report)
}

// New builds a Warmer that runs tasks with priority <= threshold.
func New(sessions SessionChecker, threshold Priority) *Warmer {
	return &Warmer{state: StateIdle, threshold: threshold, sessions: sessions}
}

// RegisterTask adds a warm task. Registration order within a tier does not
// matter; tiers are ordered by priority at run time.
func (w *Warmer) RegisterTask(name string, priority Priority, timeout time.Duration, fn Fetcher) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tasks = append(w.tasks, Task{Name: name, Priority: priority, Timeout: timeout, Run: fn})
}

// OnProgress installs a progress callback, invoked after each settled tier.
func (w *Warmer) OnProgress(fn func(Progress)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onProgress = fn
}

// OnCompletion installs a callback invoked once per finished run.
func (w *Warmer) OnCompletion(fn func(Report)) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.onCompletion = fn
}

// GetStatus returns the current state and the last finished report, if any.
func (w *Warmer) GetStatus() (State, *Report) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state, w.last
}

// Reset returns a completed warmer to idle so it can run again, e.g. after a
// user switch. A running warmer cannot be reset.
func (w *Warmer) Reset() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.state == StateWarming {
		return false
	}
	w.state = StateIdle
	w.last = nil
	return true
}

// Run executes all eligible tasks and returns the report. It returns a nil
// report with an error, running nothing, when no user is signed in or a run
// is already in flight.
func (w *Warmer) Run(ctx context.Context) (*Report, error) {
	if w.sessions != nil && !w.sessions.Active() {
		return nil, fmt.Errorf("cache warming requires an active session")
	}

	w.mu.Lock()
	if w.state == StateWarming {
		w.mu.Unlock()
		logger.Warn("cache warming already in progress, ignoring request")
		return nil, fmt.Errorf("cache warming already in progress")
	}
	w.state = StateWarming
	eligible := make([]Task, 0, len(w.tasks))
	for _, t := range w.tasks {
		if t.Priority <= w.threshold {
			eligible = append(eligible, t)
		}
	}
	onProgress := w.onProgress
	onCompletion := w.onCompletion
	w.mu.Unlock()

	start := time.Now()
	report := &Report{Total: len(eligible), Failures: map[string]string{}}

	for _, tier := range groupByTier(eligible) {
		if err := ctx.Err(); err != nil {
			w.finish(report, start, onCompletion)
			return report, err
		}
		runTier(ctx, tier, report)
		if onProgress != nil {
			done := len(report.Warmed) + len(report.Failed)
			onProgress(Progress{
				Tier:      tier[0].Priority,
				Completed: len(report.Warmed),
				Failed:    len(report.Failed),
				Total:     report.Total,
				ETA:       estimateETA(start, done, report.Total),
			})
		}
	}

	w.finish(report, start, onCompletion)
	return report, nil
}

// runTier executes one tier's tasks concurrently and waits for all of them.
// Only this goroutine touches the report afterwards, so results are collected
// under a local mutex.
func runTier(ctx context.Context, tier []Task, report *Report) {
	var mu sync.Mutex
	var g errgroup.Group

	for _, task := range tier {
		task := task
		g.Go(func() error {
			taskStart := time.Now()
			err := runOne(ctx, task)
			metrics.WarmTaskDuration.WithLabelValues(task.Name).Observe(time.Since(taskStart).Seconds())

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				report.Failed = append(report.Failed, task.Name)
				report.Failures[task.Name] = err.Error()
				metrics.WarmTasksTotal.WithLabelValues("failed").Inc()
				logger.Warn("warm task failed", "task", task.Name, "error", err)
			} else {
				report.Warmed = append(report.Warmed, task.Name)
				metrics.WarmTasksTotal.WithLabelValues("warmed").Inc()
			}
			return nil
		})
	}
	g.Wait()
}

// runOne races the task against its timeout. The fetcher still receives the
// deadline context so cooperative implementations cancel their I/O, but a
// fetcher that ignores its context cannot hold the tier past the deadline:
// the select returns ctx.Err() and the stray goroutine is abandoned.
func runOne(ctx context.Context, task Task) error {
	if task.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, task.Timeout)
		defer cancel()
	}

	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- fmt.Errorf("warm task panicked: %v", r)
			}
		}()
		done <- task.Run(ctx)
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (w *Warmer) finish(report *Report, start time.Time, onCompletion func(Report)) {
	report.Duration = time.Since(start)
	metrics.WarmRunDuration.Observe(report.Duration.Seconds())

	w.mu.Lock()
	w.state = StateCompleted
	w.last = report
	w.mu.Unlock()

	logger.Info("cache warming finished",
		"warmed", len(report.Warmed), "failed", len(report.Failed),
		"total", report.Total, "duration", report.Duration)
	if onCompletion != nil {
		onCompletion(*report)
	}
}

// groupByTier splits tasks into per-priority groups, lowest priority value
// first.
func groupByTier(tasks []Task) [][]Task {
	byTier := map[Priority][]Task{}
	for _, t := range tasks {
		byTier[t.Priority] = append(byTier[t.Priority], t)
	}
	prios := make([]Priority, 0, len(byTier))
	for p := range byTier {
		prios = append(prios, p)
	}
	sort.Slice(prios, func(i, j int) bool { return prios[i] < prios[j] })

	out := make([][]Task, 0, len(prios))
	for _, p := range prios {
		out = append(out, byTier[p])
	}
	return out
}

// estimateETA projects remaining time from the average pace so far.
func estimateETA(start time.Time, done, total int) time.Duration {
	if done == 0 || done >= total {
		return 0
	}
	perTask := time.Since(start) / time.Duration(done)
	return perTask * time.Duration(total-done)
}
