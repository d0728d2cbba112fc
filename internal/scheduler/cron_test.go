package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestNextRunEvery(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		expr string
		want time.Time
	}{
		{"@every 30s", base.Add(30 * time.Second)},
		{"@every 5m", base.Add(5 * time.Minute)},
		{"@every 2h", base.Add(2 * time.Hour)},
		{"@every 3d", base.Add(72 * time.Hour)},
	}
	for _, tc := range tests {
		got, err := NextRun(tc.expr, base)
		if err != nil {
			t.Errorf("NextRun(%q): %v", tc.expr, err)
			continue
		}
		if !got.Equal(tc.want) {
			t.Errorf("NextRun(%q) = %v, want %v", tc.expr, got, tc.want)
		}
	}
}

func TestNextRunNamed(t *testing.T) {
	base := time.Date(2026, 3, 10, 12, 30, 0, 0, time.UTC) // a Tuesday
	hourly, _ := NextRun("@hourly", base)
	if hourly != base.Add(time.Hour).Truncate(time.Hour) {
		t.Errorf("@hourly = %v", hourly)
	}
	daily, _ := NextRun("@daily", base)
	if daily != time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC) {
		t.Errorf("@daily = %v", daily)
	}
	weekly, _ := NextRun("@weekly", base)
	if weekly != time.Date(2026, 3, 15, 0, 0, 0, 0, time.UTC) {
		t.Errorf("@weekly = %v", weekly)
	}
	monthly, _ := NextRun("@monthly", base)
	if monthly != time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC) {
		t.Errorf("@monthly = %v", monthly)
	}
}

func TestNextRunRejectsBadExpressions(t *testing.T) {
	for _, expr := range []string{"", "every 5m", "@every", "@every x", "@every -5m", "*/5 * * * *"} {
		if _, err := NextRun(expr, time.Now()); err == nil {
			t.Errorf("NextRun(%q) should fail", expr)
		}
	}
}

func TestServiceRunsDueJobs(t *testing.T) {
	svc := NewService(5 * time.Millisecond)
	var runs atomic.Int32
	if err := svc.Register("prune", "@every 10ms", func(ctx context.Context) error {
		runs.Add(1)
		return nil
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		svc.Start(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 2 {
		select {
		case <-deadline:
			t.Fatalf("job ran %d times, want >= 2", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	<-done
}

func TestRegisterRejectsBadSchedule(t *testing.T) {
	svc := NewService(time.Minute)
	if err := svc.Register("bad", "whenever", func(ctx context.Context) error { return nil }); err == nil {
		t.Fatal("Register with a bad expression must fail")
	}
}
