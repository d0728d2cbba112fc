package scheduler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// NextRun computes the next execution time for a schedule expression from a
// base time. Supported forms: @every <duration> (with a d suffix for days),
// @hourly, @daily, @weekly, @monthly, @yearly.
func NextRun(expr string, base time.Time) (time.Time, error) {
	expr = strings.TrimSpace(expr)
	switch {
	case expr == "@yearly" || expr == "@annually":
		return time.Date(base.Year()+1, 1, 1, 0, 0, 0, 0, base.Location()), nil
	case expr == "@monthly":
		year, month := base.Year(), base.Month()+1
		if month > 12 {
			month = 1
			year++
		}
		return time.Date(year, month, 1, 0, 0, 0, 0, base.Location()), nil
	case expr == "@weekly":
		days := (7 - int(base.Weekday())) % 7
		if days == 0 {
			days = 7
		}
		return time.Date(base.Year(), base.Month(), base.Day()+days, 0, 0, 0, 0, base.Location()), nil
	case expr == "@daily":
		return time.Date(base.Year(), base.Month(), base.Day()+1, 0, 0, 0, 0, base.Location()), nil
	case expr == "@hourly":
		return base.Add(time.Hour).Truncate(time.Hour), nil
	case strings.HasPrefix(expr, "@every "):
		return parseEvery(strings.TrimPrefix(expr, "@every "), base)
	default:
		return time.Time{}, fmt.Errorf("unsupported schedule expression: %s", expr)
	}
}

// parseEvery handles durations like "30s", "5m", "1h" and a "d" suffix for
// days, which time.ParseDuration does not accept.
func parseEvery(duration string, base time.Time) (time.Time, error) {
	if strings.HasSuffix(duration, "d") {
		days, err := strconv.Atoi(strings.TrimSuffix(duration, "d"))
		if err != nil {
			return time.Time{}, fmt.Errorf("invalid duration: %s", duration)
		}
		return base.Add(time.Duration(days) * 24 * time.Hour), nil
	}
	d, err := time.ParseDuration(duration)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid duration: %s", duration)
	}
	if d <= 0 {
		return time.Time{}, fmt.Errorf("duration must be positive: %s", duration)
	}
	return base.Add(d), nil
}

// Validate checks a schedule expression without computing anything.
func Validate(expr string) error {
	_, err := NextRun(expr, time.Now())
	return err
}
