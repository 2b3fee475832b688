// Package cronexpr evaluates cron schedule expressions for the deployment
// scheduler. It accepts standard five-field expressions plus descriptors
// such as @hourly and @every.
package cronexpr

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

var parser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Validate reports whether expr is a parseable cron expression. The returned
// error carries the parser's message and is suitable for surfacing to users.
func Validate(expr string) error {
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// Next returns the first occurrence of expr strictly after from.
func Next(expr string, from time.Time) (time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return sched.Next(from), nil
}

// NextOccurrences returns up to count occurrences of expr, each strictly
// after from and strictly increasing. A malformed expression yields a nil
// slice and the validation error; it never panics. The result is a pure
// function of (expr, from): the scheduler replays it during recovery.
func NextOccurrences(expr string, from time.Time, count int) ([]time.Time, error) {
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}

	occurrences := make([]time.Time, 0, count)
	t := from
	for i := 0; i < count; i++ {
		t = sched.Next(t)
		if t.IsZero() {
			// The schedule has no further activations.
			break
		}
		occurrences = append(occurrences, t)
	}
	return occurrences, nil
}
