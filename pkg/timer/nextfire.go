package timer

import (
	"fmt"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/senseyeio/duration"
)

// NextCronFire returns the next fire time of a standard five-field cron
// expression, strictly after the given time. The calendar arithmetic
// (month/week/day overflow) lives entirely in the cron schedule; callers
// never do their own date math.
func NextCronFire(expression string, after time.Time) (time.Time, error) {
	schedule, err := cron.ParseStandard(strings.TrimSpace(expression))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse cron expression %q: %w", expression, err)
	}
	next := schedule.Next(after)
	if next.IsZero() {
		return time.Time{}, fmt.Errorf("cron expression %q never fires after %s", expression, after)
	}
	return next, nil
}

// ShiftISO8601 returns the given time shifted by an ISO-8601 duration, e.g.
// "PT15M" or "P1M2D". Month and year components shift by calendar units, not
// by a fixed number of hours.
func ShiftISO8601(durationStr string, from time.Time) (time.Time, error) {
	durationStr = strings.TrimSpace(durationStr)
	if durationStr == "" {
		return time.Time{}, fmt.Errorf("empty duration")
	}
	d, err := duration.ParseISO8601(durationStr)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse duration %q: %w", durationStr, err)
	}
	return d.Shift(from), nil
}
