package timer

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_next_cron_fire_same_day_when_still_ahead(t *testing.T) {
	after := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	next, err := NextCronFire("10 23 * * *", after)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 4, 1, 23, 10, 0, 0, time.UTC), next)
}

func Test_next_cron_fire_is_strictly_after(t *testing.T) {
	// given: the reference time is exactly a fire time
	after := time.Date(2023, 4, 1, 23, 10, 0, 0, time.UTC)

	next, err := NextCronFire("10 23 * * *", after)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 4, 2, 23, 10, 0, 0, time.UTC), next)
}

func Test_next_cron_fire_rolls_over_month_boundaries(t *testing.T) {
	// given: monthly on the 1st, asked on Jan 31st
	after := time.Date(2023, 1, 31, 12, 0, 0, 0, time.UTC)

	next, err := NextCronFire("0 0 1 * *", after)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 2, 1, 0, 0, 0, 0, time.UTC), next)
}

func Test_next_cron_fire_tolerates_surrounding_whitespace(t *testing.T) {
	after := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	next, err := NextCronFire("  10 23 * * *  ", after)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 4, 1, 23, 10, 0, 0, time.UTC), next)
}

func Test_next_cron_fire_rejects_invalid_expression(t *testing.T) {
	_, err := NextCronFire("not a cron", time.Now())

	assert.Error(t, err)
}

func Test_shift_iso8601_time_components(t *testing.T) {
	from := time.Date(2023, 4, 1, 10, 0, 0, 0, time.UTC)

	at, err := ShiftISO8601("PT1H30M", from)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 4, 1, 11, 30, 0, 0, time.UTC), at)
}

func Test_shift_iso8601_months_use_calendar_arithmetic(t *testing.T) {
	// given: one month after Jan 15 is Feb 15, not 30 fixed days later
	from := time.Date(2023, 1, 15, 9, 0, 0, 0, time.UTC)

	at, err := ShiftISO8601("P1M", from)

	require.NoError(t, err)
	assert.Equal(t, time.Date(2023, 2, 15, 9, 0, 0, 0, time.UTC), at)
}

func Test_shift_iso8601_rejects_garbage(t *testing.T) {
	for _, spec := range []string{"", "   ", "15 minutes", "P"} {
		_, err := ShiftISO8601(spec, time.Now())
		assert.Error(t, err, "spec %q", spec)
	}
}
