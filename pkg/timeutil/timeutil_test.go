package timeutil

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDayBounds_HalfOpen(t *testing.T) {
	// 23:55 campus time, expressed in UTC.
	late := time.Date(2026, 2, 10, 18, 25, 0, 0, time.UTC)

	start, end := DayBounds(late)
	assert.Equal(t, time.Date(2026, 2, 10, 0, 0, 0, 0, CampusTZ).UnixNano(), start.UnixNano())
	assert.Equal(t, time.Date(2026, 2, 11, 0, 0, 0, 0, CampusTZ).UnixNano(), end.UnixNano())

	// The instant at end belongs to the next day.
	assert.False(t, late.Before(start))
	assert.True(t, late.Before(end))
	assert.False(t, end.Before(EndOfDay(late)))
}

func TestIsSameDay_AcrossTimezones(t *testing.T) {
	// 20:00 UTC is 01:30 the next campus day.
	evening := time.Date(2026, 2, 10, 20, 0, 0, 0, time.UTC)
	nextMorning := time.Date(2026, 2, 11, 3, 0, 0, 0, CampusTZ)

	assert.True(t, IsSameDay(evening, nextMorning))
	assert.False(t, IsSameDay(evening, evening.Add(-3*time.Hour)))
}

func TestParseDate_RoundTrip(t *testing.T) {
	day, err := ParseDate("2026-02-10")
	require.NoError(t, err)
	assert.Equal(t, "2026-02-10", FormatDateStr(day))
	assert.Equal(t, CampusTZ.String(), day.Location().String())

	_, err = ParseDate("10/02/2026")
	assert.Error(t, err)
}
