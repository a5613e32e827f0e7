// Package timeutil provides campus-timezone utilities for Attendance Hub.
// The university operates in IST (UTC+5:30, no DST), and teacher record
// screens browse sessions by calendar day in that zone.
// No external dependencies - uses only standard library.
package timeutil

import (
	"time"
)

// CampusTZ is the campus timezone (IST, UTC+5:30, no DST).
var CampusTZ = time.FixedZone("Asia/Kolkata", 5*3600+30*60)

// FormatDate is the canonical date layout for day queries.
const FormatDate = "2006-01-02"

// Now returns the current time in the campus timezone.
func Now() time.Time {
	return time.Now().In(CampusTZ)
}

// ToCampus converts a time to the campus timezone.
func ToCampus(t time.Time) time.Time {
	return t.In(CampusTZ)
}

// StartOfDay returns the start of the day (00:00:00) in the campus timezone.
func StartOfDay(t time.Time) time.Time {
	c := ToCampus(t)
	return time.Date(c.Year(), c.Month(), c.Day(), 0, 0, 0, 0, CampusTZ)
}

// EndOfDay returns the exclusive end of the day, i.e. the start of the next
// day in the campus timezone. Day ranges are [StartOfDay, EndOfDay).
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).AddDate(0, 0, 1)
}

// DayBounds returns the half-open [start, end) range covering the calendar
// day that contains t.
func DayBounds(t time.Time) (time.Time, time.Time) {
	start := StartOfDay(t)
	return start, start.AddDate(0, 0, 1)
}

// IsSameDay checks if two times fall on the same campus-timezone day.
func IsSameDay(t1, t2 time.Time) bool {
	c1, c2 := ToCampus(t1), ToCampus(t2)
	return c1.Year() == c2.Year() && c1.YearDay() == c2.YearDay()
}

// FormatDateStr formats a time as a date string (YYYY-MM-DD) in the campus
// timezone.
func FormatDateStr(t time.Time) string {
	return ToCampus(t).Format(FormatDate)
}

// ParseDate parses a date string (YYYY-MM-DD) in the campus timezone.
func ParseDate(value string) (time.Time, error) {
	return time.ParseInLocation(FormatDate, value, CampusTZ)
}
