package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires a job every fixed period. Both maintenance jobs run
// on intervals: stale-issuer reaping every few minutes, roster warming less
// often. There is no cron-style schedule because nothing here cares about
// wall-clock alignment, only about how long a dead session can linger.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a schedule that fires every interval.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	return &IntervalSchedule{
		Interval: interval,
	}
}

// Next returns the run after t, always exactly one interval out.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String renders the schedule for job registration logs.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval.String())
}
