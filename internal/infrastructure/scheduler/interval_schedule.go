package scheduler

import (
	"fmt"
	"time"
)

// IntervalSchedule fires at a fixed period measured from the previous run,
// with no alignment to wall-clock boundaries. Suited to ad-hoc maintenance
// passes where the exact start minute does not matter; anything anchored to
// a time of day belongs on a CronExpression instead.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates an IntervalSchedule. Periods under one second
// are raised to one second so a misconfigured job cannot spin the scheduler.
func NewIntervalSchedule(interval time.Duration) *IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return &IntervalSchedule{Interval: interval}
}

// Next returns the instant one period after t.
func (s *IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String describes the schedule in the @every form used by cron tooling.
func (s *IntervalSchedule) String() string {
	return fmt.Sprintf("@every %s", s.Interval)
}
