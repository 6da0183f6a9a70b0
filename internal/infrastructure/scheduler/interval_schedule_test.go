package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)

	at := time.Date(2026, 3, 10, 14, 35, 12, 0, time.UTC)
	assert.Equal(t, at.Add(10*time.Minute), s.Next(at))
}

func TestIntervalSchedule_FloorsSubSecondPeriods(t *testing.T) {
	s := NewIntervalSchedule(5 * time.Millisecond)
	assert.Equal(t, time.Second, s.Interval)

	s = NewIntervalSchedule(0)
	assert.Equal(t, time.Second, s.Interval)
}

func TestIntervalSchedule_String(t *testing.T) {
	assert.Equal(t, "@every 1h0m0s", NewIntervalSchedule(time.Hour).String())
}
