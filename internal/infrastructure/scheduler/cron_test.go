package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCronExpression_Invalid(t *testing.T) {
	tests := []struct {
		name string
		expr string
	}{
		{"too few fields", "0 2 * *"},
		{"too many fields", "0 2 * * * *"},
		{"minute out of range", "60 * * * *"},
		{"hour out of range", "* 24 * * *"},
		{"garbage value", "abc * * * *"},
		{"zero step", "*/0 * * * *"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseCronExpression(tt.expr)
			assert.Error(t, err)
		})
	}
}

func TestCronNext(t *testing.T) {
	// Monday 2025-03-10, 14:35 UTC.
	base := time.Date(2025, 3, 10, 14, 35, 0, 0, time.UTC)

	tests := []struct {
		name string
		expr string
		want time.Time
	}{
		{
			"nightly billing sweep waits for 02:00",
			EveryDay2AM,
			time.Date(2025, 3, 11, 2, 0, 0, 0, time.UTC),
		},
		{
			"reminder pass fires on the next 10-minute mark",
			Every10Minutes,
			time.Date(2025, 3, 10, 14, 40, 0, 0, time.UTC),
		},
		{
			"top of the hour",
			EveryHour,
			time.Date(2025, 3, 10, 15, 0, 0, 0, time.UTC),
		},
		{
			"first of month",
			FirstOfMonth,
			time.Date(2025, 4, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			"specific weekday", // 3 = Wednesday
			"30 9 * * 3",
			time.Date(2025, 3, 12, 9, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ce, err := ParseCronExpression(tt.expr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ce.Next(base))
		})
	}
}

func TestCronNext_NeverReturnsCurrentMinute(t *testing.T) {
	ce := MustParseCronExpression("* * * * *")
	base := time.Date(2025, 3, 10, 14, 35, 20, 0, time.UTC)

	next := ce.Next(base)
	assert.Equal(t, time.Date(2025, 3, 10, 14, 36, 0, 0, time.UTC), next)
}

func TestCronFieldForms(t *testing.T) {
	// 14:35 on the 10th matches a range, list, and step form.
	at := time.Date(2025, 3, 10, 14, 35, 0, 0, time.UTC)

	for _, expr := range []string{
		"30-40 * * * *",
		"5,20,35 * * * *",
		"*/5 14 * * *",
	} {
		ce, err := ParseCronExpression(expr)
		require.NoError(t, err, expr)
		assert.True(t, ce.matches(at), expr)
	}
}

func TestMustParseCronExpression_PanicsOnInvalid(t *testing.T) {
	assert.Panics(t, func() {
		MustParseCronExpression("not a cron")
	})
}
