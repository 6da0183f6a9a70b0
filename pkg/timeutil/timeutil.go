// Package timeutil provides timezone and billing-cycle time utilities.
// The platform serves students in metropolitan France, so user-facing dates
// are rendered in Europe/Paris while all arithmetic is done on UTC instants.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// ParisTZ is the Europe/Paris timezone used for user-facing formatting.
// Loaded once at startup; falls back to a fixed CET zone when tzdata is
// unavailable (e.g. scratch containers).
var ParisTZ = loadParisTZ()

func loadParisTZ() *time.Location {
	loc, err := time.LoadLocation("Europe/Paris")
	if err != nil {
		return time.FixedZone("CET", 1*60*60)
	}
	return loc
}

// Now returns the current time in UTC.
func Now() time.Time {
	return time.Now().UTC()
}

// ToParis converts a time to the Paris timezone.
func ToParis(t time.Time) time.Time {
	return t.In(ParisTZ)
}

// StartOfDay returns the start of the day (00:00:00) in Paris time.
func StartOfDay(t time.Time) time.Time {
	p := ToParis(t)
	return time.Date(p.Year(), p.Month(), p.Day(), 0, 0, 0, 0, ParisTZ)
}

// AddMonths adds n calendar months to t, clamping the day of month so the
// result never rolls into the following month. January 31 plus one month is
// February 28 (or 29), not March 3. Billing dates rely on this: a
// subscription opened on the 31st must bill on the last day of shorter
// months, and a naive AddDate would silently drift the anchor day forward.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(n), 1, hour, min, sec, t.Nanosecond(), t.Location())
	if lastDay := daysIn(firstOfTarget.Year(), firstOfTarget.Month()); day > lastDay {
		day = lastDay
	}
	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// NextBillingDate returns the billing date one month after t.
func NextBillingDate(t time.Time) time.Time {
	return AddMonths(t, 1)
}

// daysIn returns the number of days in the given month.
func daysIn(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// Window represents a half-open time interval [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Overlaps reports whether two windows share any instant.
func (w Window) Overlaps(other Window) bool {
	return w.From.Before(other.To) && other.From.Before(w.To)
}

// Duration returns the length of the window.
func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// String returns a compact representation for logs.
func (w Window) String() string {
	return fmt.Sprintf("[%s, %s)", w.From.Format(time.RFC3339), w.To.Format(time.RFC3339))
}

// CycleWindow returns the billing cycle ending at nextBilling: the half-open
// month-long interval [nextBilling - 1 month, nextBilling). Session quota is
// always counted against this window, never against calendar months.
func CycleWindow(nextBilling time.Time) Window {
	return Window{From: AddMonths(nextBilling, -1), To: nextBilling}
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatFrenchDate is the French date format (DD/MM/YYYY).
	FormatFrenchDate = "02/01/2006"
	// FormatFrenchDateTime is the French datetime format.
	FormatFrenchDateTime = "02/01/2006 15:04"
)

// FormatParis formats a time in Paris timezone with the given layout.
func FormatParis(t time.Time, layout string) string {
	return ToParis(t).Format(layout)
}

// FormatFrench formats a time in the French date format (DD/MM/YYYY).
func FormatFrench(t time.Time) string {
	return FormatParis(t, FormatFrenchDate)
}

// ParseParis parses a time string in Paris timezone.
func ParseParis(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, ParisTZ)
}

// IsSameDay checks if two times are on the same day in Paris timezone.
func IsSameDay(t1, t2 time.Time) bool {
	p1, p2 := ToParis(t1), ToParis(t2)
	return p1.Year() == p2.Year() && p1.YearDay() == p2.YearDay()
}
