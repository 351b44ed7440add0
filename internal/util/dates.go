package util

import "time"

// dayLayout is the canonical calendar-day format used throughout the module.
const dayLayout = "2006-01-02"

// Day truncates t to its UTC calendar day at midnight. Every date that
// reaches the engine passes through here, so comparisons are day-granular
// regardless of the source timestamp's zone or time-of-day.
func Day(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDay parses a YYYY-MM-DD string into a UTC-midnight time.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(dayLayout, s)
}

// FormatDay renders t as YYYY-MM-DD.
func FormatDay(t time.Time) string {
	return t.Format(dayLayout)
}

// DaysBetween returns the number of calendar days from a to b. Inputs are
// day-normalized first, so partial days never round the count.
func DaysBetween(a, b time.Time) int {
	return int(Day(b).Sub(Day(a)) / (24 * time.Hour))
}
