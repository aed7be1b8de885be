package timesheet

import (
	"strings"
	"time"
)

// ClockLayout is the 12-hour time-of-day format stored on work-hours rows.
const ClockLayout = "03:04 PM"

const minutesPerDay = 24 * 60

// ParseClock converts an "hh:mm AM/PM" string into minutes since midnight.
// The hour may have one or two digits and the meridiem is case-insensitive.
func ParseClock(s string) (int, bool) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return 0, false
	}
	t, err := time.Parse("3:04 PM", s)
	if err != nil {
		return 0, false
	}
	return t.Hour()*60 + t.Minute(), true
}

// FormatClock renders minutes since midnight as "hh:mm AM/PM".
func FormatClock(minutes int) string {
	minutes %= minutesPerDay
	if minutes < 0 {
		minutes += minutesPerDay
	}
	return time.Date(2000, 1, 1, minutes/60, minutes%60, 0, 0, time.UTC).Format(ClockLayout)
}

// FormatTime renders the time-of-day of t as "hh:mm AM/PM".
func FormatTime(t time.Time) string {
	return t.Format(ClockLayout)
}

// ComputeHours returns the wall-clock hours between clockIn and clockOut. A
// clock-out earlier than the clock-in is taken to be on the following day.
// Malformed or equal inputs yield 0.
func ComputeHours(clockIn, clockOut string) float64 {
	in, ok := ParseClock(clockIn)
	if !ok {
		return 0
	}
	out, ok := ParseClock(clockOut)
	if !ok || out == in {
		return 0
	}

	elapsed := out - in
	if elapsed < 0 {
		elapsed += minutesPerDay
	}
	return float64(elapsed) / 60
}

// WeekStart returns the Monday of t's week as a stored work date. Sunday
// belongs to the week that started the previous Monday.
func WeekStart(t time.Time) time.Time {
	y, m, d := t.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	wd := int(day.Weekday())
	diff := 1 - wd
	if wd == 0 {
		diff = -6
	}
	return day.AddDate(0, 0, diff)
}
