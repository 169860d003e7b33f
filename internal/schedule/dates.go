package schedule

import "time"

// DateOnly truncates t to midnight UTC. All schedule arithmetic operates on
// date-only values; time-of-day is carried separately on the session.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsWeekend reports whether t falls on Saturday or Sunday.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// NextWeekday returns t unchanged if it is a weekday, otherwise the following
// Monday.
func NextWeekday(t time.Time) time.Time {
	for IsWeekend(t) {
		t = t.AddDate(0, 0, 1)
	}
	return t
}

// AddDays advances t by n calendar days and then skips past a weekend if the
// result lands on one.
func AddDays(t time.Time, n int) time.Time {
	return NextWeekday(t.AddDate(0, 0, n))
}
