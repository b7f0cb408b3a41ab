package domain

import "time"

// WeekStart returns the most recent Sunday on or before t, at midnight in loc.
// The result is a calendar date normalized to midnight UTC so that it compares
// equal to the same DATE read back from storage.
func WeekStart(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := t.In(loc)
	sunday := local.AddDate(0, 0, -int(local.Weekday()))
	return time.Date(sunday.Year(), sunday.Month(), sunday.Day(), 0, 0, 0, 0, time.UTC)
}

// ParseWeekStart parses a YYYY-MM-DD date and snaps it to its week start.
func ParseWeekStart(s string) (time.Time, error) {
	d, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return WeekStart(d, time.UTC), nil
}

// DateOnly normalizes t to midnight UTC of its calendar date in t's location.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
