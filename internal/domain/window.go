package domain

import "time"

// DayWindow is the half-open interval [Start, End) covering one calendar day
// in the canonical timezone.
type DayWindow struct {
	Start time.Time
	End   time.Time
}

// DayWindowFor returns the window for the calendar day containing t,
// interpreted in loc.
func DayWindowFor(t time.Time, loc *time.Location) DayWindow {
	local := t.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return DayWindow{Start: start, End: start.AddDate(0, 0, 1)}
}

// Contains reports whether ts falls inside the window. The comparison runs on
// instants, so callers may pass timestamps in any location.
func (w DayWindow) Contains(ts time.Time) bool {
	return !ts.Before(w.Start) && ts.Before(w.End)
}

// Date returns the window's day formatted as YYYY-MM-DD.
func (w DayWindow) Date() string {
	return w.Start.Format("2006-01-02")
}
