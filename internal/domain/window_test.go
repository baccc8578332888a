package domain

import (
	"testing"
	"time"
)

func TestDayWindowForCoversWholeDay(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	w := DayWindowFor(time.Date(2026, 3, 14, 15, 9, 26, 0, loc), loc)

	if want := time.Date(2026, 3, 14, 0, 0, 0, 0, loc); !w.Start.Equal(want) {
		t.Fatalf("start: want=%v got=%v", want, w.Start)
	}
	if want := time.Date(2026, 3, 15, 0, 0, 0, 0, loc); !w.End.Equal(want) {
		t.Fatalf("end: want=%v got=%v", want, w.End)
	}
	if got := w.Date(); got != "2026-03-14" {
		t.Fatalf("date: want=2026-03-14 got=%s", got)
	}
}

func TestDayWindowContainsIsHalfOpen(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	w := DayWindowFor(time.Date(2026, 3, 14, 12, 0, 0, 0, loc), loc)

	if !w.Contains(w.Start) {
		t.Fatalf("window should contain its start")
	}
	if w.Contains(w.End) {
		t.Fatalf("window should not contain its end")
	}
	if !w.Contains(w.End.Add(-time.Second)) {
		t.Fatalf("window should contain the last second of the day")
	}
}

func TestDayWindowContainsCrossTimezone(t *testing.T) {
	loc := time.FixedZone("KST", 9*3600)
	w := DayWindowFor(time.Date(2026, 3, 14, 12, 0, 0, 0, loc), loc)

	// 2026-03-13T16:00:00Z is 2026-03-14T01:00:00+09:00
	utc := time.Date(2026, 3, 13, 16, 0, 0, 0, time.UTC)
	if !w.Contains(utc) {
		t.Fatalf("instant inside the day in KST should be contained regardless of zone")
	}
}
