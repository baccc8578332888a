package batch

import "time"

// RunKind is what a scheduled run does beyond collecting and uploading.
type RunKind int

const (
	// RunPlain collects and uploads only.
	RunPlain RunKind = iota
	// RunThenReport additionally aggregates the weekly report and notifies.
	RunThenReport
	// FlushThenRun drops every collection before collecting, resetting the
	// store for the week ahead.
	FlushThenRun
)

func (k RunKind) String() string {
	switch k {
	case RunThenReport:
		return "run_then_report"
	case FlushThenRun:
		return "flush_then_run"
	default:
		return "plain"
	}
}

// KindForWeekday maps the calendar day to the run shape: Friday closes the
// week with a report, Saturday starts the next one with a flush, every other
// day just collects.
func KindForWeekday(day time.Weekday) RunKind {
	switch day {
	case time.Friday:
		return RunThenReport
	case time.Saturday:
		return FlushThenRun
	default:
		return RunPlain
	}
}
