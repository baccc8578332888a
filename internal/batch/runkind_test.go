package batch

import (
	"testing"
	"time"
)

func TestKindForWeekday(t *testing.T) {
	cases := []struct {
		day  time.Weekday
		want RunKind
	}{
		{time.Sunday, RunPlain},
		{time.Monday, RunPlain},
		{time.Tuesday, RunPlain},
		{time.Wednesday, RunPlain},
		{time.Thursday, RunPlain},
		{time.Friday, RunThenReport},
		{time.Saturday, FlushThenRun},
	}
	for _, tc := range cases {
		if got := KindForWeekday(tc.day); got != tc.want {
			t.Fatalf("%v: want=%v got=%v", tc.day, tc.want, got)
		}
	}
}

func TestRunKindString(t *testing.T) {
	if RunPlain.String() != "plain" {
		t.Fatalf("plain: got=%s", RunPlain.String())
	}
	if RunThenReport.String() != "run_then_report" {
		t.Fatalf("report: got=%s", RunThenReport.String())
	}
	if FlushThenRun.String() != "flush_then_run" {
		t.Fatalf("flush: got=%s", FlushThenRun.String())
	}
}
