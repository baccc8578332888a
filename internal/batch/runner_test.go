package batch

import (
	"context"
	"fmt"
	"testing"
	"time"

	identityrepo "github.com/teampulse/teampulse-backend/internal/data/repos/identity"
	"github.com/teampulse/teampulse-backend/internal/data/repos/testutil"
	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/identity"
)

type fakeNormalizer struct{}

func (fakeNormalizer) Normalize(entries []domain.ActivityEntry) []domain.Record {
	var out []domain.Record
	for i, entry := range entries {
		out = append(out, domain.Record{
			ID:   domain.RecordID(entry.Source(), entry.NaturalKey(), 0),
			Text: fmt.Sprintf("record %d", i),
			Payload: map[string]any{
				"source": string(entry.Source()),
			},
		})
	}
	return out
}

type fakeUploader struct {
	flushes int
	uploads map[domain.Source]int
	order   []string
}

func newFakeUploader() *fakeUploader {
	return &fakeUploader{uploads: make(map[domain.Source]int)}
}

func (f *fakeUploader) Upload(ctx context.Context, source domain.Source, records []domain.Record) error {
	f.uploads[source] += len(records)
	f.order = append(f.order, "upload:"+string(source))
	return nil
}

func (f *fakeUploader) Flush(ctx context.Context) error {
	f.flushes++
	f.order = append(f.order, "flush")
	return nil
}

type fakeAggregator struct {
	calls   int
	anchors []time.Time
	rows    []*domain.DailyUserActivity
}

func (f *fakeAggregator) Aggregate(ctx context.Context, snap *identity.Snapshot, anchor time.Time) ([]*domain.DailyUserActivity, error) {
	f.calls++
	f.anchors = append(f.anchors, anchor)
	if f.rows != nil {
		return f.rows, nil
	}
	return []*domain.DailyUserActivity{{UserID: 1, GitCommit: 5}}, nil
}

type fakeMaterializer struct{ rows int }

func (f *fakeMaterializer) Materialize(ctx context.Context, rows []*domain.DailyUserActivity) error {
	f.rows += len(rows)
	return nil
}

type fakeNotifier struct {
	daily  []DailySummary
	weekly []WeeklySummary
	teams  [][]WeeklySummary
}

func (f *fakeNotifier) NotifyDaily(summary DailySummary) { f.daily = append(f.daily, summary) }
func (f *fakeNotifier) NotifyWeekly(summary WeeklySummary, teamSummaries []WeeklySummary) {
	f.weekly = append(f.weekly, summary)
	f.teams = append(f.teams, teamSummaries)
}

func seededIdentityRepo(t *testing.T) identityrepo.Repo {
	t.Helper()
	ctx := context.Background()
	gdb := testutil.DB(t)
	testutil.SeedUser(t, ctx, gdb, "alice@example.com", "Alice Kim")
	return identityrepo.NewRepo(gdb, testutil.Logger(t))
}

func commitSource(calls *[]domain.DayWindow) SourceSpec {
	return SourceSpec{
		Name: domain.SourceGit,
		Collect: func(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
			if calls != nil {
				*calls = append(*calls, window)
			}
			return []domain.ActivityEntry{domain.CommitEntry{
				Repo: "acme/svc", SHA: "abc", Date: window.Start.Add(time.Hour),
			}}, nil
		},
	}
}

func failingSource(name domain.Source) SourceSpec {
	return SourceSpec{
		Name: name,
		Collect: func(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error) {
			return nil, fmt.Errorf("%s provider down", name)
		},
	}
}

func newTestRunner(t *testing.T, sources []SourceSpec, up *fakeUploader, agg *fakeAggregator, mat *fakeMaterializer, notify *fakeNotifier) *Runner {
	t.Helper()
	runner, err := NewRunner(seededIdentityRepo(t), sources, fakeNormalizer{}, up, agg, mat, notify, testutil.Logger(t))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}
	return runner
}

// Run kinds key off the weekday in the canonical timezone, so the test
// instants are built in that zone.
var kst = time.FixedZone("KST", 9*3600)

// 2026-03-16 is a Monday.
func mondayRun() time.Time { return time.Date(2026, 3, 16, 23, 0, 0, 0, kst) }

// 2026-03-13 is a Friday; 2026-03-14 a Saturday.
func fridayRun() time.Time   { return time.Date(2026, 3, 13, 23, 0, 0, 0, kst) }
func saturdayRun() time.Time { return time.Date(2026, 3, 14, 23, 0, 0, 0, kst) }

func TestRunPlainCollectsYesterday(t *testing.T) {
	var windows []domain.DayWindow
	up := newFakeUploader()
	agg := &fakeAggregator{}
	mat := &fakeMaterializer{}
	notify := &fakeNotifier{}
	runner := newTestRunner(t, []SourceSpec{commitSource(&windows)}, up, agg, mat, notify)

	if err := runner.Run(context.Background(), mondayRun()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(windows) != 1 {
		t.Fatalf("collect calls: want=1 got=%d", len(windows))
	}
	if got := windows[0].Date(); got != "2026-03-15" {
		t.Fatalf("window day: want=2026-03-15 got=%s", got)
	}
	if up.flushes != 0 {
		t.Fatalf("plain run must not flush")
	}
	if agg.calls != 0 || mat.rows != 0 {
		t.Fatalf("plain run must not report")
	}
	if up.uploads[domain.SourceGit] != 1 {
		t.Fatalf("git upload: want=1 got=%d", up.uploads[domain.SourceGit])
	}
	if len(notify.daily) != 1 {
		t.Fatalf("daily notification: want=1 got=%d", len(notify.daily))
	}
}

func TestRunSaturdayFlushesFirst(t *testing.T) {
	up := newFakeUploader()
	runner := newTestRunner(t, []SourceSpec{commitSource(nil)}, up, &fakeAggregator{}, &fakeMaterializer{}, &fakeNotifier{})

	if err := runner.Run(context.Background(), saturdayRun()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if up.flushes != 1 {
		t.Fatalf("saturday run must flush once, got %d", up.flushes)
	}
	if len(up.order) == 0 || up.order[0] != "flush" {
		t.Fatalf("flush must precede uploads: %v", up.order)
	}
}

func TestRunFridayProducesReport(t *testing.T) {
	up := newFakeUploader()
	agg := &fakeAggregator{}
	mat := &fakeMaterializer{}
	notify := &fakeNotifier{}
	runner := newTestRunner(t, []SourceSpec{commitSource(nil)}, up, agg, mat, notify)

	if err := runner.Run(context.Background(), fridayRun()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if agg.calls != 1 {
		t.Fatalf("aggregate calls: want=1 got=%d", agg.calls)
	}
	if mat.rows != 1 {
		t.Fatalf("materialized rows: want=1 got=%d", mat.rows)
	}
	if len(notify.weekly) != 1 {
		t.Fatalf("weekly notification: want=1 got=%d", len(notify.weekly))
	}
	if notify.weekly[0].TotalGit != 5 {
		t.Fatalf("weekly git total: want=5 got=%d", notify.weekly[0].TotalGit)
	}
	if up.flushes != 0 {
		t.Fatalf("friday run must not flush")
	}
}

// The Friday report covers the six days before the run day plus the run day
// itself, so the aggregation anchors on the run day rather than on
// yesterday's collection window.
func TestRunFridayAnchorsReportOnRunDay(t *testing.T) {
	agg := &fakeAggregator{}
	runner := newTestRunner(t, []SourceSpec{commitSource(nil)}, newFakeUploader(), agg, &fakeMaterializer{}, &fakeNotifier{})

	if err := runner.Run(context.Background(), fridayRun()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(agg.anchors) != 1 {
		t.Fatalf("aggregate anchors: want=1 got=%d", len(agg.anchors))
	}
	if got := agg.anchors[0].In(kst).Format("2006-01-02"); got != "2026-03-13" {
		t.Fatalf("report anchor day: want=2026-03-13 got=%s", got)
	}
}

func TestRunFridayTeamSummariesScopedToMembers(t *testing.T) {
	ctx := context.Background()
	gdb := testutil.DB(t)
	testutil.SeedUser(t, ctx, gdb, "alice@example.com", "Alice Kim")
	testutil.SeedUser(t, ctx, gdb, "bob@example.com", "Bob Lee")
	testutil.SeedTeam(t, ctx, gdb, "team-1", "777")
	testutil.SeedTeamMember(t, ctx, gdb, "team-1", "alice@example.com")
	repo := identityrepo.NewRepo(gdb, testutil.Logger(t))

	agg := &fakeAggregator{rows: []*domain.DailyUserActivity{
		{UserID: 1, GitCommit: 2},
		{UserID: 2, GitCommit: 3},
	}}
	notify := &fakeNotifier{}
	runner, err := NewRunner(repo, []SourceSpec{commitSource(nil)}, fakeNormalizer{},
		newFakeUploader(), agg, &fakeMaterializer{}, notify, testutil.Logger(t))
	if err != nil {
		t.Fatalf("new runner: %v", err)
	}

	if err := runner.Run(ctx, fridayRun()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(notify.weekly) != 1 || notify.weekly[0].TotalGit != 5 {
		t.Fatalf("org summary git total: want=5 got=%+v", notify.weekly)
	}
	if len(notify.teams) != 1 || len(notify.teams[0]) != 1 {
		t.Fatalf("team summaries: want one batch of one, got=%+v", notify.teams)
	}
	team := notify.teams[0][0]
	if team.TeamID != "team-1" || team.Users != 1 || team.Rows != 1 || team.TotalGit != 2 {
		t.Fatalf("team summary scoped wrong: %+v", team)
	}
}

func TestRunIsolatesFailingSource(t *testing.T) {
	up := newFakeUploader()
	notify := &fakeNotifier{}
	runner := newTestRunner(t,
		[]SourceSpec{failingSource(domain.SourceTeams), commitSource(nil)},
		up, &fakeAggregator{}, &fakeMaterializer{}, notify)

	if err := runner.Run(context.Background(), mondayRun()); err != nil {
		t.Fatalf("one failing source must not fail the run: %v", err)
	}
	if up.uploads[domain.SourceGit] != 1 {
		t.Fatalf("healthy source should still upload")
	}
	if len(notify.daily) != 1 || len(notify.daily[0].Failures) != 1 {
		t.Fatalf("failure should be reported in daily summary: %+v", notify.daily)
	}
	if notify.daily[0].Failures[0] != "teams" {
		t.Fatalf("failure name: want=teams got=%s", notify.daily[0].Failures[0])
	}
}

func TestRunFailsWhenEverySourceFails(t *testing.T) {
	runner := newTestRunner(t,
		[]SourceSpec{failingSource(domain.SourceGit), failingSource(domain.SourceTeams)},
		newFakeUploader(), &fakeAggregator{}, &fakeMaterializer{}, &fakeNotifier{})

	if err := runner.Run(context.Background(), mondayRun()); err == nil {
		t.Fatalf("expected error when no source succeeds")
	}
}
