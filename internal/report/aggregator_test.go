package report

import (
	"context"
	"fmt"
	"testing"
	"time"

	identityrepo "github.com/teampulse/teampulse-backend/internal/data/repos/identity"
	"github.com/teampulse/teampulse-backend/internal/data/repos/testutil"
	"github.com/teampulse/teampulse-backend/internal/identity"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/platform/qdrant"
)

// fakeCounter answers count queries from a static (collection, type) table;
// aggregate cells not in the table count zero.
type fakeCounter struct {
	collections map[string]bool
	counts      map[string]int
	queries     int
}

func (f *fakeCounter) CollectionExists(ctx context.Context, collection string) (bool, error) {
	return f.collections[collection], nil
}

func (f *fakeCounter) Count(ctx context.Context, collection string, filter *qdrant.Filter) (int, error) {
	f.queries++
	kind := ""
	if m := filter.AsMap(); m != nil {
		for _, cond := range m["must"].([]map[string]any) {
			if cond["key"] == "type" {
				kind, _ = cond["match"].(map[string]any)["value"].(string)
			}
		}
	}
	return f.counts[collection+"|"+kind], nil
}

func testSnapshot(t *testing.T, userCount int) *identity.Snapshot {
	t.Helper()
	ctx := context.Background()
	gdb := testutil.DB(t)
	log := testutil.Logger(t)
	for i := 0; i < userCount; i++ {
		testutil.SeedUser(t, ctx, gdb, fmt.Sprintf("user%d@example.com", i), fmt.Sprintf("User %d", i))
	}
	snap, err := identity.Load(ctx, identityrepo.NewRepo(gdb, log), log)
	if err != nil {
		t.Fatalf("load snapshot: %v", err)
	}
	return snap
}

func TestAggregateBuildsFullMatrix(t *testing.T) {
	store := &fakeCounter{
		collections: map[string]bool{
			"activity_git":   true,
			"activity_teams": true,
			"activity_email": true,
			"activity_docs":  true,
		},
		counts: map[string]int{
			"activity_git|commit": 2,
			"activity_teams|post": 1,
			"activity_email|send": 3,
		},
	}
	agg, err := NewAggregator(store, logger.Nop())
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	snap := testSnapshot(t, 3)
	anchor := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	rows, err := agg.Aggregate(context.Background(), snap, anchor)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}

	if len(rows) != ReportDays*3 {
		t.Fatalf("matrix rows: want=%d got=%d", ReportDays*3, len(rows))
	}
	for _, row := range rows {
		if row.GitCommit != 2 || row.TeamsPost != 1 || row.EmailSend != 3 {
			t.Fatalf("counts not carried into row: %+v", row)
		}
		if row.Day < 0 || int(row.Day) >= ReportDays {
			t.Fatalf("day offset out of range: %d", row.Day)
		}
	}
}

func TestAggregateDayOffsetsAreChronological(t *testing.T) {
	store := &fakeCounter{collections: map[string]bool{}}
	agg, err := NewAggregator(store, logger.Nop())
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	snap := testSnapshot(t, 1)
	anchor := time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC)
	rows, err := agg.Aggregate(context.Background(), snap, anchor)
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	if len(rows) != ReportDays {
		t.Fatalf("rows: want=%d got=%d", ReportDays, len(rows))
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].ReportDate.After(rows[i-1].ReportDate) {
			t.Fatalf("report dates must ascend: %v then %v",
				rows[i-1].ReportDate, rows[i].ReportDate)
		}
		if rows[i].Day != rows[i-1].Day+1 {
			t.Fatalf("day offsets must ascend: %d then %d", rows[i-1].Day, rows[i].Day)
		}
	}
	if rows[0].Day != 0 {
		t.Fatalf("first day offset: want=0 got=%d", rows[0].Day)
	}
}

func TestAggregateDocsRemainderBucket(t *testing.T) {
	store := &fakeCounter{
		collections: map[string]bool{"activity_docs": true},
		counts: map[string]int{
			"activity_docs|docx": 2,
			"activity_docs|xlsx": 1,
			"activity_docs|pptx": 0,
			"activity_docs|":     7, // unfiltered total
		},
	}
	agg, err := NewAggregator(store, logger.Nop())
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	snap := testSnapshot(t, 1)
	rows, err := agg.Aggregate(context.Background(), snap, time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("aggregate: %v", err)
	}
	row := rows[0]
	if row.DocsEtc != 4 {
		t.Fatalf("docs remainder: want=4 got=%d", row.DocsEtc)
	}
}

func TestAggregateSkipsMissingCollections(t *testing.T) {
	store := &fakeCounter{collections: map[string]bool{}}
	agg, err := NewAggregator(store, logger.Nop())
	if err != nil {
		t.Fatalf("new aggregator: %v", err)
	}

	snap := testSnapshot(t, 2)
	rows, err := agg.Aggregate(context.Background(), snap, time.Date(2026, 3, 13, 23, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("aggregate with no collections: %v", err)
	}
	if store.queries != 0 {
		t.Fatalf("no count queries expected for missing collections, got %d", store.queries)
	}
	for _, row := range rows {
		if row.GitCommit != 0 || row.DocsEtc != 0 {
			t.Fatalf("all counts should be zero: %+v", row)
		}
	}
}
