package report

import (
	"context"
	"fmt"
	"time"

	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/identity"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/platform/qdrant"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

// ReportDays is the span of the weekly report: the anchor day plus the six
// days before it.
const ReportDays = 7

// counter is the slice of the vector store client the aggregator needs.
type counter interface {
	CollectionExists(ctx context.Context, collection string) (bool, error)
	Count(ctx context.Context, collection string, filter *qdrant.Filter) (int, error)
}

// Aggregator derives per-user daily activity counts from the stored records.
// Every cell of the user-by-day matrix is an exact count query; the docs
// remainder bucket is computed as total minus the named formats so nothing a
// user touched goes uncounted.
type Aggregator struct {
	log   *logger.Logger
	store counter
}

func NewAggregator(store counter, log *logger.Logger) (*Aggregator, error) {
	if store == nil || log == nil {
		return nil, fmt.Errorf("aggregator: store and logger required")
	}
	return &Aggregator{log: log.With("service", "Aggregator"), store: store}, nil
}

// Aggregate builds one row per (user, day) for the seven days ending at
// anchor. Day 0 is the earliest day of the span; rows come out ordered by
// day then by user load order.
func (a *Aggregator) Aggregate(ctx context.Context, snap *identity.Snapshot, anchor time.Time) ([]*domain.DailyUserActivity, error) {
	loc := utils.CanonicalLocation()
	anchorDay := domain.DayWindowFor(anchor, loc)

	exists := make(map[domain.Source]bool)
	for _, source := range []domain.Source{domain.SourceGit, domain.SourceTeams, domain.SourceEmail, domain.SourceDocs} {
		ok, err := a.store.CollectionExists(ctx, domain.CollectionFor(source))
		if err != nil {
			return nil, fmt.Errorf("check collection %s: %w", domain.CollectionFor(source), err)
		}
		exists[source] = ok
	}

	var rows []*domain.DailyUserActivity
	for offset := 0; offset < ReportDays; offset++ {
		dayStart := anchorDay.Start.AddDate(0, 0, offset-(ReportDays-1))
		// closed bounds: the store compares at second granularity
		gte := dayStart
		lte := dayStart.AddDate(0, 0, 1).Add(-time.Second)
		reportDate := dayStart

		for _, user := range snap.Users() {
			row := &domain.DailyUserActivity{
				UserID:     user.ID,
				ReportDate: reportDate,
				Day:        domain.Weekday(offset),
			}
			if err := a.fillRow(ctx, row, user.ID, gte, lte, exists); err != nil {
				return nil, fmt.Errorf("aggregate user=%d day=%d: %w", user.ID, offset, err)
			}
			rows = append(rows, row)
		}
	}
	return rows, nil
}

func (a *Aggregator) fillRow(ctx context.Context, row *domain.DailyUserActivity, userID int64, gte, lte time.Time, exists map[domain.Source]bool) error {
	count := func(source domain.Source, kind string) (int, error) {
		if !exists[source] {
			return 0, nil
		}
		// chunked entries share a natural key; counting only the first chunk
		// counts entries, not chunks
		filter := qdrant.NewFilter().
			Match("author", userID).
			Match("chunk_index", 0).
			DatetimeRange("date", gte, lte)
		if kind != "" {
			filter.Match("type", kind)
		}
		return a.store.Count(ctx, domain.CollectionFor(source), filter)
	}

	var err error
	if row.GitCommit, err = count(domain.SourceGit, "commit"); err != nil {
		return err
	}
	if row.GitPullRequest, err = count(domain.SourceGit, "pull_request"); err != nil {
		return err
	}
	if row.GitIssue, err = count(domain.SourceGit, "issue"); err != nil {
		return err
	}

	if row.TeamsPost, err = count(domain.SourceTeams, "post"); err != nil {
		return err
	}
	if row.TeamsReply, err = count(domain.SourceTeams, "reply"); err != nil {
		return err
	}

	if row.EmailSend, err = count(domain.SourceEmail, "send"); err != nil {
		return err
	}
	if row.EmailReceive, err = count(domain.SourceEmail, "receive"); err != nil {
		return err
	}

	if row.DocsDocx, err = count(domain.SourceDocs, "docx"); err != nil {
		return err
	}
	if row.DocsXlsx, err = count(domain.SourceDocs, "xlsx"); err != nil {
		return err
	}
	if row.DocsPptx, err = count(domain.SourceDocs, "pptx"); err != nil {
		return err
	}
	docsTotal, err := count(domain.SourceDocs, "")
	if err != nil {
		return err
	}
	row.DocsEtc = docsTotal - row.DocsDocx - row.DocsXlsx - row.DocsPptx
	if row.DocsEtc < 0 {
		row.DocsEtc = 0
	}
	return nil
}
