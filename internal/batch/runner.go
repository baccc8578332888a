package batch

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	identityrepo "github.com/teampulse/teampulse-backend/internal/data/repos/identity"
	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/identity"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

var tracer = otel.Tracer("teampulse/batch")

// CollectFunc gathers one source's entries for the window.
type CollectFunc func(ctx context.Context, snap *identity.Snapshot, window domain.DayWindow) ([]domain.ActivityEntry, error)

// SourceSpec binds a source to its collector.
type SourceSpec struct {
	Name    domain.Source
	Collect CollectFunc
}

type normalizer interface {
	Normalize(entries []domain.ActivityEntry) []domain.Record
}

type uploader interface {
	Upload(ctx context.Context, source domain.Source, records []domain.Record) error
	Flush(ctx context.Context) error
}

type aggregator interface {
	Aggregate(ctx context.Context, snap *identity.Snapshot, anchor time.Time) ([]*domain.DailyUserActivity, error)
}

type materializer interface {
	Materialize(ctx context.Context, rows []*domain.DailyUserActivity) error
}

type notifier interface {
	NotifyDaily(summary DailySummary)
	NotifyWeekly(summary WeeklySummary, teamSummaries []WeeklySummary)
}

// Runner executes one scheduled batch run end to end: load identities,
// collect every source for yesterday's window, normalize, upload, and then
// whatever the day's run kind adds on top.
type Runner struct {
	log          *logger.Logger
	identities   identityrepo.Repo
	sources      []SourceSpec
	normalizer   normalizer
	uploader     uploader
	aggregator   aggregator
	materializer materializer
	notifier     notifier
}

func NewRunner(
	identities identityrepo.Repo,
	sources []SourceSpec,
	norm normalizer,
	up uploader,
	agg aggregator,
	mat materializer,
	notify notifier,
	log *logger.Logger,
) (*Runner, error) {
	if identities == nil || norm == nil || up == nil || agg == nil || mat == nil || log == nil {
		return nil, fmt.Errorf("runner: missing dependency")
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("runner: no sources configured")
	}
	return &Runner{
		log:          log.With("service", "BatchRunner"),
		identities:   identities,
		sources:      sources,
		normalizer:   norm,
		uploader:     up,
		aggregator:   agg,
		materializer: mat,
		notifier:     notify,
	}, nil
}

// Run executes the batch for the calendar day before now. The run kind comes
// from now's weekday: Friday runs close with a report, Saturday runs open
// with a flush. A single source failing is recorded and skipped; the run only
// fails when nothing at all could be collected or a later stage breaks.
func (r *Runner) Run(ctx context.Context, now time.Time) error {
	loc := utils.CanonicalLocation()
	local := now.In(loc)
	kind := KindForWeekday(local.Weekday())
	window := domain.DayWindowFor(local.AddDate(0, 0, -1), loc)

	ctx, span := tracer.Start(ctx, "batch.run", trace.WithAttributes(
		attribute.String("run.kind", kind.String()),
		attribute.String("run.window", window.Date()),
	))
	defer span.End()

	log := r.log.With("kind", kind.String(), "window", window.Date())
	log.Info("batch run starting")

	if kind == FlushThenRun {
		if err := r.uploader.Flush(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "flush failed")
			return fmt.Errorf("flush: %w", err)
		}
	}

	snap, err := identity.Load(ctx, r.identities, r.log)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "identity load failed")
		return err
	}

	recordCounts := make(map[string]int, len(r.sources))
	var failures []string
	for _, source := range r.sources {
		count, err := r.runSource(ctx, source, snap, window)
		if err != nil {
			failures = append(failures, string(source.Name))
			continue
		}
		recordCounts[string(source.Name)] = count
	}
	if len(failures) == len(r.sources) {
		err := fmt.Errorf("all sources failed: %v", failures)
		span.RecordError(err)
		span.SetStatus(codes.Error, "all sources failed")
		return err
	}

	if r.notifier != nil {
		r.notifier.NotifyDaily(DailySummary{
			Date:     window.Date(),
			Kind:     kind.String(),
			Records:  recordCounts,
			Failures: failures,
		})
	}

	if kind == RunThenReport {
		if err := r.report(ctx, snap, local); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "report failed")
			return err
		}
	}

	log.Info("batch run finished", "records", recordCounts, "failures", failures)
	return nil
}

// runSource collects, normalizes, and uploads one source under its own span.
func (r *Runner) runSource(ctx context.Context, source SourceSpec, snap *identity.Snapshot, window domain.DayWindow) (int, error) {
	ctx, span := tracer.Start(ctx, "batch.source", trace.WithAttributes(
		attribute.String("source.name", string(source.Name)),
	))
	defer span.End()

	entries, err := source.Collect(ctx, snap, window)
	if err != nil {
		r.log.Error("source collection failed, skipping",
			"source", source.Name, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "collect failed")
		return 0, err
	}
	records := r.normalizer.Normalize(entries)
	if err := r.uploadBySource(ctx, records); err != nil {
		r.log.Error("source upload failed",
			"source", source.Name, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "upload failed")
		return 0, err
	}
	span.SetAttributes(attribute.Int("source.records", len(records)))
	return len(records), nil
}

// uploadBySource groups records by their originating source collection. A
// connector may emit entries for more than one source (GitHub produces both
// git and readme records), so grouping happens on the record payload.
func (r *Runner) uploadBySource(ctx context.Context, records []domain.Record) error {
	grouped := make(map[domain.Source][]domain.Record)
	for _, rec := range records {
		source, _ := rec.Payload["source"].(string)
		grouped[domain.Source(source)] = append(grouped[domain.Source(source)], rec)
	}
	for source, batch := range grouped {
		if err := r.uploader.Upload(ctx, source, batch); err != nil {
			return err
		}
	}
	return nil
}

// report aggregates the seven days ending at the run day itself, so a Friday
// run covers the span from the previous Saturday through that Friday.
func (r *Runner) report(ctx context.Context, snap *identity.Snapshot, runDay time.Time) error {
	ctx, span := tracer.Start(ctx, "batch.report")
	defer span.End()

	rows, err := r.aggregator.Aggregate(ctx, snap, runDay)
	if err != nil {
		return fmt.Errorf("aggregate: %w", err)
	}
	if err := r.materializer.Materialize(ctx, rows); err != nil {
		return err
	}

	if r.notifier != nil {
		date := domain.DayWindowFor(runDay, utils.CanonicalLocation()).Date()
		summary := WeeklySummary{
			Date:  date,
			Rows:  len(rows),
			Users: len(snap.Users()),
		}
		for _, row := range rows {
			summary.addRow(row)
		}

		var teamSummaries []WeeklySummary
		for _, team := range snap.Teams() {
			members := snap.MembersOf(team.ID)
			memberSet := make(map[int64]bool, len(members))
			for _, id := range members {
				memberSet[id] = true
			}
			teamSummary := WeeklySummary{
				Date:     date,
				Users:    len(members),
				TeamID:   team.ID,
				TeamName: team.Name,
			}
			for _, row := range rows {
				if !memberSet[row.UserID] {
					continue
				}
				teamSummary.Rows++
				teamSummary.addRow(row)
			}
			teamSummaries = append(teamSummaries, teamSummary)
		}
		r.notifier.NotifyWeekly(summary, teamSummaries)
	}
	return nil
}
