package report

import (
	"context"
	"fmt"

	reportrepo "github.com/teampulse/teampulse-backend/internal/data/repos/report"
	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

// Materializer swaps the report table to a freshly aggregated matrix. The
// table always holds exactly one report's rows; replacement is atomic, so
// readers never see a half-written report.
type Materializer struct {
	log  *logger.Logger
	repo reportrepo.Repo
}

func NewMaterializer(repo reportrepo.Repo, log *logger.Logger) (*Materializer, error) {
	if repo == nil || log == nil {
		return nil, fmt.Errorf("materializer: repo and logger required")
	}
	return &Materializer{log: log.With("service", "Materializer"), repo: repo}, nil
}

func (m *Materializer) Materialize(ctx context.Context, rows []*domain.DailyUserActivity) error {
	if err := m.repo.Replace(ctx, nil, rows); err != nil {
		return fmt.Errorf("replace report rows: %w", err)
	}
	m.log.Info("report materialized", "rows", len(rows))
	return nil
}
