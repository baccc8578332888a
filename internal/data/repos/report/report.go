package report

import (
	"context"

	"gorm.io/gorm"

	types "github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

// Repo owns the daily_user_activity table. The table is always replaced as a
// whole so it reflects exactly one snapshot of the vector store.
type Repo interface {
	Replace(ctx context.Context, tx *gorm.DB, rows []*types.DailyUserActivity) error
	All(ctx context.Context, tx *gorm.DB) ([]*types.DailyUserActivity, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{db: db, log: baseLog.With("repo", "ReportRepo")}
}

func (r *repo) Replace(ctx context.Context, tx *gorm.DB, rows []*types.DailyUserActivity) error {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	return transaction.WithContext(ctx).Transaction(func(innerTx *gorm.DB) error {
		if err := innerTx.Where("1 = 1").Delete(&types.DailyUserActivity{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return innerTx.CreateInBatches(rows, 500).Error
	})
}

func (r *repo) All(ctx context.Context, tx *gorm.DB) ([]*types.DailyUserActivity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.DailyUserActivity
	if err := transaction.WithContext(ctx).
		Order("report_date, user_id").
		Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
