package identity

import (
	"context"

	"gorm.io/gorm"

	types "github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

// Repo exposes the authoritative identity tables the resolver snapshots from.
type Repo interface {
	AllUsers(ctx context.Context, tx *gorm.DB) ([]*types.User, error)
	AllTeams(ctx context.Context, tx *gorm.DB) ([]*types.Team, error)
	AllTeamMembers(ctx context.Context, tx *gorm.DB) ([]*types.TeamMember, error)
	AllGitIdentities(ctx context.Context, tx *gorm.DB) ([]*types.GitIdentity, error)
}

type repo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewRepo(db *gorm.DB, baseLog *logger.Logger) Repo {
	return &repo{db: db, log: baseLog.With("repo", "IdentityRepo")}
}

func (r *repo) AllUsers(ctx context.Context, tx *gorm.DB) ([]*types.User, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.User
	if err := transaction.WithContext(ctx).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repo) AllTeams(ctx context.Context, tx *gorm.DB) ([]*types.Team, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.Team
	if err := transaction.WithContext(ctx).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repo) AllTeamMembers(ctx context.Context, tx *gorm.DB) ([]*types.TeamMember, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.TeamMember
	if err := transaction.WithContext(ctx).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}

func (r *repo) AllGitIdentities(ctx context.Context, tx *gorm.DB) ([]*types.GitIdentity, error) {
	transaction := tx
	if transaction == nil {
		transaction = r.db
	}
	var results []*types.GitIdentity
	if err := transaction.WithContext(ctx).Find(&results).Error; err != nil {
		return nil, err
	}
	return results, nil
}
