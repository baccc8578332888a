package db

import (
	"gorm.io/gorm"

	types "github.com/teampulse/teampulse-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// Identity tables (read-only for the pipeline)
		&types.User{},
		&types.Team{},
		&types.TeamMember{},
		&types.GitIdentity{},

		// Report output
		&types.DailyUserActivity{},
	)
}
