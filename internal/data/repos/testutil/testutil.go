package testutil

import (
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/teampulse/teampulse-backend/internal/data/db"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
)

func Logger(tb testing.TB) *logger.Logger {
	tb.Helper()
	return logger.Nop()
}

// DB opens a fresh in-memory sqlite database with the full schema. Each call
// returns an isolated database, so tests never share state.
func DB(tb testing.TB) *gorm.DB {
	tb.Helper()

	gdb, err := gorm.Open(sqlite.Open("file::memory:?cache=private"), &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		tb.Fatalf("open test db: %v", err)
	}
	if err := db.AutoMigrateAll(gdb); err != nil {
		tb.Fatalf("migrate test db: %v", err)
	}
	tb.Cleanup(func() {
		if sqlDB, err := gdb.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return gdb
}
