package store

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/yungbote/mlcompare/internal/platform/logger"
)

// IsPostgresDSN reports whether dsn names a Postgres database rather than
// a SQLite file.
func IsPostgresDSN(dsn string) bool {
	s := strings.ToLower(strings.TrimSpace(dsn))
	return strings.HasPrefix(s, "postgres://") ||
		strings.HasPrefix(s, "postgresql://") ||
		strings.Contains(s, "host=")
}

// Open connects to dsn and migrates the schema.
func Open(dsn string, logg *logger.Logger) (*gorm.DB, error) {
	return open(dsn, logg, gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	))
}

func open(dsn string, logg *logger.Logger, gl gormLogger.Interface) (*gorm.DB, error) {
	if logg == nil {
		logg = logger.Nop()
	}
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, fmt.Errorf("missing database dsn")
	}

	var dialector gorm.Dialector
	driver := "sqlite"
	if IsPostgresDSN(dsn) {
		driver = "postgres"
		dialector = postgres.Open(dsn)
	} else {
		dialector = sqlite.Open(dsn)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gl,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", driver, err)
	}
	if driver == "sqlite" {
		// a single writer avoids "database is locked" under parallel training
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.SetMaxOpenConns(1)
		}
	}
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	logg.Info("Database ready", "driver", driver)
	return db, nil
}
