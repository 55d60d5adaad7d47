// Package repo implements the data persistence layer for domain entities,
// backed by GORM. This file contains database bootstrapping for the
// supported dialects (pure-Go SQLite, PostgreSQL, MySQL) and schema
// migrations.
package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/plugin/opentelemetry/tracing"

	"github.com/tbourn/genai-studio/internal/domain"
)

// Open connects to the database selected by driver, applies dialect
// settings and pool limits, and registers the OpenTelemetry tracing plugin
// so every query becomes a child span of the request.
func Open(driver, dsn string, maxOpen int) (*gorm.DB, error) {
	var dial gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite":
		// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
		if !strings.HasPrefix(dsn, "file:") {
			if dir := filepath.Dir(dsn); dir != "." {
				if _, err := os.Stat(dir); err != nil {
					return nil, err
				}
			}
		}
		dial = sqlite.Open(dsn)
	case "postgres":
		dial = postgres.Open(dsn)
	case "mysql":
		dial = mysql.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported db driver %q", driver)
	}

	db, err := gorm.Open(dial, &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	if strings.ToLower(driver) == "sqlite" || driver == "" {
		db.Exec("PRAGMA journal_mode=WAL;")
		db.Exec("PRAGMA synchronous=NORMAL;")
		db.Exec("PRAGMA foreign_keys=ON;")
		db.Exec("PRAGMA busy_timeout=5000;")
	}

	if err := db.Use(tracing.NewPlugin(tracing.WithoutMetrics())); err != nil {
		return nil, fmt.Errorf("register tracing plugin: %w", err)
	}

	if maxOpen < 1 {
		maxOpen = 10
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(maxOpen)
		sqlDB.SetMaxIdleConns(maxOpen)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenSQLite opens (or creates) a SQLite database at path.
func OpenSQLite(path string) (*gorm.DB, error) {
	return Open("sqlite", path, 10)
}

// AutoMigrate creates or updates every table the service owns.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&domain.User{},
		&domain.Generation{},
		&domain.ContactMessage{},
		&domain.Subscription{},
		&domain.PaymentOrder{},
		&domain.Idempotency{},
	)
}
