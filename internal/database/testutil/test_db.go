package testutil

import (
	"context"
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/mediadesk/mediadesk/internal/authz"
	"github.com/mediadesk/mediadesk/internal/database"
)

type options struct {
	autoMigrate bool
	seedCatalog bool
}

// Option tunes test database construction.
type Option func(*options)

// WithAutoMigrate runs schema migration on the fresh database.
func WithAutoMigrate() Option {
	return func(o *options) { o.autoMigrate = true }
}

// WithCatalog migrates and seeds the built-in role catalog.
func WithCatalog() Option {
	return func(o *options) {
		o.autoMigrate = true
		o.seedCatalog = true
	}
}

// MustOpenTestDB opens an isolated in-memory SQLite database for one test and
// registers cleanup with the test runner.
func MustOpenTestDB(t *testing.T, opts ...Option) *gorm.DB {
	t.Helper()

	cfg := options{}
	for _, opt := range opts {
		opt(&cfg)
	}

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test database: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if cfg.autoMigrate {
		if err := database.AutoMigrate(db); err != nil {
			t.Fatalf("migrate test database: %v", err)
		}
	}
	if cfg.seedCatalog {
		if err := authz.Sync(context.Background(), db); err != nil {
			t.Fatalf("seed role catalog: %v", err)
		}
	}

	return db
}
