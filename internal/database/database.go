// Package database opens the gorm connection pool for the configured driver
// and owns the schema of the links table.
package database

import (
	"context"
	"fmt"
	"strings"

	"github.com/glebarez/sqlite"
	_ "github.com/tursodatabase/libsql-client-go/libsql" // registers the "libsql" driver
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/axellelanca/shortlink/internal/config"
	"github.com/axellelanca/shortlink/internal/models"
)

// Open connects to the database described by cfg and verifies the connection
// within cfg.ConnectTimeout. The returned pool is shared by every request and
// must be released with Close at shutdown.
func Open(ctx context.Context, cfg config.DatabaseConfig, log gormlogger.Interface) (*gorm.DB, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	gormCfg := &gorm.Config{TranslateError: true}
	if log != nil {
		gormCfg.Logger = log
	} else {
		gormCfg.Logger = gormlogger.Discard
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database: %w", cfg.Driver, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if cfg.Driver == config.DriverSQLite {
		// A single connection serialises writers and keeps :memory: databases alive.
		sqlDB.SetMaxOpenConns(1)
		sqlDB.SetMaxIdleConns(1)
		sqlDB.SetConnMaxLifetime(0)
		if err := db.Exec("PRAGMA busy_timeout = 5000").Error; err != nil {
			_ = sqlDB.Close()
			return nil, fmt.Errorf("failed to set sqlite busy_timeout: %w", err)
		}
		_ = db.Exec("PRAGMA journal_mode = WAL").Error
	} else {
		if cfg.MaxOpenConns > 0 {
			sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx := ctx
	if cfg.ConnectTimeout > 0 {
		var cancel context.CancelFunc
		pingCtx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout)
		defer cancel()
	}
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("database ping failed: %w", err)
	}

	return db, nil
}

func dialectorFor(cfg config.DatabaseConfig) (gorm.Dialector, error) {
	switch cfg.Driver {
	case config.DriverSQLite:
		return sqlite.Open(cfg.DSN), nil
	case config.DriverPostgres:
		return postgres.New(postgres.Config{DSN: cfg.DSN}), nil
	case config.DriverLibSQL:
		if !strings.HasPrefix(cfg.DSN, "libsql://") && !strings.HasPrefix(cfg.DSN, "wss://") &&
			!strings.HasPrefix(cfg.DSN, "http://") && !strings.HasPrefix(cfg.DSN, "https://") {
			return nil, fmt.Errorf("libsql dsn must be a libsql://, wss:// or http(s):// URL")
		}
		return &sqlite.Dialector{DriverName: "libsql", DSN: cfg.DSN}, nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
}

// Migrate creates or updates the links table and its indexes.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&models.Link{}); err != nil {
		return fmt.Errorf("failed to migrate links table: %w", err)
	}
	// Rows written before the NOT NULL default existed.
	if err := db.Exec("UPDATE links SET total_clicks = 0 WHERE total_clicks IS NULL").Error; err != nil {
		return fmt.Errorf("failed to backfill total_clicks: %w", err)
	}
	return nil
}

// Close drains the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
