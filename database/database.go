// Package database opens the sqlite database behind the task store.
package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/resilience"
)

type DB struct {
	gorm *gorm.DB
	cfg  Config
	log  *logger.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open opens cfg.DSN, creating its directory first. A locked or briefly
// unavailable file is retried MaxRetries times.
func Open(ctx context.Context, cfg Config, log *logger.Logger) (*DB, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if dir := dbDir(cfg.DSN); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	log = log.WithComponent("database")

	retry := resilience.DefaultRetryConfig()
	retry.MaxAttempts = cfg.MaxRetries
	retry.InitialBackoff = time.Second
	retry.OnRetry = func(attempt int, err error, wait time.Duration) {
		log.Warn("database open failed, retrying", logger.Fields(
			logger.FieldAttempt, attempt,
			logger.FieldError, err.Error(),
			"backoff", wait.String(),
		))
	}
	gdb, err := resilience.Retry(ctx, retry, func(ctx context.Context, _ int) (*gorm.DB, error) {
		return connect(ctx, cfg, log)
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	log.Info("database connection established", logger.Fields("dsn", cfg.DSN))
	return &DB{gorm: gdb, cfg: cfg, log: log}, nil
}

func connect(ctx context.Context, cfg Config, log *logger.Logger) (*gorm.DB, error) {
	gdb, err := gorm.Open(sqlite.Open(cfg.DSN), &gorm.Config{Logger: newQueryLog(log, &cfg)})
	if err != nil {
		return nil, err
	}
	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, err
	}
	return gdb, nil
}

// dbDir is the directory a file DSN lives in, or "" when there is nothing
// to create.
func dbDir(dsn string) string {
	if dsn == ":memory:" || strings.HasPrefix(dsn, "file:") {
		return ""
	}
	if dir := filepath.Dir(dsn); dir != "." {
		return dir
	}
	return ""
}

// WithContext returns a GORM session bound to ctx.
func (d *DB) WithContext(ctx context.Context) *gorm.DB {
	return d.gorm.WithContext(ctx)
}

func (d *DB) PingContext(ctx context.Context) error {
	sqlDB, err := d.gorm.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// AutoMigrate migrates models unless auto_migrate is off.
func (d *DB) AutoMigrate(models ...interface{}) error {
	if !d.cfg.AutoMigrate {
		return nil
	}
	if err := d.gorm.AutoMigrate(models...); err != nil {
		return fmt.Errorf("auto-migrate: %w", err)
	}
	d.log.Debug("auto-migration completed", logger.Fields("models", len(models)))
	return nil
}

// Close closes the pool once. Later calls return the first result.
func (d *DB) Close() error {
	d.closeOnce.Do(func() {
		sqlDB, err := d.gorm.DB()
		if err != nil {
			d.closeErr = err
			return
		}
		d.log.Info("closing database connection")
		d.closeErr = sqlDB.Close()
	})
	return d.closeErr
}
