package database

import (
	"fmt"
	"time"
)

// Config is the database section. Only sqlite is supported; the DSN is a
// file path, a file: URI, or ":memory:".
type Config struct {
	DSN string `mapstructure:"dsn"`
	// MaxOpenConns defaults to 1 since sqlite serializes writers.
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	// MaxRetries bounds open attempts at startup.
	MaxRetries  int  `mapstructure:"max_retries"`
	AutoMigrate bool `mapstructure:"auto_migrate"`
	// LogLevel is silent, error, warn or info.
	LogLevel           string        `mapstructure:"log_level"`
	SlowQueryThreshold time.Duration `mapstructure:"slow_query_threshold"`
}

func (c *Config) ApplyDefaults() {
	if c.DSN == "" {
		c.DSN = "./data/voicememo.db"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 1
	}
	if c.ConnMaxLifetime == 0 {
		c.ConnMaxLifetime = time.Hour
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.LogLevel == "" {
		c.LogLevel = "warn"
	}
	if c.SlowQueryThreshold == 0 {
		c.SlowQueryThreshold = 200 * time.Millisecond
	}
}

func (c *Config) Validate() error {
	switch {
	case c.DSN == "":
		return fmt.Errorf("database DSN is required")
	case c.MaxOpenConns <= 0:
		return fmt.Errorf("max_open_conns must be > 0")
	case c.MaxRetries <= 0:
		return fmt.Errorf("max_retries must be > 0")
	case c.ConnMaxLifetime < 0 || c.SlowQueryThreshold < 0:
		return fmt.Errorf("durations must not be negative")
	}
	if _, ok := gormLevels[c.LogLevel]; !ok {
		return fmt.Errorf("unknown log_level %q", c.LogLevel)
	}
	return nil
}
