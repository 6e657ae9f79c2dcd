package redis

import (
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kbukum/voicememo/security"
)

// Config holds the connection and event-sink settings.
type Config struct {
	// Enabled controls whether the Redis sink is wired.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	// Addr is the server address (host:port).
	Addr     string `mapstructure:"addr" yaml:"addr"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db"`

	// TLS secures the connection to managed Redis offerings.
	TLS security.TLSConfig `mapstructure:"tls" yaml:"tls"`

	PoolSize     int `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	MaxRetries   int `mapstructure:"max_retries" yaml:"max_retries"`

	// Timeouts are duration strings, e.g. "5s".
	DialTimeout  string `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  string `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout string `mapstructure:"write_timeout" yaml:"write_timeout"`

	// KeyPrefix namespaces every key and channel, e.g. "voicememo".
	KeyPrefix string `mapstructure:"key_prefix" yaml:"key_prefix"`
	// StatusTTL is how long the last event of a task is kept. 0 keeps it
	// forever.
	StatusTTL time.Duration `mapstructure:"status_ttl" yaml:"status_ttl"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 10
	}
	if c.MinIdleConns <= 0 {
		c.MinIdleConns = 2
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.DialTimeout == "" {
		c.DialTimeout = "5s"
	}
	if c.ReadTimeout == "" {
		c.ReadTimeout = "3s"
	}
	if c.WriteTimeout == "" {
		c.WriteTimeout = "3s"
	}
	if c.KeyPrefix == "" {
		c.KeyPrefix = "voicememo"
	}
	if c.StatusTTL == 0 {
		c.StatusTTL = 7 * 24 * time.Hour
	}
}

// Validate checks that required fields are present and parseable.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.Addr == "" {
		return fmt.Errorf("redis addr is required")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be > 0")
	}
	for name, v := range map[string]string{
		"dial_timeout":  c.DialTimeout,
		"read_timeout":  c.ReadTimeout,
		"write_timeout": c.WriteTimeout,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("invalid %s %q: %w", name, v, err)
		}
	}
	return c.TLS.Validate()
}

// EventChannel is the pub/sub channel pipeline events are published on.
func (c Config) EventChannel() string {
	return c.KeyPrefix + ":events"
}

func (c Config) options() (*goredis.Options, error) {
	tlsCfg, err := c.TLS.Build()
	if err != nil {
		return nil, err
	}
	// Validate has already parsed the timeouts.
	dial, _ := time.ParseDuration(c.DialTimeout)
	read, _ := time.ParseDuration(c.ReadTimeout)
	write, _ := time.ParseDuration(c.WriteTimeout)
	return &goredis.Options{
		Addr:         c.Addr,
		Password:     c.Password,
		DB:           c.DB,
		PoolSize:     c.PoolSize,
		MinIdleConns: c.MinIdleConns,
		MaxRetries:   c.MaxRetries,
		DialTimeout:  dial,
		ReadTimeout:  read,
		WriteTimeout: write,
		TLSConfig:    tlsCfg,
	}, nil
}
