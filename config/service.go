package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/kbukum/voicememo/logger"
)

// ServiceConfig contains the fields every voicememo binary needs.
// Application configs embed it with `mapstructure:",squash"`.
type ServiceConfig struct {
	Name        string        `yaml:"name" mapstructure:"name"`
	Environment string        `yaml:"environment" mapstructure:"environment"`
	Version     string        `yaml:"version" mapstructure:"version"`
	Debug       bool          `yaml:"debug" mapstructure:"debug"`
	Logging     logger.Config `yaml:"logging" mapstructure:"logging"`

	// ShutdownTimeout bounds graceful shutdown. Zero keeps the bootstrap
	// default.
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" mapstructure:"shutdown_timeout"`
}

// ApplyDefaults applies default values to the base configuration.
func (c *ServiceConfig) ApplyDefaults() {
	if c.Name == "" {
		c.Name = "voicememo"
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.Environment == "development" {
		c.Debug = true
	}
	c.Logging.ApplyDefaults()
}

// Validate validates the base configuration fields.
func (c *ServiceConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("config.name is required")
	}
	envs := []string{"development", "staging", "production"}
	if !slices.Contains(envs, c.Environment) {
		return fmt.Errorf("config.environment must be one of %v (got: %s)", envs, c.Environment)
	}
	if c.ShutdownTimeout < 0 {
		return fmt.Errorf("config.shutdown_timeout must be non-negative (got: %s)", c.ShutdownTimeout)
	}
	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("config.logging: %w", err)
	}
	return nil
}

// GetServiceConfig returns the embedded base config.
func (c *ServiceConfig) GetServiceConfig() *ServiceConfig {
	return c
}
