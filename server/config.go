package server

import (
	"errors"
	"fmt"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/kbukum/voicememo/server/middleware"
)

// Config is the "server" section. WriteTimeout does not bound the event
// stream, which lifts it per request.
type Config struct {
	Host         string                `yaml:"host" mapstructure:"host"`
	Port         int                   `yaml:"port" mapstructure:"port"`
	ReadTimeout  time.Duration         `yaml:"read_timeout" mapstructure:"read_timeout"`
	WriteTimeout time.Duration         `yaml:"write_timeout" mapstructure:"write_timeout"`
	IdleTimeout  time.Duration         `yaml:"idle_timeout" mapstructure:"idle_timeout"`
	MaxBodySize  string                `yaml:"max_body_size" mapstructure:"max_body_size"`
	CORS         middleware.CORSConfig `yaml:"cors" mapstructure:"cors"`
}

func (c *Config) ApplyDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8080
	}
	for _, d := range []struct {
		field *time.Duration
		def   time.Duration
	}{
		{&c.ReadTimeout, 15 * time.Second},
		{&c.WriteTimeout, 15 * time.Second},
		{&c.IdleTimeout, time.Minute},
	} {
		if *d.field == 0 {
			*d.field = d.def
		}
	}
	if c.MaxBodySize == "" {
		c.MaxBodySize = "1MB"
	}

	cors := &c.CORS
	if len(cors.AllowedOrigins) == 0 {
		cors.AllowedOrigins = []string{"*"}
	}
	if len(cors.AllowedMethods) == 0 {
		cors.AllowedMethods = []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}
	}
	if len(cors.AllowedHeaders) == 0 {
		cors.AllowedHeaders = []string{"Origin", "Content-Type", "Accept", "Last-Event-ID"}
	}
}

func (c *Config) Validate() error {
	var errs []error
	if c.Port < 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Port))
	}
	if c.ReadTimeout < 0 || c.WriteTimeout < 0 || c.IdleTimeout < 0 {
		errs = append(errs, errors.New("server timeouts must not be negative"))
	}
	if _, err := humanize.ParseBytes(c.MaxBodySize); c.MaxBodySize != "" && err != nil {
		errs = append(errs, fmt.Errorf("server.max_body_size %q: %w", c.MaxBodySize, err))
	}
	return errors.Join(errs...)
}
