package bootstrap

import (
	"time"

	"github.com/kbukum/voicememo/logger"
)

// Option adjusts how NewApp builds the App.
type Option func(*settings)

type settings struct {
	log      *logger.Logger
	shutdown time.Duration
}

// WithLogger replaces the logger that would be built from the config's
// logging section.
func WithLogger(l *logger.Logger) Option {
	return func(s *settings) { s.log = l }
}

// WithGracefulTimeout overrides ServiceConfig.ShutdownTimeout.
func WithGracefulTimeout(d time.Duration) Option {
	return func(s *settings) { s.shutdown = d }
}

// shutdownTimeout picks the option, then the config, then the default.
func (s *settings) shutdownTimeout(configured time.Duration) time.Duration {
	switch {
	case s.shutdown > 0:
		return s.shutdown
	case configured > 0:
		return configured
	}
	return DefaultGracefulTimeout
}
