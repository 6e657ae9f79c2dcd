// Package config loads layered configuration: built-in defaults, a YAML
// file, a .env file and VOICEMEMO_* environment variables, in that order
// of increasing precedence.
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment override (VOICEMEMO_PIPELINE_MAX_POLLING_RETRIES).
const EnvPrefix = "VOICEMEMO"

type loaderOptions struct {
	configFile string
	envFile    string
	defaults   map[string]any
}

// Option configures Load.
type Option func(*loaderOptions)

// WithConfigFile sets an explicit YAML config file path.
func WithConfigFile(path string) Option {
	return func(o *loaderOptions) { o.configFile = path }
}

// WithEnvFile sets an explicit .env file path.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) { o.envFile = path }
}

// WithDefaults registers default values by dotted key. Every key that
// should be overridable from the environment needs a default here, since
// viper only binds environment variables for keys it already knows.
func WithDefaults(defaults map[string]any) Option {
	return func(o *loaderOptions) {
		if o.defaults == nil {
			o.defaults = make(map[string]any)
		}
		for k, v := range defaults {
			o.defaults[k] = v
		}
	}
}

// Load fills cfg from defaults, the config file, the .env file and the
// environment. Missing files are skipped; unreadable ones are errors.
func Load(cfg any, opts ...Option) error {
	o := loaderOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.configFile == "" {
		o.configFile = findFirst("./config.yml", "./config/config.yml", "./cmd/voicememo/config.yml")
	}
	if o.envFile == "" {
		o.envFile = findFirst("./.env", "./cmd/voicememo/.env")
	}

	if o.envFile != "" {
		if err := godotenv.Load(o.envFile); err != nil {
			return fmt.Errorf("load env file %s: %w", o.envFile, err)
		}
	}

	v := viper.New()
	for k, val := range o.defaults {
		v.SetDefault(k, val)
	}

	if o.configFile != "" {
		v.SetConfigFile(o.configFile)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("read config file %s: %w", o.configFile, err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unmarshal config: %w", err)
	}
	return nil
}

func findFirst(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
