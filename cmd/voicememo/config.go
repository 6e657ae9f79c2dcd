package main

import (
	"errors"
	"fmt"

	"github.com/kbukum/voicememo/config"
	"github.com/kbukum/voicememo/database"
	"github.com/kbukum/voicememo/kafka"
	"github.com/kbukum/voicememo/media"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/pipeline"
	"github.com/kbukum/voicememo/redis"
	"github.com/kbukum/voicememo/server"
	"github.com/kbukum/voicememo/storage"
	"github.com/kbukum/voicememo/transcription/local"
	"github.com/kbukum/voicememo/transcription/tingwu"
	"github.com/kbukum/voicememo/transcription/volcengine"
	"github.com/kbukum/voicememo/validation"
	"github.com/kbukum/voicememo/version"
)

// AppConfig is the full configuration of the voicememo service.
type AppConfig struct {
	config.ServiceConfig `yaml:",inline" mapstructure:",squash"`

	Database database.Config      `yaml:"database" mapstructure:"database"`
	Storage  storage.Config       `yaml:"storage" mapstructure:"storage"`
	Media    media.Config         `yaml:"media" mapstructure:"media"`
	Provider ProviderConfig       `yaml:"provider" mapstructure:"provider"`
	Pipeline PipelineConfig       `yaml:"pipeline" mapstructure:"pipeline"`
	Events   EventsConfig         `yaml:"events" mapstructure:"events"`
	Server   server.Config        `yaml:"server" mapstructure:"server"`
	Tracing  observability.Config `yaml:"tracing" mapstructure:"tracing"`
}

// ProviderConfig selects the transcription backend. Each backend section
// is decoded by the backend's own factory.
type ProviderConfig struct {
	Name       string         `yaml:"name" mapstructure:"name" validate:"required,oneof=tingwu volcengine local"`
	Tingwu     map[string]any `yaml:"tingwu" mapstructure:"tingwu"`
	Volcengine map[string]any `yaml:"volcengine" mapstructure:"volcengine"`
	Local      map[string]any `yaml:"local" mapstructure:"local"`
}

// Settings returns the config section of the selected backend.
func (p ProviderConfig) Settings() map[string]any {
	var m map[string]any
	switch p.Name {
	case tingwu.ProviderName:
		m = p.Tingwu
	case volcengine.ProviderName:
		m = p.Volcengine
	case local.ProviderName:
		m = p.Local
	}
	if m == nil {
		m = map[string]any{}
	}
	return m
}

// PipelineConfig extends the orchestrator settings with startup behavior.
type PipelineConfig struct {
	pipeline.Config `yaml:",inline" mapstructure:",squash"`
	// ResumeOnStart resumes tasks left mid-pipeline by a previous process.
	ResumeOnStart bool `yaml:"resume_on_start" mapstructure:"resume_on_start"`
}

// EventsConfig holds the optional external event sinks. The event stream
// at /api/events is always on.
type EventsConfig struct {
	Redis redis.Config `yaml:"redis" mapstructure:"redis"`
	Kafka kafka.Config `yaml:"kafka" mapstructure:"kafka"`
}

// newAppConfig returns the config that loading decodes onto, with the
// defaults that have a meaningful zero already set.
func newAppConfig() *AppConfig {
	return &AppConfig{Pipeline: PipelineConfig{Config: pipeline.DefaultConfig(), ResumeOnStart: true}}
}

// ApplyDefaults fills in every section.
func (c *AppConfig) ApplyDefaults() {
	c.ServiceConfig.ApplyDefaults()
	c.Database.ApplyDefaults()
	c.Storage.ApplyDefaults()
	c.Media.ApplyDefaults()
	if c.Provider.Name == "" {
		c.Provider.Name = tingwu.ProviderName
	}
	c.Pipeline.ApplyDefaults()
	if c.Pipeline.Board.OSSPrefix == "" {
		c.Pipeline.Board.OSSPrefix = "voicememo"
	}
	c.Events.Redis.ApplyDefaults()
	c.Events.Kafka.ApplyDefaults()
	c.Server.ApplyDefaults()
	c.Tracing.ApplyDefaults()
}

// Validate checks tags first, then each section's own rules.
func (c *AppConfig) Validate() error {
	if err := validation.Validate(c); err != nil {
		return err
	}
	checks := []struct {
		section string
		fn      func() error
	}{
		{"service", c.ServiceConfig.Validate},
		{"database", c.Database.Validate},
		{"storage", c.Storage.Validate},
		{"events.redis", c.Events.Redis.Validate},
		{"events.kafka", c.Events.Kafka.Validate},
		{"server", c.Server.Validate},
	}
	var errs []error
	for _, chk := range checks {
		if err := chk.fn(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", chk.section, err))
		}
	}
	return errors.Join(errs...)
}

// defaults registers every key that may be overridden from the environment.
func defaults() map[string]any {
	return map[string]any{
		"name":             "voicememo",
		"environment":      "development",
		"version":          version.Version,
		"shutdown_timeout": "15s",

		"logging.level":  "info",
		"logging.format": "console",

		"database.dsn":          "./data/voicememo.db",
		"database.auto_migrate": true,

		"storage.provider":        storage.ProviderLocal,
		"storage.base_path":       "./data/objects",
		"storage.bucket":          "",
		"storage.region":          "cn-beijing",
		"storage.endpoint":        "",
		"storage.access_key":      "",
		"storage.secret_key":      "",
		"storage.public_base_url": "",

		"media.ffmpeg_path":  "ffmpeg",
		"media.ffprobe_path": "ffprobe",

		"provider.name": tingwu.ProviderName,

		"pipeline.oss_prefix":                 "voicememo",
		"pipeline.app_key":                    "",
		"pipeline.enable_summarization":       true,
		"pipeline.enable_meeting_assistance":  true,
		"pipeline.enable_speaker_diarization": true,
		"pipeline.speaker_count":              2,
		"pipeline.upload_original":            false,
		"pipeline.max_polling_retries":        pipeline.DefaultMaxPollingRetries,
		"pipeline.polling_interval":           "5s",
		"pipeline.tracing":                    false,
		"pipeline.resume_on_start":            true,

		"events.redis.enabled":     false,
		"events.redis.addr":        "localhost:6379",
		"events.redis.password":    "",
		"events.redis.tls.enabled": false,
		"events.kafka.enabled":     false,
		"events.kafka.brokers":     []string{"localhost:9092"},
		"events.kafka.topic":       "voicememo.task-events",
		"events.kafka.tls.enabled": false,

		"server.host": "127.0.0.1",
		"server.port": 8080,

		"tracing.enabled":  false,
		"tracing.endpoint": "localhost:4318",
	}
}
