package kafka

import (
	"fmt"
	"time"

	"github.com/kbukum/voicememo/security"
)

// Config holds the producer settings of the Kafka event sink.
type Config struct {
	// Enabled controls whether the Kafka sink is wired.
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`

	Brokers []string `mapstructure:"brokers" yaml:"brokers"`
	// Topic receives every pipeline event, keyed by task id.
	Topic string `mapstructure:"topic" yaml:"topic"`

	TLS security.TLSConfig `mapstructure:"tls" yaml:"tls"`

	// SASL
	EnableSASL    bool   `mapstructure:"enable_sasl" yaml:"enable_sasl"`
	SASLMechanism string `mapstructure:"sasl_mechanism" yaml:"sasl_mechanism"` // PLAIN, SCRAM-SHA-256, SCRAM-SHA-512
	Username      string `mapstructure:"username" yaml:"username"`
	Password      string `mapstructure:"password" yaml:"password"`

	Compression  string        `mapstructure:"compression" yaml:"compression"` // none, gzip, snappy, lz4, zstd
	Retries      int           `mapstructure:"retries" yaml:"retries"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout" yaml:"batch_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	RequiredAcks int           `mapstructure:"required_acks" yaml:"required_acks"`
	IdleTimeout  time.Duration `mapstructure:"idle_timeout" yaml:"idle_timeout"`
}

// ApplyDefaults sets defaults for zero-valued fields.
func (c *Config) ApplyDefaults() {
	if len(c.Brokers) == 0 {
		c.Brokers = []string{"localhost:9092"}
	}
	if c.Topic == "" {
		c.Topic = "voicememo.task-events"
	}
	if c.Compression == "" {
		c.Compression = "snappy"
	}
	if c.Retries <= 0 {
		c.Retries = 3
	}
	// Events are few; do not hold them back for a batch.
	if c.BatchTimeout <= 0 {
		c.BatchTimeout = 10 * time.Millisecond
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.RequiredAcks == 0 {
		c.RequiredAcks = -1 // all replicas
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 30 * time.Second
	}
	if c.SASLMechanism == "" && c.EnableSASL {
		c.SASLMechanism = "PLAIN"
	}
}

// Validate checks that required fields are present.
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}
	if len(c.Brokers) == 0 {
		return fmt.Errorf("kafka brokers are required")
	}
	if c.Topic == "" {
		return fmt.Errorf("kafka topic is required")
	}
	if _, ok := compressionCodecs[c.Compression]; !ok && c.Compression != "" {
		return fmt.Errorf("unsupported compression: %s", c.Compression)
	}
	if c.EnableSASL {
		if _, isScram := scramAlgorithms[c.SASLMechanism]; !isScram && c.SASLMechanism != "PLAIN" {
			return fmt.Errorf("unsupported SASL mechanism: %s", c.SASLMechanism)
		}
		if c.Username == "" {
			return fmt.Errorf("SASL username is required")
		}
	}
	if c.Retries <= 0 {
		return fmt.Errorf("retries must be > 0")
	}
	return c.TLS.Validate()
}
