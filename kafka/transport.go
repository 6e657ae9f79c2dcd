package kafka

import (
	"fmt"

	"github.com/segmentio/kafka-go"
	"github.com/segmentio/kafka-go/sasl"
	"github.com/segmentio/kafka-go/sasl/plain"
	"github.com/segmentio/kafka-go/sasl/scram"
)

const clientID = "voicememo"

var compressionCodecs = map[string]kafka.Compression{
	"none":   0,
	"gzip":   kafka.Gzip,
	"snappy": kafka.Snappy,
	"lz4":    kafka.Lz4,
	"zstd":   kafka.Zstd,
}

var scramAlgorithms = map[string]scram.Algorithm{
	"SCRAM-SHA-256": scram.SHA256,
	"SCRAM-SHA-512": scram.SHA512,
}

func newTransport(cfg *Config) (*kafka.Transport, error) {
	tlsCfg, err := cfg.TLS.Build()
	if err != nil {
		return nil, fmt.Errorf("kafka tls: %w", err)
	}
	t := &kafka.Transport{ClientID: clientID, IdleTimeout: cfg.IdleTimeout, TLS: tlsCfg}
	if cfg.EnableSASL {
		if t.SASL, err = saslMechanism(cfg); err != nil {
			return nil, fmt.Errorf("kafka sasl: %w", err)
		}
	}
	return t, nil
}

func saslMechanism(cfg *Config) (sasl.Mechanism, error) {
	if cfg.SASLMechanism == "PLAIN" {
		return plain.Mechanism{Username: cfg.Username, Password: cfg.Password}, nil
	}
	algo, ok := scramAlgorithms[cfg.SASLMechanism]
	if !ok {
		return nil, fmt.Errorf("unsupported mechanism %q", cfg.SASLMechanism)
	}
	return scram.Mechanism(algo, cfg.Username, cfg.Password)
}
