package kafka

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/resilience"
)

var errProducerClosed = errors.New("kafka producer is closed")

// messageWriter is the part of *kafkago.Writer the producer uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafkago.Message) error
	Stats() kafkago.WriterStats
	Close() error
}

// Producer writes to the configured topic and retries transient failures
// itself; the kafka-go writer makes a single attempt.
type Producer struct {
	writer messageWriter
	cfg    Config
	log    *logger.Logger
	closed atomic.Bool
}

// NewProducer creates a producer. The writer connects lazily on the first
// write.
func NewProducer(cfg Config, log *logger.Logger) (*Producer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("kafka producer config: %w", err)
	}
	if !cfg.Enabled {
		return nil, fmt.Errorf("kafka is disabled")
	}
	if log == nil {
		log = logger.Nop()
	}
	log = log.WithComponent("kafka.producer")

	transport, err := newTransport(&cfg)
	if err != nil {
		return nil, fmt.Errorf("kafka producer transport: %w", err)
	}
	w := &kafkago.Writer{
		Addr:         kafkago.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Transport:    transport,
		Balancer:     &kafkago.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafkago.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressionCodecs[cfg.Compression],
		// Retries are handled by WriteMessages.
		MaxAttempts: 1,
		ErrorLogger: kafkago.LoggerFunc(func(msg string, args ...interface{}) {
			log.Error("kafka writer: " + fmt.Sprintf(msg, args...))
		}),
	}

	log.Info("kafka producer ready", logger.Fields(
		"brokers", strings.Join(cfg.Brokers, ","),
		"topic", cfg.Topic,
		"compression", cfg.Compression,
	))
	return newProducer(w, cfg, log), nil
}

func newProducer(w messageWriter, cfg Config, log *logger.Logger) *Producer {
	return &Producer{writer: w, cfg: cfg, log: log}
}

// WriteMessages writes msgs, retrying up to Config.Retries attempts while
// the error looks transient.
func (p *Producer) WriteMessages(ctx context.Context, msgs ...kafkago.Message) error {
	if p.closed.Load() {
		return errProducerClosed
	}

	retry := resilience.RetryConfig{
		MaxAttempts:    p.cfg.Retries,
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     time.Second,
		BackoffFactor:  2,
		RetryIf:        IsRetryableError,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			p.log.Warn("kafka write failed, retrying", logger.Fields(
				logger.FieldAttempt, attempt,
				logger.FieldError, err.Error(),
				"wait_ms", wait.Milliseconds(),
			))
		},
	}
	return resilience.RetryFunc(ctx, retry, func(ctx context.Context, _ int) error {
		return p.writer.WriteMessages(ctx, msgs...)
	})
}

// Metrics returns writer statistics.
func (p *Producer) Metrics() WriterMetrics {
	return CollectWriterMetrics(p.writer.Stats())
}

// Close flushes pending messages and closes the writer.
func (p *Producer) Close() error {
	if !p.closed.CompareAndSwap(false, true) {
		return nil
	}
	p.log.Info("kafka producer closing")
	return p.writer.Close()
}
