package pipeline

import (
	"context"
	"time"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/media"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/storage"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/transcription"
)

// Node is one step of the workflow. It reads its inputs from the board,
// performs its side effect, and writes its outputs back to the board.
// A node keeps no state between runs.
type Node interface {
	// Name identifies the node in logs and spans, e.g. "transcode[0]".
	Name() string
	// Step is the status the task holds while the node runs.
	Step() task.Status
	Run(ctx context.Context, b *Board, s *Services) error
}

// Services are the collaborators nodes perform I/O through.
type Services struct {
	Storage       storage.Storage
	Transcoder    media.Transcoder
	Transcription transcription.Service
}

// WithTracing wraps a Node with span creation.
// Each execution creates a span named "{prefix}.{nodeName}".
func WithTracing(node Node, prefix string) Node {
	return &tracingNode{inner: node, prefix: prefix}
}

type tracingNode struct {
	inner  Node
	prefix string
}

func (n *tracingNode) Name() string      { return n.inner.Name() }
func (n *tracingNode) Step() task.Status { return n.inner.Step() }

func (n *tracingNode) Run(ctx context.Context, b *Board, s *Services) error {
	ctx, span := observability.StartSpan(ctx, n.prefix+"."+n.inner.Name())
	defer span.End()

	observability.SetSpanAttribute(ctx, observability.AttrPipelineStep, string(n.inner.Step()))
	observability.SetSpanAttribute(ctx, observability.AttrRecordingID, b.RecordingID)

	err := n.inner.Run(ctx, b, s)
	switch {
	case err == nil:
	case IsTaskRunning(err):
		observability.SetSpanAttribute(ctx, observability.AttrPipelineOutcome, "running")
	default:
		observability.SetSpanError(ctx, err)
	}
	return err
}

// WithNodeMetrics wraps a Node with metric recording.
// Records operation count, duration, and errors. A still-running poll is
// counted with status "running", not as an error.
func WithNodeMetrics(node Node, metrics *observability.Metrics) Node {
	return &metricsNode{inner: node, metrics: metrics}
}

type metricsNode struct {
	inner   Node
	metrics *observability.Metrics
}

func (n *metricsNode) Name() string      { return n.inner.Name() }
func (n *metricsNode) Step() task.Status { return n.inner.Step() }

func (n *metricsNode) Run(ctx context.Context, b *Board, s *Services) error {
	start := time.Now()
	err := n.inner.Run(ctx, b, s)
	duration := time.Since(start)

	status := "ok"
	switch {
	case err == nil:
	case IsTaskRunning(err):
		status = "running"
	default:
		status = "error"
		n.metrics.RecordError(ctx, "node", string(n.inner.Step()))
	}
	n.metrics.RecordOperation(ctx, "pipeline", string(n.inner.Step()), status, duration)

	return err
}

// WithLogging wraps a Node with execution logging.
func WithLogging(node Node, log *logger.Logger) Node {
	return &loggingNode{inner: node, log: log}
}

type loggingNode struct {
	inner Node
	log   *logger.Logger
}

func (n *loggingNode) Name() string      { return n.inner.Name() }
func (n *loggingNode) Step() task.Status { return n.inner.Step() }

func (n *loggingNode) Run(ctx context.Context, b *Board, s *Services) error {
	start := time.Now()
	err := n.inner.Run(ctx, b, s)

	fields := map[string]interface{}{
		"node":                  n.inner.Name(),
		logger.FieldStep:        string(n.inner.Step()),
		logger.FieldRecordingID: b.RecordingID,
		logger.FieldDuration:    time.Since(start).Milliseconds(),
	}

	switch {
	case err == nil:
		n.log.Debug("pipeline node completed", fields)
	case IsTaskRunning(err):
		n.log.Debug("pipeline node still running", fields)
	default:
		fields[logger.FieldError] = err.Error()
		n.log.Error("pipeline node failed", fields)
	}
	return err
}
