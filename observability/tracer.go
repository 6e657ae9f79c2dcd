package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentation = "github.com/kbukum/voicememo"

// Span names. HTTP spans are SpanHTTP followed by the method and route.
const (
	SpanHTTP        = "http "
	SpanPipelineRun = "pipeline.run"
	SpanPipeline    = "pipeline"
)

// Attribute keys.
const (
	AttrServiceName     = "service.name"
	AttrOperationName   = "operation.name"
	AttrRequestID       = "request.id"
	AttrTaskID          = "task.id"
	AttrRecordingID     = "recording.id"
	AttrPipelineStep    = "pipeline.step"
	AttrPipelineOutcome = "pipeline.outcome"
	AttrProvider        = "transcription.provider"
	AttrDurationMs      = "duration_ms"
	AttrStatus          = "status"
	AttrErrorMessage    = "error.message"
)

func Tracer(name string) trace.Tracer { return otel.Tracer(name) }

func Meter(name string) metric.Meter { return otel.Meter(name) }

// StartSpan starts a span on the service tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return Tracer(instrumentation).Start(ctx, name, opts...)
}

// SetSpanAttribute tags the span in ctx, if it is recording. Values of an
// unsupported type are stringified.
func SetSpanAttribute(ctx context.Context, key string, value any) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	var kv attribute.KeyValue
	switch v := value.(type) {
	case string:
		kv = attribute.String(key, v)
	case bool:
		kv = attribute.Bool(key, v)
	case int:
		kv = attribute.Int(key, v)
	case int64:
		kv = attribute.Int64(key, v)
	case float64:
		kv = attribute.Float64(key, v)
	case []string:
		kv = attribute.StringSlice(key, v)
	case fmt.Stringer:
		kv = attribute.String(key, v.String())
	default:
		kv = attribute.String(key, fmt.Sprint(v))
	}
	span.SetAttributes(kv)
}

// SetSpanError marks the span in ctx as failed with err.
func SetSpanError(ctx context.Context, err error) {
	span := trace.SpanFromContext(ctx)
	if !span.IsRecording() {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
