package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Operation is one traced and metered unit of work, usually an API request.
type Operation struct {
	Service   string
	Name      string
	RequestID string
	// TaskID is empty for requests that do not address a single task.
	TaskID string

	start   time.Time
	span    trace.Span
	metrics *Metrics
}

type operationKey struct{}

// StartOperation opens a span named spanName and counts the request as in
// flight. The returned context carries both the span and the Operation.
// A nil metrics skips recording.
func StartOperation(ctx context.Context, spanName string, op Operation, metrics *Metrics) (context.Context, *Operation) {
	o := &op
	o.start = time.Now()
	o.metrics = metrics

	attrs := []attribute.KeyValue{
		attribute.String(AttrServiceName, o.Service),
		attribute.String(AttrOperationName, o.Name),
		attribute.String(AttrRequestID, o.RequestID),
	}
	if o.TaskID != "" {
		attrs = append(attrs, attribute.String(AttrTaskID, o.TaskID))
	}
	ctx, o.span = StartSpan(ctx, spanName, trace.WithAttributes(attrs...))
	if metrics != nil {
		metrics.RecordRequestStart(ctx)
	}
	return context.WithValue(ctx, operationKey{}, o), o
}

// OperationFrom returns the operation stored by StartOperation, or nil.
func OperationFrom(ctx context.Context) *Operation {
	o, _ := ctx.Value(operationKey{}).(*Operation)
	return o
}

// End closes the span with the final status and records the request
// duration.
func (o *Operation) End(ctx context.Context, status string, err error) {
	elapsed := time.Since(o.start)
	if err != nil {
		o.span.RecordError(err)
		o.span.SetAttributes(attribute.String(AttrErrorMessage, err.Error()))
	}
	o.span.SetAttributes(
		attribute.String(AttrStatus, status),
		attribute.Int64(AttrDurationMs, elapsed.Milliseconds()),
	)
	o.span.End()
	if o.metrics != nil {
		o.metrics.RecordRequestEnd(ctx, o.Service, o.Name, status, elapsed)
	}
}
