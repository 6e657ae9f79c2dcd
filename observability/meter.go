package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds the service's instruments, all prefixed "voicememo.".
type Metrics struct {
	httpRequests  metric.Int64Counter
	httpDuration  metric.Float64Histogram
	httpInFlight  metric.Int64UpDownCounter
	steps         metric.Int64Counter
	stepDuration  metric.Float64Histogram
	stepFailures  metric.Int64Counter
	polls         metric.Int64Counter
	eventsEmitted metric.Int64Counter
}

// NewMetrics registers the instruments on meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	var m Metrics
	var errs []error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		errs = append(errs, err)
		return c
	}
	seconds := func(name, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithDescription(desc), metric.WithUnit("s"))
		errs = append(errs, err)
		return h
	}

	m.httpRequests = counter("voicememo.http.requests", "API requests by route and status")
	m.httpDuration = seconds("voicememo.http.duration", "API request latency")
	inFlight, err := meter.Int64UpDownCounter("voicememo.http.in_flight", metric.WithDescription("API requests being served"))
	errs = append(errs, err)
	m.httpInFlight = inFlight

	m.steps = counter("voicememo.pipeline.steps", "Pipeline steps run by step and outcome")
	m.stepDuration = seconds("voicememo.pipeline.step.duration", "Pipeline step latency")
	m.stepFailures = counter("voicememo.pipeline.failures", "Pipeline failures by kind and step")
	m.polls = counter("voicememo.pipeline.polls", "Remote task polls by provider and outcome")
	m.eventsEmitted = counter("voicememo.pipeline.events", "Pipeline events published by type")

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordRequestStart counts a request as in flight until RecordRequestEnd.
func (m *Metrics) RecordRequestStart(ctx context.Context) {
	m.httpInFlight.Add(ctx, 1)
}

func (m *Metrics) RecordRequestEnd(ctx context.Context, service, route, status string, d time.Duration) {
	m.httpInFlight.Add(ctx, -1)
	base := attribute.NewSet(attribute.String("service", service), attribute.String("route", route))
	m.httpRequests.Add(ctx, 1, metric.WithAttributeSet(base), metric.WithAttributes(attribute.String("status", status)))
	m.httpDuration.Record(ctx, d.Seconds(), metric.WithAttributeSet(base))
}

// RecordOperation records one pipeline step run. status is "ok", "running"
// or "error".
func (m *Metrics) RecordOperation(ctx context.Context, service, step, status string, d time.Duration) {
	base := attribute.NewSet(attribute.String("service", service), attribute.String("step", step))
	m.steps.Add(ctx, 1, metric.WithAttributeSet(base), metric.WithAttributes(attribute.String("status", status)))
	m.stepDuration.Record(ctx, d.Seconds(), metric.WithAttributeSet(base))
}

func (m *Metrics) RecordError(ctx context.Context, kind, step string) {
	m.stepFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("kind", kind), attribute.String("step", step)))
}

func (m *Metrics) RecordPoll(ctx context.Context, provider, outcome string) {
	m.polls.Add(ctx, 1, metric.WithAttributes(attribute.String("provider", provider), attribute.String("outcome", outcome)))
}

func (m *Metrics) RecordEvent(ctx context.Context, eventType string) {
	m.eventsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("type", eventType)))
}
