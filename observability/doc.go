// Package observability wires OpenTelemetry tracing and metrics for the
// pipeline and the HTTP API, plus the health report served on /healthz.
//
//	shutdown, err := observability.Setup(ctx, cfg.Tracing, "voicememo", version)
//	defer shutdown(ctx)
//
//	metrics, err := observability.NewMetrics(observability.Meter("voicememo"))
//	metrics.RecordOperation(ctx, "pipeline", "transcoding", "ok", d)
package observability
