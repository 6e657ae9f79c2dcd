// Package redis wraps go-redis for the pipeline's event fan-out.
//
// EventSink is a pipeline.Sink: every event is published on the
// "{prefix}:events" channel and stored as the task's last event, so a
// dashboard that connects late can read the current state of a task
// without replaying the stream.
//
//	comp := redis.NewComponent(cfg, log)
//	_ = registry.Register(comp)
//	// after Start
//	orchestrator.Bus().AddSink("redis", redis.NewEventSink(comp.Client()))
package redis
