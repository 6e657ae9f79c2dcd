// Package kafka publishes pipeline events to a Kafka topic with
// segmentio/kafka-go.
//
// EventSink is a pipeline.Sink. Each event becomes one JSON message keyed
// by task id, with the event type and task status in headers:
//
//	kafka:
//	  enabled: true
//	  brokers: ["localhost:9092"]
//	  topic: voicememo.task-events
package kafka
