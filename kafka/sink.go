package kafka

import (
	"context"
	"encoding/json"

	kafkago "github.com/segmentio/kafka-go"

	"github.com/kbukum/voicememo/pipeline"
)

// EventSink writes pipeline events to Config.Topic. Messages are keyed by
// task id so the events of one task stay in order on one partition.
type EventSink struct {
	producer *Producer
}

// NewEventSink creates a sink writing through p.
func NewEventSink(p *Producer) *EventSink { return &EventSink{producer: p} }

func (s *EventSink) Publish(ctx context.Context, e pipeline.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	msg := kafkago.Message{
		Key:   []byte(e.TaskID),
		Value: data,
		Time:  e.At,
		Headers: []kafkago.Header{
			{Key: "event-type", Value: []byte(e.Type)},
			{Key: "task-status", Value: []byte(e.Status)},
			{Key: "content-type", Value: []byte("application/json")},
		},
	}
	if err := s.producer.WriteMessages(ctx, msg); err != nil {
		return FromKafka(err, s.producer.cfg.Topic)
	}
	return nil
}

var _ pipeline.Sink = (*EventSink)(nil)
