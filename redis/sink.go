package redis

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kbukum/voicememo/pipeline"
)

// EventSink publishes pipeline events on Config.EventChannel and keeps the
// last event of each task under "{prefix}:task:{id}:last".
type EventSink struct {
	client  *Client
	channel string
	last    *TypedStore[pipeline.Event]
	cfg     Config
}

// NewEventSink creates a sink on client.
func NewEventSink(client *Client) *EventSink {
	cfg := client.cfg
	return &EventSink{
		client:  client,
		channel: cfg.EventChannel(),
		last:    NewTypedStore[pipeline.Event](client, cfg.KeyPrefix+":task"),
		cfg:     cfg,
	}
}

func (s *EventSink) Publish(ctx context.Context, e pipeline.Event) error {
	if err := s.last.Save(ctx, e.TaskID+":last", &e, s.cfg.StatusTTL); err != nil {
		return err
	}
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if _, err := s.client.Publish(ctx, s.channel, data); err != nil {
		return fmt.Errorf("redis publish %s: %w", s.channel, err)
	}
	return nil
}

// LastEvent returns the most recent event of taskID, or nil if none is
// kept.
func (s *EventSink) LastEvent(ctx context.Context, taskID string) (*pipeline.Event, error) {
	return s.last.Load(ctx, taskID+":last")
}

// Forget drops the kept event of taskID.
func (s *EventSink) Forget(ctx context.Context, taskID string) error {
	return s.last.Delete(ctx, taskID+":last")
}

var _ pipeline.Sink = (*EventSink)(nil)
