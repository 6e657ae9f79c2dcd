package sse

import (
	"context"
	"encoding/json"

	"github.com/kbukum/voicememo/pipeline"
)

// Sink forwards pipeline events to stream clients. Subscribers of a single
// task match "task:{id}:*"; subscribers of every task match "tasks:*".
type Sink struct {
	b Broadcaster
}

// NewSink creates a pipeline sink broadcasting on b.
func NewSink(b Broadcaster) *Sink { return &Sink{b: b} }

func (s *Sink) Publish(_ context.Context, e pipeline.Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	f := Frame{Event: string(e.Type), Data: data}
	s.b.Broadcast(TaskClientID(e.TaskID, "*"), f)
	s.b.Broadcast(TaskClientID("", "*"), f)
	return nil
}

// TaskClientID builds the client id for a connection watching taskID, or
// every task when taskID is empty.
func TaskClientID(taskID, conn string) string {
	if taskID == "" {
		return "tasks:" + conn
	}
	return "task:" + taskID + ":" + conn
}

var _ pipeline.Sink = (*Sink)(nil)
