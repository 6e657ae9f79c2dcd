package redis

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/kbukum/voicememo/pipeline"
	"github.com/kbukum/voicememo/task"
)

func TestEventSink_PublishAndKeepLast(t *testing.T) {
	client, mini := newTestClient(t)
	sink := NewEventSink(client)
	ctx := context.Background()

	sub := client.Unwrap().Subscribe(ctx, "voicememo:events")
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	events := []pipeline.Event{
		{Type: pipeline.EventStatusChanged, TaskID: "t-1", Status: task.StatusTranscoding},
		{Type: pipeline.EventStepCompleted, TaskID: "t-1", Status: task.StatusTranscoded},
	}
	for _, e := range events {
		if err := sink.Publish(ctx, e); err != nil {
			t.Fatalf("publish: %v", err)
		}
	}

	ch := sub.Channel()
	for i := range events {
		select {
		case msg := <-ch:
			var got pipeline.Event
			if err := json.Unmarshal([]byte(msg.Payload), &got); err != nil {
				t.Fatal(err)
			}
			if got.Type != events[i].Type {
				t.Errorf("message %d: expected %s, got %s", i, events[i].Type, got.Type)
			}
		case <-time.After(2 * time.Second):
			t.Fatalf("message %d not received", i)
		}
	}

	last, err := sink.LastEvent(ctx, "t-1")
	if err != nil || last == nil || last.Status != task.StatusTranscoded {
		t.Fatalf("unexpected last event %+v (%v)", last, err)
	}
	if ttl := mini.TTL("voicememo:task:t-1:last"); ttl != 7*24*time.Hour {
		t.Errorf("expected default status ttl, got %s", ttl)
	}

	if err := sink.Forget(ctx, "t-1"); err != nil {
		t.Fatal(err)
	}
	if last, _ := sink.LastEvent(ctx, "t-1"); last != nil {
		t.Error("expected last event removed")
	}
}

func TestEventSink_ErrorsWhenServerDown(t *testing.T) {
	client, mini := newTestClient(t)
	sink := NewEventSink(client)
	mini.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := sink.Publish(ctx, pipeline.Event{Type: pipeline.EventTaskFailed, TaskID: "t"}); err == nil {
		t.Error("expected an error with the server down")
	}
}

func TestEventSink_OnBus(t *testing.T) {
	client, _ := newTestClient(t)
	sink := NewEventSink(client)
	bus := pipeline.NewBus(nil)
	bus.AddSink("redis", sink)

	bus.Publish(context.Background(), pipeline.Event{Type: pipeline.EventTaskCompleted, TaskID: "t-9", Status: task.StatusCompleted})
	last, err := sink.LastEvent(context.Background(), "t-9")
	if err != nil || last == nil || last.At.IsZero() {
		t.Errorf("expected a stamped last event, got %+v (%v)", last, err)
	}
}
