package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/task"
)

// EventType names what happened to a task.
type EventType string

const (
	EventStatusChanged EventType = "status_changed"
	EventStepCompleted EventType = "step_completed"
	EventTaskFailed    EventType = "task_failed"
	EventTaskCompleted EventType = "task_completed"
	EventPollRetry     EventType = "poll_retry"
)

// Event is published on the bus after every observable transition.
type Event struct {
	Type   EventType   `json:"type"`
	TaskID string      `json:"task_id"`
	Status task.Status `json:"status"`
	// Step is the node step the event refers to, if any.
	Step    task.Status `json:"step,omitempty"`
	Error   string      `json:"error,omitempty"`
	Attempt int         `json:"attempt,omitempty"`
	At      time.Time   `json:"at"`
}

// Sink receives published events. Publish is called synchronously from the
// pipeline and must not block for long.
type Sink interface {
	Publish(ctx context.Context, e Event) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e Event) error

// Publish calls f.
func (f SinkFunc) Publish(ctx context.Context, e Event) error { return f(ctx, e) }

// Bus fans events out to its sinks. Sink errors are logged and never reach
// the pipeline.
type Bus struct {
	mu    sync.RWMutex
	sinks map[string]Sink
	names []string
	log   *logger.Logger
	now   func() time.Time
}

// NewBus creates an empty bus.
func NewBus(log *logger.Logger) *Bus {
	if log == nil {
		log = logger.Nop()
	}
	return &Bus{sinks: make(map[string]Sink), log: log, now: time.Now}
}

// AddSink registers s under name, replacing any sink with the same name.
func (b *Bus) AddSink(name string, s Sink) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.sinks[name]; !ok {
		b.names = append(b.names, name)
	}
	b.sinks[name] = s
}

// Sinks returns the registered sink names in registration order.
func (b *Bus) Sinks() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]string(nil), b.names...)
}

// Publish stamps e and delivers it to every sink.
func (b *Bus) Publish(ctx context.Context, e Event) {
	if b == nil {
		return
	}
	if e.At.IsZero() {
		e.At = b.now().UTC()
	}

	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, name := range b.names {
		if err := b.sinks[name].Publish(ctx, e); err != nil {
			b.log.Warn("event sink failed", map[string]interface{}{
				"sink":             name,
				"event":            string(e.Type),
				logger.FieldTaskID: e.TaskID,
				logger.FieldError:  err.Error(),
			})
		}
	}
}
