package local

import (
	"context"
	"errors"
	"sync"

	"github.com/kbukum/voicememo/transcription"
)

const (
	msgTaskNotFound  = "Task not found"
	msgTaskCancelled = "Task cancelled"
)

// RunFunc performs one local transcription. partial publishes a best-effort
// snapshot while the task is still running.
type RunFunc func(ctx context.Context, partial func(map[string]any)) (map[string]any, error)

type taskEntry struct {
	status transcription.NormalizedStatus
	data   map[string]any
	err    string
	cancel context.CancelFunc
	done   chan struct{}
}

// TaskManager tracks in-process transcription tasks by id.
type TaskManager struct {
	mu    sync.RWMutex
	tasks map[string]*taskEntry
	wg    sync.WaitGroup
}

// NewTaskManager creates an empty manager.
func NewTaskManager() *TaskManager {
	return &TaskManager{tasks: make(map[string]*taskEntry)}
}

// Start runs fn in the background under id.
func (m *TaskManager) Start(parent context.Context, id string, fn RunFunc) {
	ctx, cancel := context.WithCancel(parent)
	e := &taskEntry{status: transcription.StatusRunning, cancel: cancel, done: make(chan struct{})}

	m.mu.Lock()
	m.tasks[id] = e
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		defer close(e.done)
		defer cancel()

		result, err := fn(ctx, func(snapshot map[string]any) {
			m.mu.Lock()
			defer m.mu.Unlock()
			if e.status == transcription.StatusRunning {
				e.data = snapshot
			}
		})

		m.mu.Lock()
		defer m.mu.Unlock()
		if e.status != transcription.StatusRunning {
			return
		}
		switch {
		case errors.Is(err, context.Canceled) || (err != nil && ctx.Err() != nil):
			e.status, e.err, e.data = transcription.StatusFailed, msgTaskCancelled, nil
		case err != nil:
			e.status, e.err, e.data = transcription.StatusFailed, err.Error(), nil
		default:
			e.status, e.data = transcription.StatusSuccess, result
		}
	}()
}

// Status reports the normalized status of id. Unknown ids are FAILED with
// "Task not found".
func (m *TaskManager) Status(id string) transcription.TaskInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.tasks[id]
	if !ok {
		return transcription.TaskInfo{Status: transcription.StatusFailed, Data: map[string]any{"error": msgTaskNotFound}}
	}
	switch e.status {
	case transcription.StatusFailed:
		return transcription.TaskInfo{Status: e.status, Data: map[string]any{"error": e.err}}
	default:
		return transcription.TaskInfo{Status: e.status, Data: e.data}
	}
}

// Cancel stops a running task. It reports whether one was running.
func (m *TaskManager) Cancel(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.tasks[id]
	if !ok || e.status != transcription.StatusRunning {
		return false
	}
	e.cancel()
	e.status, e.err, e.data = transcription.StatusFailed, msgTaskCancelled, nil
	return true
}

// Wait blocks until id finishes or ctx is done.
func (m *TaskManager) Wait(ctx context.Context, id string) error {
	m.mu.RLock()
	e, ok := m.tasks[id]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close cancels every running task and waits for them to exit.
func (m *TaskManager) Close() {
	m.mu.Lock()
	for _, e := range m.tasks {
		if e.status == transcription.StatusRunning {
			e.cancel()
			e.status, e.err, e.data = transcription.StatusFailed, msgTaskCancelled, nil
		}
	}
	m.mu.Unlock()
	m.wg.Wait()
}
