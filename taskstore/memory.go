package taskstore

import (
	"context"
	"sort"
	"sync"

	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/task"
)

// MemoryStore keeps tasks in a map. It stores and returns clones so callers
// never share state with the store.
type MemoryStore struct {
	mu    sync.RWMutex
	tasks map[string]*task.Task
	saves int
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[string]*task.Task)}
}

func (m *MemoryStore) List(_ context.Context) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		out = append(out, t.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (m *MemoryStore) Get(_ context.Context, id string) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.tasks[id]
	if !ok {
		return nil, apperrors.NotFound("task", id)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) Save(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := t.Clone()
	if prev, ok := m.tasks[t.ID]; ok {
		c.Title = prev.Title
	}
	m.tasks[t.ID] = c
	m.saves++
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tasks, id)
	return nil
}

func (m *MemoryStore) UpdateTitle(_ context.Context, id, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tasks[id]
	if !ok {
		return apperrors.NotFound("task", id)
	}
	t.Title = title
	return nil
}

// Saves returns how many times Save was called.
func (m *MemoryStore) Saves() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.saves
}

var _ Store = (*MemoryStore)(nil)
