// Package taskstore persists tasks. Saves are upserts keyed by task id.
package taskstore

import (
	"context"

	"github.com/kbukum/voicememo/task"
)

// Store is the persistence contract the pipeline and API depend on.
type Store interface {
	// List returns all tasks, newest first.
	List(ctx context.Context) ([]*task.Task, error)
	// Get returns the task with id or a NOT_FOUND AppError.
	Get(ctx context.Context, id string) (*task.Task, error)
	// Save inserts t or replaces the stored task, keeping its title so a
	// rename made during a run survives the run's next save.
	Save(ctx context.Context, t *task.Task) error
	// Delete removes the task with id. Missing ids are not an error.
	Delete(ctx context.Context, id string) error
	// UpdateTitle changes only the title of the task with id.
	UpdateTitle(ctx context.Context, id, title string) error
}
