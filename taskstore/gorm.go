package taskstore

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/kbukum/voicememo/database"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/task"
)

// GormStore is the sqlite-backed Store.
type GormStore struct {
	db  *database.DB
	log *logger.Logger
	// upsert rewrites every column but id, created_at and title.
	upsert clause.OnConflict
}

// NewGormStore migrates the tasks table and returns a store over db.
func NewGormStore(db *database.DB, log *logger.Logger) (*GormStore, error) {
	if err := db.AutoMigrate(&record{}); err != nil {
		return nil, err
	}
	stmt := &gorm.Statement{DB: db.WithContext(context.Background())}
	if err := stmt.Parse(&record{}); err != nil {
		return nil, err
	}
	var cols []string
	for _, name := range stmt.Schema.DBNames {
		switch name {
		case "id", "created_at", "title":
		default:
			cols = append(cols, name)
		}
	}
	return &GormStore{
		db:  db,
		log: log.WithComponent("taskstore"),
		upsert: clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns(cols),
		},
	}, nil
}

// List returns all tasks, newest first.
func (s *GormStore) List(ctx context.Context) ([]*task.Task, error) {
	var rows []record
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, database.FromDatabase(err, "task", "")
	}
	out := make([]*task.Task, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toTask())
	}
	return out, nil
}

// Get returns a task by id.
func (s *GormStore) Get(ctx context.Context, id string) (*task.Task, error) {
	var row record
	if err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, database.FromDatabase(err, "task", id)
	}
	return row.toTask(), nil
}

// Save inserts t, or overwrites an existing row except for its title,
// which only UpdateTitle changes.
func (s *GormStore) Save(ctx context.Context, t *task.Task) error {
	err := s.db.WithContext(ctx).
		Clauses(s.upsert).
		Create(toRecord(t)).Error
	if err != nil {
		s.log.Error("save task failed", logger.Fields(logger.FieldTaskID, t.ID, logger.FieldError, err.Error()))
		return database.FromDatabase(err, "task", t.ID)
	}
	return nil
}

// Delete removes a task.
func (s *GormStore) Delete(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Delete(&record{}, "id = ?", id).Error; err != nil {
		return database.FromDatabase(err, "task", id)
	}
	return nil
}

// UpdateTitle changes the title column only.
func (s *GormStore) UpdateTitle(ctx context.Context, id, title string) error {
	res := s.db.WithContext(ctx).Model(&record{}).Where("id = ?", id).Update("title", title)
	if res.Error != nil {
		return database.FromDatabase(res.Error, "task", id)
	}
	if res.RowsAffected == 0 {
		return database.FromDatabase(gorm.ErrRecordNotFound, "task", id)
	}
	return nil
}

var _ Store = (*GormStore)(nil)
