package database

import (
	"context"

	"github.com/kbukum/voicememo/component"
)

// Component reports the health of an opened DB and closes it on Stop. The
// database is opened eagerly so the task store exists before any other
// component starts.
type Component struct {
	db *DB
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent wraps db for the component registry.
func NewComponent(db *DB) *Component { return &Component{db: db} }

func (c *Component) Name() string { return "database" }

// Start verifies the connection.
func (c *Component) Start(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Component) Stop(context.Context) error {
	return c.db.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	if err := c.db.PingContext(ctx); err != nil {
		return component.Health{Name: c.Name(), Status: component.StatusUnhealthy, Message: err.Error()}
	}
	return component.Health{Name: c.Name(), Status: component.StatusHealthy}
}

func (c *Component) Describe() component.Description {
	return component.Description{Name: "SQLite", Type: "database", Details: c.db.cfg.DSN}
}
