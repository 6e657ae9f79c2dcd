package redis

import (
	"context"
	"fmt"

	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/logger"
)

// Component opens the Client on Start and closes it on Stop.
type Component struct {
	cfg    Config
	log    *logger.Logger
	client *Client
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("redis")}
}

// Client is nil until Start succeeds.
func (c *Component) Client() *Client { return c.client }

func (c *Component) Name() string { return "redis" }

func (c *Component) Start(ctx context.Context) error {
	client, err := New(c.cfg, c.log)
	if err != nil {
		return err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return err
	}
	c.client = client
	return nil
}

func (c *Component) Stop(context.Context) error {
	return c.client.Close()
}

func (c *Component) Health(ctx context.Context) component.Health {
	h := component.Health{Name: c.Name(), Status: component.StatusHealthy}
	switch {
	case c.client == nil:
		h.Status, h.Message = component.StatusUnhealthy, "not started"
	default:
		if err := c.client.Ping(ctx); err != nil {
			h.Status, h.Message = component.StatusUnhealthy, err.Error()
		}
	}
	return h
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Redis",
		Type:    "events",
		Details: fmt.Sprintf("%s db=%d channel=%s", c.cfg.Addr, c.cfg.DB, c.cfg.EventChannel()),
	}
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)
