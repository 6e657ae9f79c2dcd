package sse

import (
	"context"
	"fmt"
	"sync"

	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/logger"
)

// Component runs a Hub under the component registry.
type Component struct {
	hub  *Hub
	path string
	wg   sync.WaitGroup
}

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// NewComponent creates a component serving streams at path.
func NewComponent(path string, log *logger.Logger) *Component {
	return &Component{hub: NewHub(log), path: path}
}

// Hub returns the underlying hub.
func (c *Component) Hub() *Hub { return c.hub }

func (c *Component) Name() string { return "sse" }

func (c *Component) Start(context.Context) error {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.hub.Run()
	}()
	return nil
}

func (c *Component) Stop(context.Context) error {
	c.hub.Stop()
	c.wg.Wait()
	return nil
}

func (c *Component) Health(context.Context) component.Health {
	return component.Health{
		Name:    c.Name(),
		Status:  component.StatusHealthy,
		Message: fmt.Sprintf("%d clients connected", c.hub.ClientCount()),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Event stream",
		Type:    "sse",
		Details: fmt.Sprintf("Path: %s", c.path),
	}
}
