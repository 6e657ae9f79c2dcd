package kafka

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/logger"
)

var (
	_ component.Component   = (*Component)(nil)
	_ component.Describable = (*Component)(nil)
)

// Component starts the event producer with the rest of the service and
// flushes it on shutdown.
type Component struct {
	cfg      Config
	log      *logger.Logger
	producer atomic.Pointer[Producer]
}

func NewComponent(cfg Config, log *logger.Logger) *Component {
	if log == nil {
		log = logger.Nop()
	}
	cfg.ApplyDefaults()
	return &Component{cfg: cfg, log: log.WithComponent("kafka")}
}

// Producer is nil until Start succeeds and again after Stop.
func (c *Component) Producer() *Producer { return c.producer.Load() }

func (c *Component) Name() string { return "kafka" }

func (c *Component) Start(context.Context) error {
	if c.producer.Load() != nil {
		return nil
	}
	p, err := NewProducer(c.cfg, c.log)
	if err != nil {
		return err
	}
	if !c.producer.CompareAndSwap(nil, p) {
		return p.Close()
	}
	return nil
}

func (c *Component) Stop(context.Context) error {
	if p := c.producer.Swap(nil); p != nil {
		return p.Close()
	}
	return nil
}

// Health turns degraded after the first failed write.
func (c *Component) Health(context.Context) component.Health {
	p := c.producer.Load()
	if p == nil {
		return component.Health{Name: "kafka", Status: component.StatusUnhealthy, Message: "producer not started"}
	}
	m := p.Metrics()
	status := component.StatusHealthy
	if m.Errors > 0 {
		status = component.StatusDegraded
	}
	return component.Health{
		Name:    "kafka",
		Status:  status,
		Message: fmt.Sprintf("%d messages, %d errors", m.Messages, m.Errors),
	}
}

func (c *Component) Describe() component.Description {
	return component.Description{
		Name:    "Kafka",
		Type:    "events",
		Details: strings.Join(c.cfg.Brokers, ",") + " topic=" + c.cfg.Topic,
	}
}
