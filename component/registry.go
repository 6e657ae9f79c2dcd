package component

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/kbukum/voicememo/logger"
)

// StopTimeout bounds each component's Stop during StopAll.
const StopTimeout = 10 * time.Second

// Registry owns the service's components. Since components start strictly
// in registration order, the started ones are always a prefix of the list.
type Registry struct {
	mu         sync.RWMutex
	components []Component
	started    int
	log        *logger.Logger
}

// NewRegistry creates an empty registry. A nil logger disables logging.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Nop()
	}
	return &Registry{log: log.WithComponent("registry")}
}

// Register appends c. Register dependencies before their dependents.
func (r *Registry) Register(c Component) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := c.Name()
	if slices.ContainsFunc(r.components, func(x Component) bool { return x.Name() == name }) {
		return fmt.Errorf("component %s already registered", name)
	}
	r.components = append(r.components, c)
	return nil
}

// StartAll starts every component not yet started. It stops at the first
// failure and leaves the earlier components running for StopAll.
func (r *Registry) StartAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.components[r.started:] {
		if err := c.Start(ctx); err != nil {
			r.log.Error("Component start failed", logger.Fields("component", c.Name(), logger.FieldError, err.Error()))
			return fmt.Errorf("start %s: %w", c.Name(), err)
		}
		r.started++
		r.log.Info("Component started", describeFields(c))
	}
	return nil
}

// StopAll stops the started components in reverse order, each within
// StopTimeout, and reports every failure.
func (r *Registry) StopAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var errs []error
	for _, c := range slices.Backward(r.components[:r.started]) {
		stopCtx, cancel := context.WithTimeout(ctx, StopTimeout)
		err := c.Stop(stopCtx)
		cancel()
		if err != nil {
			errs = append(errs, fmt.Errorf("stop %s: %w", c.Name(), err))
			r.log.Error("Component stop failed", logger.Fields("component", c.Name(), logger.FieldError, err.Error()))
			continue
		}
		r.log.Info("Component stopped", logger.Fields("component", c.Name()))
	}
	r.started = 0
	return errors.Join(errs...)
}

// HealthAll asks every component for its health, in registration order.
func (r *Registry) HealthAll(ctx context.Context) []Health {
	comps := r.All()
	out := make([]Health, 0, len(comps))
	for _, c := range comps {
		out = append(out, c.Health(ctx))
	}
	return out
}

// All returns the components in registration order.
func (r *Registry) All() []Component {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.components)
}

func describe(c Component) Description {
	var d Description
	if dc, ok := c.(Describable); ok {
		d = dc.Describe()
	}
	if d.Name == "" {
		d.Name = c.Name()
	}
	return d
}

func describeFields(c Component) map[string]interface{} {
	d := describe(c)
	f := logger.Fields("component", c.Name(), "display", d.Name)
	for k, v := range map[string]any{"type": d.Type, "details": d.Details, "port": d.Port} {
		if v != "" && v != 0 {
			f[k] = v
		}
	}
	return f
}
