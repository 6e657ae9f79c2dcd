package provider

import (
	"fmt"
	"slices"
	"strings"
	"sync"
)

// Registry maps backend names to their factories. Registering a name twice
// replaces the earlier factory.
type Registry[T Provider] struct {
	mu        sync.RWMutex
	factories map[string]Factory[T]
}

func NewRegistry[T Provider]() *Registry[T] {
	return &Registry[T]{factories: make(map[string]Factory[T])}
}

func (r *Registry[T]) RegisterFactory(name string, factory Factory[T]) {
	r.mu.Lock()
	r.factories[name] = factory
	r.mu.Unlock()
}

// Create builds the named backend. An unknown name reports what is
// registered so a config typo is easy to spot.
func (r *Registry[T]) Create(name string, cfg map[string]any) (T, error) {
	r.mu.RLock()
	factory, ok := r.factories[name]
	r.mu.RUnlock()
	if !ok {
		var zero T
		return zero, fmt.Errorf("provider %q not registered (have: %s)", name, strings.Join(r.List(), ", "))
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	p, err := factory(cfg)
	if err != nil {
		var zero T
		return zero, fmt.Errorf("provider %q: %w", name, err)
	}
	return p, nil
}

// Has reports whether a factory is registered under name.
func (r *Registry[T]) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// List returns the registered names, sorted.
func (r *Registry[T]) List() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}
