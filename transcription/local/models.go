package local

import (
	"context"
	"sync"
	"time"

	"github.com/kbukum/voicememo/logger"
)

// ModelLoader loads and frees models in the inference sidecar.
type ModelLoader interface {
	LoadModel(ctx context.Context, name string) error
	UnloadModel(ctx context.Context, name string) error
}

// ModelState is the cache state of one model.
type ModelState string

const (
	ModelUnloaded ModelState = "unloaded"
	ModelLoading  ModelState = "loading"
	// ModelLoaded has at least one user.
	ModelLoaded ModelState = "loaded"
	// ModelCached has no users and is unloaded once idle past the timeout.
	ModelCached ModelState = "cached"
)

const (
	DefaultIdleTimeout   = 5 * time.Minute
	DefaultSweepInterval = 60 * time.Second
)

type modelEntry struct {
	refs     int
	lastUsed time.Time
	ready    chan struct{}
	loaded   bool
	err      error
}

// ModelCache reference-counts loaded models. A model whose count drops to
// zero stays loaded until Sweep finds it idle longer than the timeout.
type ModelCache struct {
	mu      sync.Mutex
	loader  ModelLoader
	timeout time.Duration
	entries map[string]*modelEntry
	now     func() time.Time
	log     *logger.Logger
}

// NewModelCache creates a cache over loader.
func NewModelCache(loader ModelLoader, idleTimeout time.Duration) *ModelCache {
	if idleTimeout <= 0 {
		idleTimeout = DefaultIdleTimeout
	}
	return &ModelCache{
		loader:  loader,
		timeout: idleTimeout,
		entries: make(map[string]*modelEntry),
		now:     time.Now,
		log:     logger.WithComponent("model-cache"),
	}
}

// Acquire takes a reference on name, loading it on first use. Concurrent
// callers share a single load.
func (c *ModelCache) Acquire(ctx context.Context, name string) error {
	c.mu.Lock()
	if e, ok := c.entries[name]; ok {
		e.refs++
		c.mu.Unlock()
		select {
		case <-e.ready:
			return e.err
		case <-ctx.Done():
			c.Release(name)
			return ctx.Err()
		}
	}
	e := &modelEntry{refs: 1, ready: make(chan struct{})}
	c.entries[name] = e
	c.mu.Unlock()

	start := c.now()
	err := c.loader.LoadModel(ctx, name)

	c.mu.Lock()
	if err != nil {
		e.err = err
		delete(c.entries, name)
	} else {
		e.loaded = true
		e.lastUsed = c.now()
	}
	close(e.ready)
	c.mu.Unlock()

	if err != nil {
		c.log.Error("model load failed", logger.Fields("model", name, logger.FieldError, err.Error()))
		return err
	}
	c.log.Info("model loaded", logger.Fields("model", name, logger.FieldDuration, c.now().Sub(start).String()))
	return nil
}

// Release drops a reference taken by Acquire.
func (c *ModelCache) Release(name string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	if !ok || e.refs == 0 {
		return
	}
	e.refs--
	if e.refs == 0 {
		e.lastUsed = c.now()
	}
}

// State reports the cache state of name.
func (c *ModelCache) State(name string) ModelState {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[name]
	switch {
	case !ok:
		return ModelUnloaded
	case !e.loaded:
		return ModelLoading
	case e.refs > 0:
		return ModelLoaded
	default:
		return ModelCached
	}
}

// Sweep unloads cached models idle longer than the timeout and returns
// their names.
func (c *ModelCache) Sweep(ctx context.Context) []string {
	now := c.now()
	return c.evict(ctx, func(e *modelEntry) bool {
		return now.Sub(e.lastUsed) > c.timeout
	})
}

// ReleaseCached unloads every model without users regardless of age.
func (c *ModelCache) ReleaseCached(ctx context.Context) []string {
	return c.evict(ctx, func(*modelEntry) bool { return true })
}

// RunSweeper calls Sweep every interval until ctx is done.
func (c *ModelCache) RunSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.Sweep(ctx)
		}
	}
}

func (c *ModelCache) evict(ctx context.Context, expired func(*modelEntry) bool) []string {
	c.mu.Lock()
	var names []string
	for name, e := range c.entries {
		if e.loaded && e.refs == 0 && expired(e) {
			names = append(names, name)
			delete(c.entries, name)
		}
	}
	c.mu.Unlock()

	for _, name := range names {
		if err := c.loader.UnloadModel(ctx, name); err != nil {
			c.log.Warn("model unload failed", logger.Fields("model", name, logger.FieldError, err.Error()))
			continue
		}
		c.log.Info("model unloaded", logger.Fields("model", name))
	}
	return names
}
