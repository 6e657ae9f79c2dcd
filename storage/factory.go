package storage

import (
	"fmt"
	"sync"

	"github.com/kbukum/voicememo/logger"
)

// Factory creates a Storage implementation from config.
type Factory func(cfg Config, log *logger.Logger) (Storage, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]Factory)
)

// RegisterFactory registers a backend factory under name. Backend packages
// call it from init.
func RegisterFactory(name string, f Factory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = f
}

// New creates the Storage selected by cfg.Provider. The backend package must
// be imported so its factory is registered.
func New(cfg Config, log *logger.Logger) (Storage, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	factoriesMu.RLock()
	f, ok := factories[cfg.Provider]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("storage: unsupported provider %q (not registered)", cfg.Provider)
	}

	l := log.WithComponent("storage")
	l.Info("initializing storage", logger.Fields(logger.FieldProvider, cfg.Provider))
	return f(cfg, l)
}
