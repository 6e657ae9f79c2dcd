package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/kbukum/voicememo/component"
	"github.com/kbukum/voicememo/logger"
)

// DefaultGracefulTimeout bounds shutdown when neither the config nor an
// option sets it.
const DefaultGracefulTimeout = 15 * time.Second

// App owns the component registry and the lifecycle hooks of the service.
// C is the config type.
type App[C Config] struct {
	Name       string
	Version    string
	Cfg        C
	Components *component.Registry
	Logger     *logger.Logger

	gracefulTimeout time.Duration
	onConfigure     []func(ctx context.Context, app *App[C]) error

	onStart []Hook
	onReady []Hook
	onStop  []Hook

	// signals is replaced in tests.
	signals chan os.Signal
}

// NewApp validates cfg and sets up the logger and an empty registry.
func NewApp[C Config](cfg C, opts ...Option) (*App[C], error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	base := cfg.GetServiceConfig()
	var s settings
	for _, opt := range opts {
		opt(&s)
	}

	app := &App[C]{
		Name:            base.Name,
		Version:         base.Version,
		Cfg:             cfg,
		Logger:          s.log,
		gracefulTimeout: s.shutdownTimeout(base.ShutdownTimeout),
	}
	if app.Logger == nil {
		app.Logger = logger.Init(base.Logging, base.Name)
	}
	app.Components = component.NewRegistry(app.Logger)
	return app, nil
}

// RegisterComponent appends c. Components start in registration order.
func (a *App[C]) RegisterComponent(c component.Component) error {
	return a.Components.Register(c)
}

// OnConfigure wires the business layer once the components are up.
func (a *App[C]) OnConfigure(fn func(ctx context.Context, app *App[C]) error) {
	a.onConfigure = append(a.onConfigure, fn)
}

// ReadyCheck fails when any component reports anything but healthy.
func (a *App[C]) ReadyCheck(ctx context.Context) error {
	var bad []string
	for _, h := range a.Components.HealthAll(ctx) {
		if h.Status == component.StatusHealthy {
			continue
		}
		entry := fmt.Sprintf("%s=%s", h.Name, h.Status)
		if h.Message != "" {
			entry += "(" + h.Message + ")"
		}
		bad = append(bad, entry)
	}
	if len(bad) == 0 {
		return nil
	}
	return fmt.Errorf("unhealthy components: %s", strings.Join(bad, ", "))
}

// Run starts the application and blocks until a shutdown signal arrives or
// ctx ends. Whatever started is stopped again, also after a failed
// startup.
func (a *App[C]) Run(ctx context.Context) error {
	if err := a.startup(ctx); err != nil {
		if stopErr := a.stop(); stopErr != nil {
			a.Logger.Error("Cleanup after failed startup", logger.Fields(logger.FieldError, stopErr.Error()))
		}
		return err
	}
	a.Logger.Info("Application ready, waiting for shutdown signal")
	a.WaitForSignal(ctx)
	return a.stop()
}

func (a *App[C]) startup(ctx context.Context) error {
	start := time.Now()
	a.Logger.Info("Starting application", logger.Fields("name", a.Name, "version", a.Version))

	if err := a.Components.StartAll(ctx); err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	if err := runUntilError(ctx, "start", a.onStart); err != nil {
		return err
	}
	for _, configure := range a.onConfigure {
		if err := configure(ctx, a); err != nil {
			return fmt.Errorf("configuration failed: %w", err)
		}
	}
	if err := a.ReadyCheck(ctx); err != nil {
		a.Logger.Warn("Ready check reported issues", logger.Fields(logger.FieldError, err.Error()))
	}
	if err := runUntilError(ctx, "ready", a.onReady); err != nil {
		return err
	}

	a.Logger.Info("Application started", logger.Fields(
		"components", len(a.Components.All()),
		logger.FieldDuration, time.Since(start).Milliseconds(),
	))
	return nil
}

// WaitForSignal blocks until SIGINT, SIGTERM or ctx is done. It returns
// nil in the latter case.
func (a *App[C]) WaitForSignal(ctx context.Context) os.Signal {
	ch := a.signals
	if ch == nil {
		ch = make(chan os.Signal, 1)
		signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(ch)
	}
	select {
	case <-ctx.Done():
		a.Logger.Info("Context canceled, shutting down")
		return nil
	case sig := <-ch:
		a.Logger.Info("Received shutdown signal", logger.Fields("signal", sig.String()))
		return sig
	}
}

// Shutdown stops the application for callers that drive startup
// themselves.
func (a *App[C]) Shutdown() error {
	return a.stop()
}

// stop runs every OnStop hook and then stops the components, sharing one
// graceful timeout.
func (a *App[C]) stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.gracefulTimeout)
	defer cancel()

	hookErr := runAll(ctx, "stop", a.onStop)
	if hookErr != nil {
		a.Logger.Error("OnStop hook error", logger.Fields(logger.FieldError, hookErr.Error()))
	}
	compErr := a.Components.StopAll(ctx)
	if compErr != nil {
		a.Logger.Error("Shutdown completed with errors", logger.Fields(logger.FieldError, compErr.Error()))
	}
	a.Logger.Info("Application shutdown complete")
	return errors.Join(hookErr, compErr)
}
