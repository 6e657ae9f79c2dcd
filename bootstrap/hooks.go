package bootstrap

import (
	"context"
	"errors"
	"fmt"
)

// Hook runs at a fixed point of the App lifecycle.
type Hook func(ctx context.Context) error

// OnStart hooks run right after every component has started. The first
// failing hook aborts startup.
func (a *App[C]) OnStart(hooks ...Hook) { a.onStart = append(a.onStart, hooks...) }

// OnReady hooks run last during startup, after the ready check. The service
// resumes interrupted tasks here.
func (a *App[C]) OnReady(hooks ...Hook) { a.onReady = append(a.onReady, hooks...) }

// OnStop hooks run before any component stops, in registration order.
// Every hook runs even when an earlier one fails, so a stuck pipeline drain
// still lets telemetry flush.
func (a *App[C]) OnStop(hooks ...Hook) { a.onStop = append(a.onStop, hooks...) }

func runUntilError(ctx context.Context, phase string, hooks []Hook) error {
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			return fmt.Errorf("%s hook %d: %w", phase, i+1, err)
		}
	}
	return nil
}

func runAll(ctx context.Context, phase string, hooks []Hook) error {
	var errs []error
	for i, h := range hooks {
		if err := h(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s hook %d: %w", phase, i+1, err))
		}
	}
	return errors.Join(errs...)
}
