// Package process runs external tools such as ffmpeg and ffprobe.
package process

import (
	"context"
	"io"
	"time"
)

// Command configures a subprocess to execute.
type Command struct {
	// Binary is the executable path or name (resolved via PATH).
	Binary string
	Args   []string
	// Dir is the working directory. If empty, uses the current directory.
	Dir string
	// Env is additional key=value pairs merged with os.Environ.
	Env   []string
	Stdin io.Reader
	// GracePeriod is how long to wait after SIGTERM before SIGKILL.
	// Defaults to 5 seconds.
	GracePeriod time.Duration
}

// Runner executes commands. Exec is the real implementation.
type Runner interface {
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// RunnerFunc adapts a function to Runner.
type RunnerFunc func(ctx context.Context, cmd Command) (*Result, error)

// Run calls f.
func (f RunnerFunc) Run(ctx context.Context, cmd Command) (*Result, error) {
	return f(ctx, cmd)
}

// Exec runs commands as real subprocesses.
var Exec Runner = RunnerFunc(Run)
