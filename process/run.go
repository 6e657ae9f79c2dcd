package process

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"
	"time"
)

const defaultGracePeriod = 5 * time.Second

// ExitError reports a tool that ran and exited non-zero. Its message ends
// with the tail of stderr, where ffmpeg and ffprobe put the actual failure.
type ExitError struct {
	Binary   string
	ExitCode int
	Stderr   string
}

func (e *ExitError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s exited with code %d", e.Binary, e.ExitCode)
	}
	return fmt.Sprintf("%s exited with code %d: %s", e.Binary, e.ExitCode, e.Stderr)
}

// Run starts cmd in its own process group and waits for it. Cancelling ctx
// sends SIGTERM to the whole group, and SIGKILL once the grace period runs
// out, so ffmpeg children do not outlive a cancelled run.
func Run(ctx context.Context, cmd Command) (*Result, error) {
	if cmd.Binary == "" {
		return nil, errors.New("process: binary is required")
	}

	var stdout, stderr bytes.Buffer
	c := exec.CommandContext(ctx, cmd.Binary, cmd.Args...) //nolint:gosec // arguments come from our own media layer
	c.Dir = cmd.Dir
	c.Stdin = cmd.Stdin
	c.Stdout, c.Stderr = &stdout, &stderr
	if len(cmd.Env) > 0 {
		c.Env = append(os.Environ(), cmd.Env...)
	}
	c.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	c.Cancel = func() error { return syscall.Kill(-c.Process.Pid, syscall.SIGTERM) }
	c.WaitDelay = cmd.GracePeriod
	if c.WaitDelay <= 0 {
		c.WaitDelay = defaultGracePeriod
	}

	start := time.Now()
	err := c.Run()
	res := &Result{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: c.ProcessState.ExitCode(),
		Duration: time.Since(start),
	}

	switch {
	case err == nil:
		return res, nil
	case ctx.Err() != nil:
		return res, fmt.Errorf("process: %s stopped: %w", cmd.Binary, ctx.Err())
	case errors.Is(err, exec.ErrNotFound):
		return res, fmt.Errorf("process: %s not found in PATH: %w", cmd.Binary, err)
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return res, &ExitError{Binary: cmd.Binary, ExitCode: res.ExitCode, Stderr: res.StderrTail(stderrTail)}
	}
	return res, fmt.Errorf("process: %s: %w", cmd.Binary, err)
}
