package process_test

import (
	"context"
	"errors"
	"os/exec"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/voicememo/process"
)

func sh(script string) process.Command {
	return process.Command{Binary: "sh", Args: []string{"-c", script}}
}

func TestRun(t *testing.T) {
	withStdin := sh("cat")
	withStdin.Stdin = strings.NewReader("from stdin")
	withEnv := sh("echo $VOICEMEMO_CHANNEL")
	withEnv.Env = []string{"VOICEMEMO_CHANNEL=mixed"}

	tests := []struct {
		name   string
		cmd    process.Command
		stdout string
		stderr string
	}{
		{"args", process.Command{Binary: "echo", Args: []string{"hello", "world"}}, "hello world", ""},
		{"stdin", withStdin, "from stdin", ""},
		{"env", withEnv, "mixed", ""},
		{"stderr on success", sh("echo oops >&2"), "", "oops"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := process.Exec.Run(context.Background(), tt.cmd)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if res.ExitCode != 0 {
				t.Errorf("expected exit code 0, got %d", res.ExitCode)
			}
			if got := strings.TrimSpace(string(res.Stdout)); got != tt.stdout {
				t.Errorf("expected stdout %q, got %q", tt.stdout, got)
			}
			if got := strings.TrimSpace(string(res.Stderr)); got != tt.stderr {
				t.Errorf("expected stderr %q, got %q", tt.stderr, got)
			}
		})
	}
}

func TestRun_ExitError(t *testing.T) {
	res, err := process.Run(context.Background(), sh("echo 'ffmpeg version 6.1' >&2; echo 'moov atom not found' >&2; exit 42"))

	var exitErr *process.ExitError
	if !errors.As(err, &exitErr) {
		t.Fatalf("expected *process.ExitError, got %T: %v", err, err)
	}
	if res.ExitCode != 42 || exitErr.ExitCode != 42 {
		t.Errorf("expected exit code 42, got %d / %d", res.ExitCode, exitErr.ExitCode)
	}
	if !strings.HasSuffix(err.Error(), "moov atom not found") || !strings.HasPrefix(err.Error(), "sh exited with code 42: ") {
		t.Errorf("unexpected message: %q", err.Error())
	}
	if got := res.StderrTail(19); got != "moov atom not found" {
		t.Errorf("expected last stderr line, got %q", got)
	}
}

func TestRun_Cancel(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	cmd := process.Command{Binary: "sleep", Args: []string{"10"}, GracePeriod: 500 * time.Millisecond}
	res, err := process.Run(ctx, cmd)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
	if res.Duration > 5*time.Second {
		t.Errorf("process outlived its context by %v", res.Duration)
	}
}

func TestRun_BadCommand(t *testing.T) {
	if _, err := process.Run(context.Background(), process.Command{}); err == nil {
		t.Error("expected error for empty binary")
	}
	_, err := process.Run(context.Background(), process.Command{Binary: "ffmpeg-does-not-exist"})
	if !errors.Is(err, exec.ErrNotFound) {
		t.Errorf("expected exec.ErrNotFound, got %v", err)
	}
}

func TestStderrTail(t *testing.T) {
	res := &process.Result{Stderr: []byte("ffmpeg version 6.1\nmoov atom not found\n\n")}
	tests := []struct {
		n        int
		expected string
	}{
		{19, "moov atom not found"},
		{4, "ound"},
		{200, "ffmpeg version 6.1\nmoov atom not found"},
	}
	for _, tt := range tests {
		if got := res.StderrTail(tt.n); got != tt.expected {
			t.Errorf("StderrTail(%d): expected %q, got %q", tt.n, tt.expected, got)
		}
	}
}

func TestStderrTail_NilResult(t *testing.T) {
	var res *process.Result
	if res.StderrTail(10) != "" {
		t.Error("expected empty tail for nil result")
	}
}

func TestRunnerFunc(t *testing.T) {
	var seen process.Command
	r := process.RunnerFunc(func(_ context.Context, cmd process.Command) (*process.Result, error) {
		seen = cmd
		return &process.Result{Stdout: []byte("ok")}, nil
	})
	res, err := r.Run(context.Background(), process.Command{Binary: "ffprobe", Args: []string{"-v", "error"}})
	if err != nil || seen.Binary != "ffprobe" || string(res.Stdout) != "ok" {
		t.Errorf("unexpected runner call %+v: %v", seen, err)
	}
}
