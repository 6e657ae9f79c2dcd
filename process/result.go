package process

import (
	"strings"
	"time"
	"unicode"
)

// stderrTail is how much of stderr an ExitError keeps.
const stderrTail = 512

// Result holds the output and status of a completed subprocess.
type Result struct {
	// Stdout is the captured standard output.
	Stdout []byte
	// Stderr is the captured standard error.
	Stderr []byte
	// ExitCode is the process exit code. -1 if the process was killed.
	ExitCode int
	// Duration is how long the process ran.
	Duration time.Duration
}

// StderrTail returns the last n bytes of stderr, ignoring trailing
// whitespace. ffmpeg prints its banner first and the actual failure last.
func (r *Result) StderrTail(n int) string {
	if r == nil {
		return ""
	}
	s := strings.TrimRightFunc(string(r.Stderr), unicode.IsSpace)
	if len(s) > n {
		s = s[len(s)-n:]
	}
	return strings.TrimSpace(s)
}
