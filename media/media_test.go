package media

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/voicememo/process"
)

// fakeRunner answers ffprobe with a canned document and makes "ffmpeg"
// write a deterministic transform of the input to the last argument.
func fakeRunner(probeJSON string, calls *[]process.Command) process.Runner {
	return process.RunnerFunc(func(_ context.Context, cmd process.Command) (*process.Result, error) {
		*calls = append(*calls, cmd)
		switch cmd.Binary {
		case "ffprobe":
			return &process.Result{Stdout: []byte(probeJSON)}, nil
		case "ffmpeg":
			var in string
			for i, a := range cmd.Args {
				if a == "-i" {
					in = cmd.Args[i+1]
				}
			}
			data, err := os.ReadFile(in)
			if err != nil {
				return &process.Result{ExitCode: 1}, &process.ExitError{Binary: "ffmpeg", ExitCode: 1, Stderr: in + ": No such file or directory"}
			}
			out := cmd.Args[len(cmd.Args)-1]
			return &process.Result{}, os.WriteFile(out, append([]byte("aac:"), data...), 0o644)
		}
		return nil, errors.New("unexpected binary")
	})
}

const goodProbe = `{"streams":[{"codec_type":"audio","codec_name":"pcm_s16le","sample_rate":"48000","channels":1}],"format":{"duration":"10.000000"}}`

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return p
}

func TestProbe(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "mixed.wav", "RIFF....")
	var calls []process.Command
	f := NewFFmpeg(Config{}, fakeRunner(goodProbe, &calls))

	info, err := f.Probe(context.Background(), in)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if info.Duration != 10*time.Second {
		t.Errorf("expected 10s, got %v", info.Duration)
	}
	if info.SampleRate != 48000 || info.Channels != 1 || info.Codec != "pcm_s16le" {
		t.Errorf("unexpected info: %+v", info)
	}
	if calls[0].Args[len(calls[0].Args)-1] != in {
		t.Errorf("expected ffprobe to receive input path, got %v", calls[0].Args)
	}
}

func TestProbe_Rejects(t *testing.T) {
	dir := t.TempDir()
	empty := writeFile(t, dir, "empty.wav", "")
	nonEmpty := writeFile(t, dir, "video.mp4", "data")

	tests := []struct {
		name  string
		path  string
		probe string
	}{
		{"missing file", filepath.Join(dir, "nope.wav"), goodProbe},
		{"empty file", empty, goodProbe},
		{"no audio stream", nonEmpty, `{"streams":[{"codec_type":"video"}],"format":{"duration":"3"}}`},
		{"zero duration", nonEmpty, `{"streams":[{"codec_type":"audio"}],"format":{"duration":"0"}}`},
		{"garbage output", nonEmpty, `not json`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls []process.Command
			f := NewFFmpeg(Config{}, fakeRunner(tt.probe, &calls))
			if _, err := f.Probe(context.Background(), tt.path); err == nil {
				t.Error("expected probe error")
			}
		})
	}
}

func TestTranscode_IdempotentOutput(t *testing.T) {
	dir := t.TempDir()
	in := writeFile(t, dir, "mixed.wav", "pcm-bytes")
	out := filepath.Join(dir, "mixed_48k.m4a")
	var calls []process.Command
	f := NewFFmpeg(Config{}, fakeRunner(goodProbe, &calls))

	if err := f.Transcode(context.Background(), in, out); err != nil {
		t.Fatalf("first transcode: %v", err)
	}
	first, _ := os.ReadFile(out)
	if err := f.Transcode(context.Background(), in, out); err != nil {
		t.Fatalf("second transcode: %v", err)
	}
	second, _ := os.ReadFile(out)
	if !bytes.Equal(first, second) {
		t.Errorf("expected identical output, got %q vs %q", first, second)
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.Contains(e.Name(), ".part") {
			t.Errorf("temporary file left behind: %s", e.Name())
		}
	}

	args := strings.Join(calls[0].Args, " ")
	for _, want := range []string{"-c:a aac", "-ar 48000", "-b:a 128k", "+bitexact"} {
		if !strings.Contains(args, want) {
			t.Errorf("expected ffmpeg args to contain %q, got %s", want, args)
		}
	}
}

func TestTranscode_Failure(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "mixed_48k.m4a")
	var calls []process.Command
	f := NewFFmpeg(Config{}, fakeRunner(goodProbe, &calls))

	err := f.Transcode(context.Background(), filepath.Join(dir, "missing.wav"), out)
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "No such file") {
		t.Errorf("expected stderr tail in error, got %v", err)
	}
	if _, statErr := os.Stat(out); !os.IsNotExist(statErr) {
		t.Error("expected no output on failure")
	}
}
