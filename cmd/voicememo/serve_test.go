package main

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/pipeline"
	"github.com/kbukum/voicememo/storage/memory"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/taskstore"
	"github.com/kbukum/voicememo/transcription"
	"github.com/kbukum/voicememo/version"
)

// blockingService never finishes a poll until the run is cancelled.
type blockingService struct{}

func (blockingService) Name() string                     { return "blocking" }
func (blockingService) IsAvailable(context.Context) bool { return true }
func (blockingService) RequiresRemoteURL() bool          { return true }

func (blockingService) CreateTask(context.Context, string) (string, error) {
	return "remote-1", nil
}

func (blockingService) GetTaskInfo(ctx context.Context, _ string) (transcription.TaskInfo, error) {
	<-ctx.Done()
	return transcription.TaskInfo{}, ctx.Err()
}

func (blockingService) FetchJSON(context.Context, string) (map[string]any, error) {
	return nil, nil
}

func TestResumeStartsInterruptedTasks(t *testing.T) {
	ctx := context.Background()
	store := taskstore.NewMemoryStore()

	seed := func(id string, status task.Status) {
		tk := task.New("rec-"+id, "/tmp/"+id+".m4a", id)
		tk.ID = id
		tk.Status = status
		if status == task.StatusPolling {
			tk.TaskID = "remote-" + id
		}
		if status == task.StatusFailed {
			tk.Fail(task.StatusTranscoding, "ffmpeg exited")
		}
		if err := store.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}
	seed("fresh", task.StatusRecorded)
	seed("done", task.StatusCompleted)
	seed("broken", task.StatusFailed)
	seed("waiting", task.StatusPolling)

	orch := pipeline.New(pipeline.Config{MaxPollingRetries: 1, PollingInterval: time.Millisecond},
		pipeline.Services{Storage: memory.New("https://oss.example.com"), Transcription: blockingService{}},
		store)
	t.Cleanup(func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := orch.Shutdown(sctx); err != nil {
			t.Errorf("shutdown: %v", err)
		}
	})

	if err := resume(ctx, store, orch, logger.Nop()); err != nil {
		t.Fatalf("resume: %v", err)
	}

	if !orch.Running("waiting") {
		t.Error("expected polling task to be resumed")
	}
	for _, id := range []string{"fresh", "done", "broken"} {
		if orch.Running(id) {
			t.Errorf("expected %s to stay idle", id)
		}
	}
}

func TestPrintTasks(t *testing.T) {
	tk := task.New("rec-1", "/tmp/a.m4a", "Standup")
	tk.Fail(task.StatusUploading, "bucket missing")

	var buf bytes.Buffer
	if err := printTasks(&buf, []*task.Task{tk}); err != nil {
		t.Fatal(err)
	}
	out := buf.String()
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected header and one row, got %q", out)
	}
	for _, want := range []string{tk.ID, "rec-1", "Standup", "bucket missing"} {
		if !strings.Contains(lines[1], want) {
			t.Errorf("expected %q in row %q", want, lines[1])
		}
	}
}

func TestRootCommand(t *testing.T) {
	root := newRootCmd()
	names := map[string]bool{}
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "tasks", "version"} {
		if !names[want] {
			t.Errorf("expected %s subcommand", want)
		}
	}
	if root.Version != version.Get().Short() {
		t.Errorf("expected version %q, got %q", version.Get().Short(), root.Version)
	}
}

func TestVersionCommand(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})
	if err := root.Execute(); err != nil {
		t.Fatalf("version: %v", err)
	}

	var info version.Info
	if err := json.Unmarshal(out.Bytes(), &info); err != nil {
		t.Fatalf("expected JSON output, got %q: %v", out.String(), err)
	}
	if info.Version != version.Version {
		t.Errorf("expected %q, got %q", version.Version, info.Version)
	}
}
