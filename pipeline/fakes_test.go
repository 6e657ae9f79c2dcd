package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/voicememo/media"
	"github.com/kbukum/voicememo/storage/memory"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/taskstore"
	"github.com/kbukum/voicememo/transcription"
)

// fakeTranscoder "encodes" by prefixing the input bytes. It refuses to
// write over an existing output so tests catch stale files.
type fakeTranscoder struct {
	mu    sync.Mutex
	calls int
}

func (f *fakeTranscoder) Probe(_ context.Context, path string) (media.Info, error) {
	st, err := os.Stat(path)
	if err != nil {
		return media.Info{}, err
	}
	if st.Size() == 0 {
		return media.Info{}, fmt.Errorf("input %s is empty", filepath.Base(path))
	}
	return media.Info{Duration: 10 * time.Second, Codec: "aac", SampleRate: 48000, Channels: 1}, nil
}

func (f *fakeTranscoder) Transcode(_ context.Context, input, output string) error {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if _, err := os.Stat(output); err == nil {
		return fmt.Errorf("output %s already exists", filepath.Base(output))
	}
	data, err := os.ReadFile(input)
	if err != nil {
		return err
	}
	return os.WriteFile(output, append([]byte("m4a:"), data...), 0o644)
}

func (f *fakeTranscoder) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// fakeService is a scriptable transcription backend.
type fakeService struct {
	mu        sync.Mutex
	remote    bool
	nextID    string
	createErr error
	created   []string
	polls     int
	// status answers the n-th poll (1-based) of id.
	status func(n int, id string) (transcription.TaskInfo, error)
	docs   map[string]map[string]any
}

func (f *fakeService) Name() string                     { return "fake" }
func (f *fakeService) IsAvailable(context.Context) bool { return true }
func (f *fakeService) RequiresRemoteURL() bool          { return f.remote }

func (f *fakeService) CreateTask(_ context.Context, fileURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, fileURL)
	if f.nextID != "" {
		return f.nextID, nil
	}
	return fmt.Sprintf("remote-%d", len(f.created)), nil
}

func (f *fakeService) GetTaskInfo(_ context.Context, id string) (transcription.TaskInfo, error) {
	f.mu.Lock()
	f.polls++
	n := f.polls
	status := f.status
	f.mu.Unlock()
	if status == nil {
		return transcription.TaskInfo{Status: transcription.StatusRunning}, nil
	}
	return status(n, id)
}

func (f *fakeService) FetchJSON(_ context.Context, url string) (map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.docs[url]
	if !ok {
		return nil, fmt.Errorf("no document at %s", url)
	}
	return doc, nil
}

func (f *fakeService) Polls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

func (f *fakeService) Created() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.created...)
}

// recordingSink keeps every published event.
type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (r *recordingSink) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recordingSink) Types() []EventType {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]EventType, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

func (r *recordingSink) Count(typ EventType) int {
	n := 0
	for _, t := range r.Types() {
		if t == typ {
			n++
		}
	}
	return n
}

type harness struct {
	orch    *Orchestrator
	store   *taskstore.MemoryStore
	storage *memory.Storage
	tc      *fakeTranscoder
	svc     *fakeService
	events  *recordingSink
	dir     string
}

func newHarness(t *testing.T, svc *fakeService, cfg Config) *harness {
	t.Helper()
	h := &harness{
		store:   taskstore.NewMemoryStore(),
		storage: memory.New("https://oss.example.com"),
		tc:      &fakeTranscoder{},
		svc:     svc,
		events:  &recordingSink{},
		dir:     t.TempDir(),
	}
	if cfg.PollingInterval == 0 {
		cfg.PollingInterval = time.Millisecond
	}
	bus := NewBus(nil)
	bus.AddSink("test", h.events)
	h.orch = New(cfg, Services{Storage: h.storage, Transcoder: h.tc, Transcription: svc}, h.store, WithBus(bus))
	return h
}

// recording writes a raw recording and returns a new task for it.
func (h *harness) recording(t *testing.T, content string) *task.Task {
	t.Helper()
	path := filepath.Join(h.dir, "mixed.m4a")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	tk := task.New("rec-1", path, "Weekly sync")
	tk.CreatedAt = time.Date(2024, 3, 7, 10, 0, 0, 0, time.UTC)
	return tk
}

func (h *harness) stored(t *testing.T, id string) *task.Task {
	t.Helper()
	got, err := h.store.Get(context.Background(), id)
	if err != nil {
		t.Fatalf("task not persisted: %v", err)
	}
	return got
}

func doc(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal([]byte(s), &m); err != nil {
		t.Fatalf("bad test json: %v", err)
	}
	return m
}

func success(data map[string]any) func(int, string) (transcription.TaskInfo, error) {
	return func(int, string) (transcription.TaskInfo, error) {
		return transcription.TaskInfo{Status: transcription.StatusSuccess, Data: data}, nil
	}
}

const paragraphs = `{"Paragraphs":[{"SpeakerId":1,"Words":[{"Text":"你好"},{"Text":"世界"}]},{"SpeakerId":2,"Words":[{"Text":"收到"}]}]}`
