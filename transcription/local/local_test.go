package local

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/kbukum/voicememo/diarization"
	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/transcription"
	"github.com/kbukum/voicememo/transcription/whisper"
)

type fakeASR struct {
	result *whisper.Result
	err    error
	block  chan struct{}
}

func (f *fakeASR) Transcribe(ctx context.Context, _ whisper.Request) (*whisper.Result, error) {
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return f.result, f.err
}

func (f *fakeASR) IsAvailable(context.Context) bool { return true }

type fakeLoader struct {
	mu       sync.Mutex
	loads    int
	unloads  []string
	failLoad error
}

func (f *fakeLoader) LoadModel(context.Context, string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loads++
	return f.failLoad
}

func (f *fakeLoader) UnloadModel(_ context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.unloads = append(f.unloads, name)
	return nil
}

type fakeDiarizer struct {
	result *diarization.Result
	gate   chan struct{}
}

func (f *fakeDiarizer) Name() string                     { return "fake" }
func (f *fakeDiarizer) IsAvailable(context.Context) bool { return true }
func (f *fakeDiarizer) Diarize(ctx context.Context, _ diarization.Request) (*diarization.Result, error) {
	if f.gate != nil {
		<-f.gate
	}
	return f.result, nil
}

func audioFile(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixed_48k.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

var asrResult = &whisper.Result{
	Text: "hello world",
	Segments: []transcription.Segment{
		{Start: 0, End: 1, Text: "hello"},
		{Start: 1, End: 2, Text: "world"},
	},
}

func TestProvider_Success(t *testing.T) {
	loader := &fakeLoader{}
	p, err := NewProvider(Config{}, WithASR(&fakeASR{result: asrResult}), WithModelLoader(loader))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if p.RequiresRemoteURL() {
		t.Error("expected local provider to accept local files")
	}

	id, err := p.CreateTask(context.Background(), "file://"+audioFile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := p.Wait(context.Background(), id); err != nil {
		t.Fatalf("wait: %v", err)
	}

	info, _ := p.GetTaskInfo(context.Background(), id)
	if info.Status != transcription.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s (%v)", info.Status, info.Data)
	}
	if info.Data["provider"] != ProviderTag || info.Data["text"] != "hello world" {
		t.Errorf("unexpected output: %v", info.Data)
	}
	segs := info.Data["segments"].([]any)
	if len(segs) != 2 {
		t.Fatalf("expected 2 segments, got %d", len(segs))
	}
	if _, ok := segs[0].(map[string]any)["speaker"]; ok {
		t.Error("expected no speaker without role split")
	}
	if p.Models().State("base") != ModelCached {
		t.Errorf("expected model cached after task, got %s", p.Models().State("base"))
	}
}

func TestProvider_RoleSplitPartialThenFused(t *testing.T) {
	gate := make(chan struct{})
	diar := &fakeDiarizer{
		gate: gate,
		result: &diarization.Result{Turns: []diarization.Turn{
			{Speaker: "SPEAKER_00", Start: 0, End: 1},
			{Speaker: "SPEAKER_01", Start: 1, End: 2},
		}},
	}
	p, _ := NewProvider(Config{Features: transcription.Features{RoleSplit: true}},
		WithASR(&fakeASR{result: asrResult}), WithModelLoader(&fakeLoader{}), WithDiarizer(diar))

	id, err := p.CreateTask(context.Background(), audioFile(t))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	var info transcription.TaskInfo
	for time.Now().Before(deadline) {
		info, _ = p.GetTaskInfo(context.Background(), id)
		if info.Data != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	if info.Status != transcription.StatusRunning || info.Data["partial"] != true {
		t.Fatalf("expected RUNNING partial snapshot, got %s %v", info.Status, info.Data)
	}
	first := info.Data["segments"].([]any)[0].(map[string]any)
	if first["speaker"] != "Unknown" {
		t.Errorf("expected Unknown speaker in partial, got %v", first["speaker"])
	}

	close(gate)
	_ = p.Wait(context.Background(), id)
	info, _ = p.GetTaskInfo(context.Background(), id)
	if info.Status != transcription.StatusSuccess {
		t.Fatalf("expected SUCCESS, got %s", info.Status)
	}
	second := info.Data["segments"].([]any)[1].(map[string]any)
	if second["speaker"] != "SPEAKER_01" {
		t.Errorf("expected SPEAKER_01, got %v", second["speaker"])
	}
}

func TestProvider_UnknownAndCancelled(t *testing.T) {
	block := make(chan struct{})
	defer close(block)
	p, _ := NewProvider(Config{}, WithASR(&fakeASR{block: block}), WithModelLoader(&fakeLoader{}))

	info, _ := p.GetTaskInfo(context.Background(), "missing")
	if info.Status != transcription.StatusFailed || info.Data["error"] != "Task not found" {
		t.Errorf("expected Task not found, got %s %v", info.Status, info.Data)
	}

	id, _ := p.CreateTask(context.Background(), audioFile(t))
	if !p.Cancel(id) {
		t.Fatal("expected running task to cancel")
	}
	_ = p.Wait(context.Background(), id)
	info, _ = p.GetTaskInfo(context.Background(), id)
	if info.Status != transcription.StatusFailed || info.Data["error"] != "Task cancelled" {
		t.Errorf("expected Task cancelled, got %s %v", info.Status, info.Data)
	}
}

func TestProvider_Failure(t *testing.T) {
	p, _ := NewProvider(Config{}, WithASR(&fakeASR{err: errors.New("sidecar down")}), WithModelLoader(&fakeLoader{}))
	id, _ := p.CreateTask(context.Background(), audioFile(t))
	_ = p.Wait(context.Background(), id)

	info, _ := p.GetTaskInfo(context.Background(), id)
	if info.Status != transcription.StatusFailed || info.Data["error"] != "sidecar down" {
		t.Errorf("expected failure message, got %s %v", info.Status, info.Data)
	}
}

func TestProvider_InvalidURL(t *testing.T) {
	p, _ := NewProvider(Config{}, WithASR(&fakeASR{}), WithModelLoader(&fakeLoader{}))
	_, err := p.CreateTask(context.Background(), "https://bucket/remote.m4a")
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidURL) {
		t.Errorf("expected INVALID_URL, got %v", err)
	}
	_, err = p.CreateTask(context.Background(), "file:///does/not/exist.m4a")
	if !apperrors.HasCode(err, apperrors.ErrCodeInvalidURL) {
		t.Errorf("expected INVALID_URL, got %v", err)
	}
}

func TestProvider_FetchJSONFile(t *testing.T) {
	p, _ := NewProvider(Config{}, WithASR(&fakeASR{}), WithModelLoader(&fakeLoader{}))
	path := filepath.Join(t.TempDir(), "r.json")
	_ = os.WriteFile(path, []byte(`{"text":"x"}`), 0o644)

	doc, err := p.FetchJSON(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if doc["text"] != "x" {
		t.Errorf("expected text x, got %v", doc)
	}
}

func TestModelCache_RefCountAndSweep(t *testing.T) {
	loader := &fakeLoader{}
	c := NewModelCache(loader, 5*time.Minute)
	now := time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	if err := c.Acquire(ctx, "base"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := c.Acquire(ctx, "base"); err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if loader.loads != 1 {
		t.Errorf("expected one load, got %d", loader.loads)
	}

	c.Release("base")
	if c.State("base") != ModelLoaded {
		t.Errorf("expected loaded with one user, got %s", c.State("base"))
	}
	c.Release("base")
	if c.State("base") != ModelCached {
		t.Errorf("expected cached, got %s", c.State("base"))
	}

	now = now.Add(4 * time.Minute)
	if swept := c.Sweep(ctx); len(swept) != 0 {
		t.Errorf("expected nothing swept before timeout, got %v", swept)
	}

	now = now.Add(2 * time.Minute)
	if swept := c.Sweep(ctx); len(swept) != 1 || swept[0] != "base" {
		t.Errorf("expected base swept, got %v", swept)
	}
	if c.State("base") != ModelUnloaded {
		t.Errorf("expected unloaded, got %s", c.State("base"))
	}
	if len(loader.unloads) != 1 {
		t.Errorf("expected one unload, got %v", loader.unloads)
	}
}

func TestModelCache_InUseNotSwept(t *testing.T) {
	c := NewModelCache(&fakeLoader{}, time.Minute)
	now := time.Now()
	c.now = func() time.Time { return now }
	_ = c.Acquire(context.Background(), "small")

	now = now.Add(time.Hour)
	if swept := c.Sweep(context.Background()); len(swept) != 0 {
		t.Errorf("expected in-use model kept, got %v", swept)
	}
	if swept := c.ReleaseCached(context.Background()); len(swept) != 0 {
		t.Errorf("expected in-use model kept, got %v", swept)
	}
}

func TestModelCache_LoadFailure(t *testing.T) {
	c := NewModelCache(&fakeLoader{failLoad: errors.New("oom")}, time.Minute)
	if err := c.Acquire(context.Background(), "large-v3"); err == nil {
		t.Fatal("expected load error")
	}
	if c.State("large-v3") != ModelUnloaded {
		t.Errorf("expected unloaded after failure, got %s", c.State("large-v3"))
	}
}

func TestFuse(t *testing.T) {
	segs := []transcription.Segment{{Start: 0, End: 1, Text: "a"}, {Start: 5, End: 6, Text: "b"}}
	diar := &diarization.Result{Turns: []diarization.Turn{{Speaker: "S1", Start: 0, End: 2}}}

	fused := Fuse(segs, diar)
	if fused[0].Speaker != "S1" || fused[1].Speaker != "Unknown" {
		t.Errorf("unexpected speakers: %+v", fused)
	}
	if plain := Fuse(segs, nil); plain[0].Speaker != "" {
		t.Errorf("expected empty speaker without diarization, got %q", plain[0].Speaker)
	}
}
