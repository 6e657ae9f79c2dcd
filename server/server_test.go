package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kbukum/voicememo/component"
	apperrors "github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/media"
	"github.com/kbukum/voicememo/pipeline"
	"github.com/kbukum/voicememo/server/endpoint"
	"github.com/kbukum/voicememo/sse"
	"github.com/kbukum/voicememo/storage/memory"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/taskstore"
	"github.com/kbukum/voicememo/transcription"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type startCall struct {
	id     string
	action pipeline.Action
}

type fakeRunner struct {
	mu        sync.Mutex
	starts    []startCall
	cancelled []string
	err       error
	running   map[string]bool
}

func (f *fakeRunner) Start(_ context.Context, t *task.Task, action pipeline.Action) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.starts = append(f.starts, startCall{id: t.ID, action: action})
	return nil
}

func (f *fakeRunner) Cancel(id string) (<-chan struct{}, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancelled = append(f.cancelled, id)
	if !f.running[id] {
		return nil, false
	}
	stopped := make(chan struct{})
	close(stopped)
	return stopped, true
}

func (f *fakeRunner) Running(id string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running[id]
}

func (f *fakeRunner) Starts() []startCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]startCall(nil), f.starts...)
}

type testEnv struct {
	srv    *Server
	store  *taskstore.MemoryStore
	runner *fakeRunner
	hub    *sse.Hub
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  taskstore.NewMemoryStore(),
		runner: &fakeRunner{running: map[string]bool{}},
		hub:    sse.NewHub(nil),
	}
	go env.hub.Run()
	t.Cleanup(env.hub.Stop)

	cfg := Config{}
	cfg.ApplyDefaults()
	env.srv = New(cfg, nil)
	api := NewTaskAPI(env.store, env.runner, env.hub, nil)
	env.srv.Mount(api, endpoint.Health("voicememo", "test"))
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, http.NoBody)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	e.srv.Handler().ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, status task.Status) *task.Task {
	t.Helper()
	tk := task.New("rec-1", "/tmp/rec-1/mixed.m4a", "Standup")
	if status == task.StatusFailed {
		tk.Fail(task.StatusUploading, "upload failed")
	} else {
		tk.Status = status
	}
	if err := e.store.Save(context.Background(), tk); err != nil {
		t.Fatal(err)
	}
	return tk
}

type envelope struct {
	Data json.RawMessage `json:"data"`
	Meta *Meta           `json:"meta"`
}

func decodeTask(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(rr.Body.Bytes(), &env); err != nil {
		t.Fatalf("invalid JSON %q: %v", rr.Body.String(), err)
	}
	var m map[string]any
	if err := json.Unmarshal(env.Data, &m); err != nil {
		t.Fatalf("data is not an object: %s", env.Data)
	}
	return m
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var resp apperrors.ErrorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid error body %q: %v", rr.Body.String(), err)
	}
	return string(resp.Error.Code)
}

func TestCreateTaskStartsPipeline(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/tasks", `{"recording_id":"rec-9","local_file_path":"/data/rec-9/mixed.m4a","title":"Review"}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	got := decodeTask(t, rr)
	if got["status"] != "recorded" {
		t.Errorf("expected status recorded, got %v", got["status"])
	}
	if got["status_label"] != "Recorded" {
		t.Errorf("expected label Recorded, got %v", got["status_label"])
	}
	id, _ := got["id"].(string)
	if _, err := env.store.Get(context.Background(), id); err != nil {
		t.Fatalf("expected task to be persisted: %v", err)
	}

	starts := env.runner.Starts()
	if len(starts) != 1 || starts[0].id != id || starts[0].action != pipeline.ActionRun {
		t.Errorf("expected one run start for %s, got %+v", id, starts)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id on the response")
	}
}

func TestCreateTaskWithoutStart(t *testing.T) {
	env := newTestEnv(t)

	rr := env.do(t, "POST", "/api/tasks", `{"recording_id":"rec-9","local_file_path":"/x.m4a","start":false}`)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	if n := len(env.runner.Starts()); n != 0 {
		t.Errorf("expected no run, got %d", n)
	}
}

func TestCreateTaskValidation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
	}{
		{"missing recording id", `{"local_file_path":"/x.m4a"}`},
		{"missing path", `{"recording_id":"rec-1"}`},
		{"malformed json", `{"recording_id":`},
		{"long title", fmt.Sprintf(`{"recording_id":"r","local_file_path":"/x","title":%q}`, strings.Repeat("t", 201))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr := env.do(t, "POST", "/api/tasks", tt.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
			if code := errorCode(t, rr); code != "INVALID_INPUT" {
				t.Errorf("expected INVALID_INPUT, got %s", code)
			}
		})
	}
	if n := len(env.runner.Starts()); n != 0 {
		t.Errorf("expected no runs for invalid bodies, got %d", n)
	}
}

func TestListTasks(t *testing.T) {
	env := newTestEnv(t)
	older := env.seed(t, task.StatusCompleted)
	older.CreatedAt = older.CreatedAt.Add(-time.Hour)
	env.store.Save(context.Background(), older)
	newer := env.seed(t, task.StatusPolling)
	env.runner.running[newer.ID] = true

	rr := env.do(t, "GET", "/api/tasks", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var body struct {
		Data []map[string]any `json:"data"`
		Meta Meta             `json:"meta"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatal(err)
	}
	if body.Meta.Total != 2 || len(body.Data) != 2 {
		t.Fatalf("expected 2 tasks, got %d (meta %d)", len(body.Data), body.Meta.Total)
	}
	if body.Meta.Running != 1 || body.Meta.ByStatus[task.StatusCompleted.Label()] != 1 {
		t.Errorf("unexpected meta: %+v", body.Meta)
	}
	if body.Data[0]["id"] != newer.ID {
		t.Errorf("expected newest first, got %v", body.Data[0]["id"])
	}
	if body.Data[0]["running"] != true || body.Data[1]["running"] != false {
		t.Errorf("unexpected running flags: %v %v", body.Data[0]["running"], body.Data[1]["running"])
	}
}

func TestGetTask(t *testing.T) {
	env := newTestEnv(t)
	tk := env.seed(t, task.StatusFailed)

	rr := env.do(t, "GET", "/api/tasks/"+tk.ID, "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	got := decodeTask(t, rr)
	if got["failed_step"] != "uploading" {
		t.Errorf("expected failed_step uploading, got %v", got["failed_step"])
	}
	if got["last_error"] != "upload failed" {
		t.Errorf("expected last_error, got %v", got["last_error"])
	}

	rr = env.do(t, "GET", "/api/tasks/missing", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

func TestRenameTask(t *testing.T) {
	env := newTestEnv(t)
	tk := env.seed(t, task.StatusCompleted)

	rr := env.do(t, "PATCH", "/api/tasks/"+tk.ID, `{"title":"Quarterly review"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeTask(t, rr); got["title"] != "Quarterly review" {
		t.Errorf("expected renamed title, got %v", got["title"])
	}
	stored, _ := env.store.Get(context.Background(), tk.ID)
	if stored.Title != "Quarterly review" || stored.Status != task.StatusCompleted {
		t.Errorf("expected only the title to change, got %q %s", stored.Title, stored.Status)
	}

	if rr := env.do(t, "PATCH", "/api/tasks/"+tk.ID, `{"title":""}`); rr.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty title, got %d", rr.Code)
	}
	if rr := env.do(t, "PATCH", "/api/tasks/missing", `{"title":"x"}`); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", rr.Code)
	}
}

func TestDeleteTaskCancelsRun(t *testing.T) {
	env := newTestEnv(t)
	tk := env.seed(t, task.StatusPolling)
	env.runner.running[tk.ID] = true

	rr := env.do(t, "DELETE", "/api/tasks/"+tk.ID, "")
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if _, err := env.store.Get(context.Background(), tk.ID); !apperrors.HasCode(err, apperrors.ErrCodeNotFound) {
		t.Errorf("expected task to be deleted, got %v", err)
	}
	if len(env.runner.cancelled) != 1 || env.runner.cancelled[0] != tk.ID {
		t.Errorf("expected cancel of %s, got %v", tk.ID, env.runner.cancelled)
	}

	if rr := env.do(t, "DELETE", "/api/tasks/"+tk.ID, ""); rr.Code != http.StatusNotFound {
		t.Errorf("expected 404 on second delete, got %d", rr.Code)
	}
}

func TestRetryAndRestart(t *testing.T) {
	env := newTestEnv(t)
	tk := env.seed(t, task.StatusFailed)

	rr := env.do(t, "POST", "/api/tasks/"+tk.ID+"/retry", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", rr.Code, rr.Body.String())
	}
	if got := decodeTask(t, rr); got["running"] != true {
		t.Errorf("expected running=true, got %v", got["running"])
	}

	rr = env.do(t, "POST", "/api/tasks/"+tk.ID+"/restart", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}

	starts := env.runner.Starts()
	if len(starts) != 2 {
		t.Fatalf("expected 2 starts, got %d", len(starts))
	}
	if starts[0].action != pipeline.ActionRetry || starts[1].action != pipeline.ActionRestart {
		t.Errorf("unexpected actions: %+v", starts)
	}
}

func TestRunnerErrorsMapToStatus(t *testing.T) {
	env := newTestEnv(t)
	tk := env.seed(t, task.StatusPolling)

	env.runner.err = pipeline.ErrAlreadyRunning
	rr := env.do(t, "POST", "/api/tasks/"+tk.ID+"/restart", "")
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %s", code)
	}

	env.runner.err = errors.New("boom")
	rr = env.do(t, "POST", "/api/tasks/"+tk.ID+"/retry", "")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for plain errors, got %d", rr.Code)
	}
}

func TestUnknownRoute(t *testing.T) {
	env := newTestEnv(t)
	rr := env.do(t, "GET", "/api/nope", "")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %s", code)
	}
}

type stubComponent struct {
	name   string
	status component.HealthStatus
}

func (s *stubComponent) Name() string                { return s.name }
func (s *stubComponent) Start(context.Context) error { return nil }
func (s *stubComponent) Stop(context.Context) error  { return nil }
func (s *stubComponent) Health(context.Context) component.Health {
	return component.Health{Name: s.name, Status: s.status}
}

func TestHealthz(t *testing.T) {
	tests := []struct {
		name     string
		status   component.HealthStatus
		wantCode int
		want     string
	}{
		{"healthy", component.StatusHealthy, http.StatusOK, "up"},
		{"degraded", component.StatusDegraded, http.StatusOK, "degraded"},
		{"unhealthy", component.StatusUnhealthy, http.StatusServiceUnavailable, "down"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := component.NewRegistry(nil)
			reg.Register(&stubComponent{name: "database", status: component.StatusHealthy})
			reg.Register(&stubComponent{name: "redis", status: tt.status})

			cfg := Config{}
			cfg.ApplyDefaults()
			srv := New(cfg, nil)
			srv.Mount(NewTaskAPI(taskstore.NewMemoryStore(), &fakeRunner{}, nil, nil),
				endpoint.Health("voicememo", "1.0.0", endpoint.Checkers(reg)...))

			rr := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rr, httptest.NewRequest("GET", "/healthz", http.NoBody))
			if rr.Code != tt.wantCode {
				t.Fatalf("expected %d, got %d", tt.wantCode, rr.Code)
			}
			var body map[string]any
			json.Unmarshal(rr.Body.Bytes(), &body)
			if body["status"] != tt.want {
				t.Errorf("expected status %s, got %v", tt.want, body["status"])
			}
			if comps, _ := body["components"].([]any); len(comps) != 2 {
				t.Errorf("expected 2 components, got %v", body["components"])
			}
		})
	}
}

func TestEventStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/events?task_id=task-7")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("expected text/event-stream, got %q", ct)
	}

	lines := make(chan string, 16)
	go func() {
		sc := bufio.NewScanner(resp.Body)
		for sc.Scan() {
			lines <- sc.Text()
		}
		close(lines)
	}()
	next := func() string {
		select {
		case l := <-lines:
			return l
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for stream")
			return ""
		}
	}

	if l := next(); l != "event: connected" {
		t.Fatalf("expected connected frame, got %q", l)
	}
	next() // data
	next() // blank

	sink := sse.NewSink(env.hub)
	sink.Publish(context.Background(), pipeline.Event{Type: pipeline.EventTaskFailed, TaskID: "other"})
	sink.Publish(context.Background(), pipeline.Event{
		Type:   pipeline.EventStepCompleted,
		TaskID: "task-7",
		Status: task.StatusTranscoded,
	})

	if l := next(); l != "event: step_completed" {
		t.Fatalf("expected only the watched task's event, got %q", l)
	}
	data := strings.TrimPrefix(next(), "data: ")
	var ev pipeline.Event
	if err := json.Unmarshal([]byte(data), &ev); err != nil {
		t.Fatalf("bad event payload %q: %v", data, err)
	}
	if ev.TaskID != "task-7" || ev.Status != task.StatusTranscoded {
		t.Errorf("unexpected event %+v", ev)
	}
}

// failingTranscoder rejects every input so runs end at the transcoding step.
type failingTranscoder struct{}

func (failingTranscoder) Probe(context.Context, string) (media.Info, error) {
	return media.Info{}, errors.New("unsupported container")
}

func (failingTranscoder) Transcode(context.Context, string, string) error {
	return errors.New("unreachable")
}

type idleService struct{}

func (idleService) Name() string                     { return "idle" }
func (idleService) IsAvailable(context.Context) bool { return true }
func (idleService) RequiresRemoteURL() bool          { return false }
func (idleService) CreateTask(context.Context, string) (string, error) {
	return "", errors.New("unreachable")
}
func (idleService) GetTaskInfo(context.Context, string) (transcription.TaskInfo, error) {
	return transcription.TaskInfo{}, errors.New("unreachable")
}
func (idleService) FetchJSON(context.Context, string) (map[string]any, error) {
	return nil, errors.New("unreachable")
}

func TestCreateRunsOrchestratorToFailure(t *testing.T) {
	store := taskstore.NewMemoryStore()
	orch := pipeline.New(pipeline.Config{PollingInterval: time.Millisecond}, pipeline.Services{
		Storage:       memory.New("https://oss.example.com"),
		Transcoder:    failingTranscoder{},
		Transcription: idleService{},
	}, store)
	defer orch.Shutdown(context.Background())

	cfg := Config{}
	cfg.ApplyDefaults()
	srv := New(cfg, nil)
	srv.Mount(NewTaskAPI(store, orch, nil, nil), endpoint.Health("voicememo", "test"))

	rr := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/api/tasks", strings.NewReader(`{"recording_id":"rec-1","local_file_path":"/tmp/none/mixed.m4a"}`))
	req.Header.Set("Content-Type", "application/json")
	srv.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	id, _ := decodeTask(t, rr)["id"].(string)

	deadline := time.Now().Add(2 * time.Second)
	for orch.Running(id) && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	got, err := store.Get(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != task.StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if got.FailedStep == nil || *got.FailedStep != task.StatusTranscoding {
		t.Errorf("expected failed step transcoding, got %v", got.FailedStep)
	}
}

func TestServerLifecycle(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	cfg.Port = 0
	comp := New(cfg, nil)

	if h := comp.Health(context.Background()); h.Status != component.StatusUnhealthy {
		t.Errorf("expected unhealthy before start, got %s", h.Status)
	}
	if err := comp.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if h := comp.Health(context.Background()); h.Status != component.StatusHealthy {
		t.Errorf("expected healthy after start, got %s", h.Status)
	}
	if strings.HasSuffix(comp.Addr(), ":0") {
		t.Errorf("expected bound port, got %s", comp.Addr())
	}
	if err := comp.Stop(context.Background()); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	cfg.MaxBodySize = "lots"
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for unparseable body size")
	}
	cfg.MaxBodySize = "1MB"
	cfg.Port = 70000
	cfg.IdleTimeout = -time.Second
	err := cfg.Validate()
	if err == nil || !strings.Contains(err.Error(), "port") || !strings.Contains(err.Error(), "timeouts") {
		t.Errorf("expected both port and timeout errors, got %v", err)
	}
}
