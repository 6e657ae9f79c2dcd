package tingwu

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/transcription"
)

func newTestProvider(t *testing.T, url string, f transcription.Features) *Provider {
	t.Helper()
	p, err := NewProvider(Config{
		Features:        f,
		AppKey:          "app",
		AccessKeyID:     "ak",
		AccessKeySecret: "secret",
		BaseURL:         url,
	})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	return p
}

func TestCreateTask(t *testing.T) {
	var body map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || r.URL.Path != "/openapi/tingwu/v2/tasks" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.URL.RawQuery != "type=offline" {
			t.Errorf("expected type=offline, got %s", r.URL.RawQuery)
		}
		if r.Header.Get("x-acs-action") != "CreateTask" {
			t.Errorf("expected CreateTask action, got %s", r.Header.Get("x-acs-action"))
		}
		if !strings.HasPrefix(r.Header.Get("Authorization"), "ACS3-HMAC-SHA256 Credential=ak,") {
			t.Errorf("expected signed request, got %q", r.Header.Get("Authorization"))
		}
		raw, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(raw, &body)
		_, _ = w.Write([]byte(`{"Code":"0","Data":{"TaskId":"tw-1","TaskKey":"key"}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, transcription.Features{
		Language: "cn", Summary: true, KeyPoints: true, RoleSplit: true, SpeakerCount: 2,
	})
	id, err := p.CreateTask(context.Background(), "https://bucket/audio.m4a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "tw-1" {
		t.Errorf("expected tw-1, got %s", id)
	}

	if body["AppKey"] != "app" {
		t.Errorf("expected AppKey app, got %v", body["AppKey"])
	}
	input := body["Input"].(map[string]any)
	if input["FileUrl"] != "https://bucket/audio.m4a" || input["SourceLanguage"] != "cn" {
		t.Errorf("unexpected input: %v", input)
	}
	params := body["Parameters"].(map[string]any)
	if params["SummarizationEnabled"] != true || params["MeetingAssistanceEnabled"] != true {
		t.Errorf("expected summarization and meeting assistance, got %v", params)
	}
	types := params["MeetingAssistance"].(map[string]any)["Types"].([]any)
	if len(types) != 1 || types[0] != "KeyInformation" {
		t.Errorf("expected [KeyInformation], got %v", types)
	}
	diar := params["Transcription"].(map[string]any)["Diarization"].(map[string]any)
	if diar["SpeakerCount"] != float64(2) {
		t.Errorf("expected SpeakerCount 2, got %v", diar["SpeakerCount"])
	}
	transcoding := params["Transcoding"].(map[string]any)
	if transcoding["TargetAudioFormat"] != "m4a" || transcoding["SpectrumEnabled"] != false {
		t.Errorf("unexpected transcoding params: %v", transcoding)
	}
}

func TestCreateTask_FeaturesOff(t *testing.T) {
	p := newTestProvider(t, "http://unused", transcription.Features{})
	req := p.buildCreateRequest("u")
	if req.Parameters.Summarization != nil || req.Parameters.MeetingAssistance != nil || req.Parameters.Transcription != nil {
		t.Errorf("expected no optional parameters, got %+v", req.Parameters)
	}
	if !req.Parameters.AutoChaptersEnabled {
		t.Error("expected AutoChaptersEnabled")
	}
}

func TestCreateTask_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"Code":"InvalidParameter"}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, transcription.Features{})
	_, err := p.CreateTask(context.Background(), "u")
	if !errors.HasCode(err, errors.ErrCodeTaskCreationFailed) {
		t.Fatalf("expected TASK_CREATION_FAILED, got %v", err)
	}
	if !strings.Contains(errors.Message(err), "InvalidParameter") {
		t.Errorf("expected body in message, got %s", errors.Message(err))
	}

	noKey := newTestProvider(t, srv.URL, transcription.Features{})
	noKey.cfg.AppKey = ""
	if _, err := noKey.CreateTask(context.Background(), "u"); !errors.HasCode(err, errors.ErrCodeTaskCreationFailed) {
		t.Errorf("expected missing AppKey to fail creation, got %v", err)
	}

	noSecret, _ := NewProvider(Config{AppKey: "app", AccessKeyID: "ak", BaseURL: srv.URL})
	if _, err := noSecret.CreateTask(context.Background(), "u"); !errors.HasCode(err, errors.ErrCodeInvalidCredentials) {
		t.Errorf("expected INVALID_CREDENTIALS, got %v", err)
	}
}

func TestCreateTask_MissingTaskID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"Code":"0","Data":{}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, transcription.Features{})
	if _, err := p.CreateTask(context.Background(), "u"); !errors.HasCode(err, errors.ErrCodeTaskCreationFailed) {
		t.Errorf("expected TASK_CREATION_FAILED, got %v", err)
	}
}

func TestGetTaskInfo(t *testing.T) {
	statuses := map[string]transcription.NormalizedStatus{
		"ONGOING":   transcription.StatusRunning,
		"QUEUEING":  transcription.StatusRunning,
		"SUCCESS":   transcription.StatusSuccess,
		"COMPLETED": transcription.StatusSuccess,
		"FAILED":    transcription.StatusFailed,
	}
	for raw, expected := range statuses {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet || r.URL.Path != "/openapi/tingwu/v2/tasks/tw-1" {
				t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			}
			if r.Header.Get("x-acs-action") != "GetTaskInfo" {
				t.Errorf("expected GetTaskInfo action, got %s", r.Header.Get("x-acs-action"))
			}
			_, _ = w.Write([]byte(`{"Code":"0","Message":"ok","RequestId":"req-9","Data":{"TaskId":"tw-1","TaskStatus":"` + raw + `"}}`))
		}))

		p := newTestProvider(t, srv.URL, transcription.Features{})
		info, err := p.GetTaskInfo(context.Background(), "tw-1")
		srv.Close()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", raw, err)
		}
		if info.Status != expected {
			t.Errorf("%s: expected %s, got %s", raw, expected, info.Status)
		}
		if info.RawStatus != raw {
			t.Errorf("expected raw status %s, got %s", raw, info.RawStatus)
		}
		if info.Data["_OuterMessage"] != "ok" || info.Data["_OuterCode"] != "0" || info.Data["_RequestId"] != "req-9" {
			t.Errorf("expected outer fields injected, got %v", info.Data)
		}
	}
}

func TestGetTaskInfo_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/gone") {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"Code":"TaskNotFound"}`))
			return
		}
		_, _ = w.Write([]byte(`{"Data":{}}`))
	}))
	defer srv.Close()

	p := newTestProvider(t, srv.URL, transcription.Features{})
	if _, err := p.GetTaskInfo(context.Background(), "gone"); !errors.HasCode(err, errors.ErrCodeTaskQueryFailed) {
		t.Errorf("expected TASK_QUERY_FAILED, got %v", err)
	}
	if _, err := p.GetTaskInfo(context.Background(), "empty"); !errors.HasCode(err, errors.ErrCodeParseError) {
		t.Errorf("expected PARSE_ERROR, got %v", err)
	}
}

func TestFactory(t *testing.T) {
	svc, err := Factory()(map[string]any{
		"app_key":           "app",
		"access_key_id":     "ak",
		"access_key_secret": "secret",
		"summary":           true,
		"timeout":           "30s",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if svc.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, svc.Name())
	}
	if !svc.RequiresRemoteURL() {
		t.Error("expected tingwu to require a remote URL")
	}
	if !svc.IsAvailable(context.Background()) {
		t.Error("expected configured provider to be available")
	}
	if !svc.(*Provider).cfg.Summary {
		t.Error("expected summary feature decoded")
	}
}
