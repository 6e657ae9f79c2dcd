package pyannote

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/kbukum/voicememo/diarization"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mixed_48k.m4a")
	if err := os.WriteFile(path, []byte("audio"), 0o644); err != nil {
		t.Fatalf("write audio: %v", err)
	}
	return path
}

func TestDiarize(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/diarize" {
			t.Errorf("expected /diarize, got %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
			return
		}
		if got := r.FormValue("num_speakers"); got != "2" {
			t.Errorf("expected num_speakers 2, got %q", got)
		}
		if _, ok := r.MultipartForm.Value["min_speakers"]; ok {
			t.Error("expected zero min_speakers to be omitted")
		}
		if _, _, err := r.FormFile("audio"); err != nil {
			t.Errorf("expected audio file: %v", err)
		}
		_, _ = w.Write([]byte(`{"num_speakers":2,"segments":[{"speaker_id":"SPEAKER_00","start_time":0,"end_time":1.5},{"speaker_id":"SPEAKER_01","start_time":1.5,"end_time":3}]}`))
	}))
	defer srv.Close()

	p, err := NewProvider(Config{URL: srv.URL})
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	res, err := p.Diarize(context.Background(), diarization.Request{AudioPath: writeAudio(t), NumSpeakers: 2})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.NumSpeakers != 2 || len(res.Turns) != 2 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Turns[1].Speaker != "SPEAKER_01" || res.Turns[1].Start != 1.5 {
		t.Errorf("unexpected second turn: %+v", res.Turns[1])
	}
}

func TestDiarize_SidecarError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"error":"model not loaded"}`))
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{URL: srv.URL})
	if _, err := p.Diarize(context.Background(), diarization.Request{AudioPath: writeAudio(t)}); err == nil {
		t.Error("expected sidecar error")
	}
}

func TestIsAvailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	p, _ := NewProvider(Config{URL: srv.URL})
	if !p.IsAvailable(context.Background()) {
		t.Error("expected sidecar to be available")
	}
	if p.Name() != ProviderName {
		t.Errorf("expected %s, got %s", ProviderName, p.Name())
	}
}
