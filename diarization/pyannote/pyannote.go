// Package pyannote talks to a pyannote.audio HTTP sidecar.
package pyannote

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/httpclient"
)

const (
	// ProviderName is the registered name for the pyannote backend.
	ProviderName = "pyannote"

	defaultURL     = "http://localhost:8388"
	defaultTimeout = 300 * time.Second
)

// Config holds configuration for the pyannote sidecar.
type Config struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// Provider implements diarization.Provider.
type Provider struct {
	cfg    Config
	client *httpclient.Client
}

// NewProvider creates a pyannote backend.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Provider{cfg: cfg, client: client}, nil
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable checks the sidecar health endpoint.
func (p *Provider) IsAvailable(ctx context.Context) bool {
	resp, err := p.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// Diarize uploads the audio file and returns speaker turns.
func (p *Provider) Diarize(ctx context.Context, req diarization.Request) (*diarization.Result, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	fields := map[string]string{}
	for name, v := range map[string]int{
		"num_speakers": req.NumSpeakers,
		"min_speakers": req.MinSpeakers,
		"max_speakers": req.MaxSpeakers,
	} {
		if v > 0 {
			fields[name] = strconv.Itoa(v)
		}
	}

	out, err := httpclient.DoJSON[response](ctx, p.client, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/diarize",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files:  []httpclient.FileField{{FieldName: "audio", FileName: filepath.Base(req.AudioPath), Data: audio}},
		},
	})
	if err != nil {
		if status, body, ok := httpclient.StatusError(err); ok {
			return nil, fmt.Errorf("diarization error (status %d): %s", status, body)
		}
		return nil, fmt.Errorf("diarization request: %w", err)
	}
	if out.Error != "" {
		return nil, fmt.Errorf("diarization error: %s", out.Error)
	}
	return out.result(), nil
}

type response struct {
	Segments    []segment `json:"segments"`
	NumSpeakers int       `json:"num_speakers"`
	Error       string    `json:"error,omitempty"`
}

type segment struct {
	SpeakerID string  `json:"speaker_id"`
	StartTime float64 `json:"start_time"`
	EndTime   float64 `json:"end_time"`
}

func (r *response) result() *diarization.Result {
	turns := make([]diarization.Turn, len(r.Segments))
	for i, s := range r.Segments {
		turns[i] = diarization.Turn{Speaker: s.SpeakerID, Start: s.StartTime, End: s.EndTime}
	}
	return &diarization.Result{Turns: turns, NumSpeakers: r.NumSpeakers}
}
