// Package whisper talks to a faster-whisper HTTP sidecar.
package whisper

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/kbukum/voicememo/httpclient"
	"github.com/kbukum/voicememo/transcription"
)

const (
	defaultURL     = "http://localhost:8387"
	defaultModel   = "base"
	defaultTimeout = 600 * time.Second
)

// Config holds configuration for the whisper sidecar.
type Config struct {
	URL         string        `mapstructure:"url"`
	Model       string        `mapstructure:"model"`
	Language    string        `mapstructure:"language"`
	Device      string        `mapstructure:"device"`
	ComputeType string        `mapstructure:"compute_type"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Request is one transcription call.
type Request struct {
	AudioPath string
	// Model and Language override the configured defaults when set.
	Model    string
	Language string
}

// Result is the sidecar output.
type Result struct {
	Text     string                  `json:"text"`
	Segments []transcription.Segment `json:"segments"`
	Language string                  `json:"language"`
	Duration float64                 `json:"duration"`
}

// Client is a whisper sidecar client.
type Client struct {
	cfg    Config
	client *httpclient.Client
}

// New creates a whisper sidecar client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		cfg.URL = defaultURL
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client, err := httpclient.New(httpclient.Config{BaseURL: cfg.URL, Timeout: cfg.Timeout})
	if err != nil {
		return nil, err
	}
	return &Client{cfg: cfg, client: client}, nil
}

// Model returns the configured default model.
func (c *Client) Model() string { return c.cfg.Model }

// IsAvailable checks the sidecar health endpoint.
func (c *Client) IsAvailable(ctx context.Context) bool {
	resp, err := c.client.Do(ctx, httpclient.Request{Method: http.MethodGet, Path: "/health"})
	return err == nil && resp.StatusCode == http.StatusOK
}

// LoadModel asks the sidecar to load name into memory.
func (c *Client) LoadModel(ctx context.Context, name string) error {
	return c.modelCall(ctx, "/models/load", name)
}

// UnloadModel asks the sidecar to free name.
func (c *Client) UnloadModel(ctx context.Context, name string) error {
	return c.modelCall(ctx, "/models/unload", name)
}

func (c *Client) modelCall(ctx context.Context, path, name string) error {
	fields := map[string]string{"model": name}
	if c.cfg.Device != "" {
		fields["device"] = c.cfg.Device
	}
	if c.cfg.ComputeType != "" {
		fields["compute_type"] = c.cfg.ComputeType
	}
	resp, err := c.client.Do(ctx, httpclient.Request{
		Method: http.MethodPost,
		Path:   path,
		Body:   &httpclient.MultipartBody{Fields: fields},
	})
	if err != nil {
		if resp != nil {
			return fmt.Errorf("whisper %s %s (status %d): %s", path, name, resp.StatusCode, resp.Body)
		}
		return fmt.Errorf("whisper %s %s: %w", path, name, err)
	}
	return nil
}

// Transcribe uploads the audio file and returns the recognized segments.
func (c *Client) Transcribe(ctx context.Context, req Request) (*Result, error) {
	audio, err := os.ReadFile(req.AudioPath)
	if err != nil {
		return nil, fmt.Errorf("read audio file: %w", err)
	}

	model := c.cfg.Model
	if req.Model != "" {
		model = req.Model
	}
	lang := c.cfg.Language
	if req.Language != "" {
		lang = req.Language
	}

	fields := map[string]string{"model": model}
	if lang != "" {
		fields["language"] = lang
	}

	out, err := httpclient.DoJSON[Result](ctx, c.client, httpclient.Request{
		Method: http.MethodPost,
		Path:   "/transcribe",
		Body: &httpclient.MultipartBody{
			Fields: fields,
			Files:  []httpclient.FileField{{FieldName: "audio", FileName: filepath.Base(req.AudioPath), Data: audio}},
		},
	})
	if err != nil {
		if status, body, ok := httpclient.StatusError(err); ok {
			return nil, fmt.Errorf("whisper error (status %d): %s", status, body)
		}
		return nil, fmt.Errorf("whisper transcribe: %w", err)
	}
	if out.Duration == 0 && len(out.Segments) > 0 {
		out.Duration = out.Segments[len(out.Segments)-1].End
	}
	return &out, nil
}
