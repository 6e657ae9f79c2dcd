// Package volcengine is the Volcengine big-model offline ASR backend.
package volcengine

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/httpclient"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/provider"
	"github.com/kbukum/voicememo/transcription"
)

const (
	// ProviderName is the registered name for the Volcengine backend.
	ProviderName = "volcengine"

	defaultBaseURL    = "https://openspeech.bytedance.com/api/v3/auc/bigmodel"
	defaultResourceID = "volc.bigasr.auc"
	defaultTimeout    = 60 * time.Second
)

// Config holds Volcengine credentials.
type Config struct {
	transcription.Features `mapstructure:",squash"`

	AppID       string        `mapstructure:"app_id"`
	AccessToken string        `mapstructure:"access_token"`
	ResourceID  string        `mapstructure:"resource_id"`
	BaseURL     string        `mapstructure:"base_url"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// Provider implements transcription.Service. The task id is the request id
// sent with submit.
type Provider struct {
	cfg    Config
	client *httpclient.Client
	fetch  *httpclient.Client
	log    *logger.Logger
	newID  func() string
}

// NewProvider creates a Volcengine backend.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.ResourceID == "" {
		cfg.ResourceID = defaultResourceID
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	client, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Auth: httpclient.HeaderAuth(map[string]string{
			"X-Api-App-Key":     cfg.AppID,
			"X-Api-Access-Key":  cfg.AccessToken,
			"X-Api-Resource-Id": cfg.ResourceID,
		}),
	})
	if err != nil {
		return nil, err
	}
	fetch, err := httpclient.New(httpclient.Config{Timeout: cfg.Timeout, Retry: httpclient.DefaultRetryConfig()})
	if err != nil {
		return nil, err
	}
	return &Provider{
		cfg:    cfg,
		client: client,
		fetch:  fetch,
		log:    logger.WithComponent("volcengine"),
		newID:  uuid.NewString,
	}, nil
}

// Factory returns a provider.Factory that builds Volcengine backends from a
// generic config map.
func Factory() provider.Factory[transcription.Service] {
	return func(m map[string]any) (transcription.Service, error) {
		var cfg Config
		if err := transcription.Decode(m, &cfg); err != nil {
			return nil, err
		}
		return NewProvider(cfg)
	}
}

// Name returns the provider name.
func (p *Provider) Name() string { return ProviderName }

// IsAvailable reports whether an access token is configured.
func (p *Provider) IsAvailable(context.Context) bool { return p.cfg.AccessToken != "" }

// RequiresRemoteURL is true: the service downloads the audio itself.
func (p *Provider) RequiresRemoteURL() bool { return true }

type submitRequest struct {
	User    submitUser    `json:"user"`
	Audio   submitAudio   `json:"audio"`
	Request submitOptions `json:"request"`
}

type submitUser struct {
	UID string `json:"uid"`
}

type submitAudio struct {
	URL    string `json:"url"`
	Format string `json:"format"`
}

type submitOptions struct {
	ModelName         string `json:"model_name"`
	EnableSpeakerInfo bool   `json:"enable_speaker_info"`
	EnableITN         bool   `json:"enable_itn"`
	EnablePunc        bool   `json:"enable_punc"`
	SSDVersion        string `json:"ssd_version"`
}

// CreateTask submits fileURL. A 200 response means the task was accepted.
func (p *Provider) CreateTask(ctx context.Context, fileURL string) (string, error) {
	if p.cfg.AccessToken == "" {
		return "", transcription.InvalidCredentials()
	}

	requestID := p.newID()
	resp, err := p.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    "/submit",
		Headers: p.requestHeaders(requestID),
		Body: submitRequest{
			User:  submitUser{UID: requestID},
			Audio: submitAudio{URL: fileURL, Format: audioFormat(fileURL)},
			Request: submitOptions{
				ModelName:         "bigmodel",
				EnableSpeakerInfo: true,
				EnableITN:         true,
				EnablePunc:        true,
				SSDVersion:        "200",
			},
		},
	})
	if resp != nil && resp.StatusCode == http.StatusOK {
		p.log.Info("task submitted", logger.Fields(logger.FieldRemoteTask, requestID))
		return requestID, nil
	}
	if resp != nil {
		return "", transcription.TaskCreationFailed(fmt.Sprintf("Volcengine Error %d: %s", resp.StatusCode, resp.Body))
	}
	return "", transcription.TaskCreationFailed(errors.Message(err)).WithCause(err)
}

// GetTaskInfo queries a submitted task. The status is inferred from the
// result content: text, utterances or a known duration mean success.
func (p *Provider) GetTaskInfo(ctx context.Context, taskID string) (transcription.TaskInfo, error) {
	if p.cfg.AccessToken == "" {
		return transcription.TaskInfo{}, transcription.InvalidCredentials()
	}

	resp, err := p.client.Do(ctx, httpclient.Request{
		Method:  http.MethodPost,
		Path:    "/query",
		Headers: p.requestHeaders(taskID),
		Body:    map[string]any{},
	})
	if err != nil || resp.StatusCode != http.StatusOK {
		if resp != nil {
			return transcription.TaskInfo{}, transcription.TaskQueryFailed("HTTP Error: " + string(resp.Body))
		}
		return transcription.TaskInfo{}, transcription.TaskQueryFailed(errors.Message(err)).WithCause(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return transcription.TaskInfo{}, transcription.TaskQueryFailed("Invalid JSON response")
	}

	info := transcription.TaskInfo{RawStatus: resp.Headers["X-Api-Status-Code"]}
	result, ok := doc["result"].(map[string]any)
	if !ok {
		info.Status = transcription.StatusFailed
		info.Data = doc
		return info, nil
	}

	text, _ := result["text"].(string)
	utterances, _ := result["utterances"].([]any)
	if text != "" || len(utterances) > 0 || duration(doc) > 0 {
		info.Status = transcription.StatusSuccess
		info.Data = doc
	} else {
		info.Status = transcription.StatusRunning
	}
	p.log.Debug("task polled", logger.Fields(logger.FieldRemoteTask, taskID, "normalized", string(info.Status)))
	return info, nil
}

// FetchJSON downloads a JSON document without credentials.
func (p *Provider) FetchJSON(ctx context.Context, rawURL string) (map[string]any, error) {
	return transcription.FetchJSON(ctx, p.fetch, rawURL)
}

func (p *Provider) requestHeaders(requestID string) map[string]string {
	return map[string]string{
		"X-Api-Request-Id": requestID,
		"X-Api-Sequence":   "-1",
	}
}

func duration(doc map[string]any) float64 {
	info, _ := doc["audio_info"].(map[string]any)
	d, _ := info["duration"].(float64)
	return d
}

// audioFormat infers the submit format from the URL extension.
func audioFormat(fileURL string) string {
	p := fileURL
	if u, err := url.Parse(fileURL); err == nil {
		p = u.Path
	}
	switch ext := strings.ToLower(strings.TrimPrefix(path.Ext(p), ".")); ext {
	case "wav", "ogg", "mp3", "mp4":
		return ext
	default:
		return "m4a"
	}
}
