// Package tingwu is the Aliyun Tingwu offline transcription backend.
package tingwu

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/httpclient"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/provider"
	"github.com/kbukum/voicememo/transcription"
)

const (
	// ProviderName is the registered name for the Tingwu backend.
	ProviderName = "tingwu"

	defaultBaseURL = "https://tingwu.cn-beijing.aliyuncs.com"
	defaultTimeout = 60 * time.Second
	tasksPath      = "/openapi/tingwu/v2/tasks"
)

// Config holds Tingwu credentials and task options.
type Config struct {
	transcription.Features `mapstructure:",squash"`

	AppKey          string        `mapstructure:"app_key"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	AccessKeySecret string        `mapstructure:"access_key_secret"`
	BaseURL         string        `mapstructure:"base_url"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// Provider implements transcription.Service against the Tingwu v2 API.
type Provider struct {
	cfg    Config
	api    *httpclient.Client
	fetch  *httpclient.Client
	signer *Signer
	log    *logger.Logger
}

// NewProvider creates a Tingwu backend.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.Language == "" {
		cfg.Language = "cn"
	}

	signer := &Signer{AccessKeyID: cfg.AccessKeyID, AccessKeySecret: cfg.AccessKeySecret}
	api, err := httpclient.New(httpclient.Config{
		BaseURL: cfg.BaseURL,
		Timeout: cfg.Timeout,
		Auth:    httpclient.SignerAuth(signer.Sign),
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
		api:    api,
		fetch:  fetch,
		signer: signer,
		log:    logger.WithComponent("tingwu"),
	}, nil
}

// Factory returns a provider.Factory that builds Tingwu backends from a
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

// IsAvailable reports whether credentials are configured.
func (p *Provider) IsAvailable(context.Context) bool {
	return p.cfg.AppKey != "" && p.cfg.AccessKeyID != "" && p.cfg.AccessKeySecret != ""
}

// RequiresRemoteURL is true: Tingwu downloads the audio itself.
func (p *Provider) RequiresRemoteURL() bool { return true }

type createTaskRequest struct {
	AppKey     string         `json:"AppKey"`
	Input      taskInput      `json:"Input"`
	Parameters taskParameters `json:"Parameters"`
}

type taskInput struct {
	FileURL        string `json:"FileUrl"`
	SourceLanguage string `json:"SourceLanguage"`
}

type taskParameters struct {
	AutoChaptersEnabled      bool                `json:"AutoChaptersEnabled"`
	Transcoding              transcodingParams   `json:"Transcoding"`
	SummarizationEnabled     bool                `json:"SummarizationEnabled,omitempty"`
	Summarization            *typesParam         `json:"Summarization,omitempty"`
	MeetingAssistanceEnabled bool                `json:"MeetingAssistanceEnabled,omitempty"`
	MeetingAssistance        *typesParam         `json:"MeetingAssistance,omitempty"`
	Transcription            *transcriptionParam `json:"Transcription,omitempty"`
}

type transcodingParams struct {
	TargetAudioFormat string `json:"TargetAudioFormat"`
	SpectrumEnabled   bool   `json:"SpectrumEnabled"`
}

type typesParam struct {
	Types []string `json:"Types"`
}

type transcriptionParam struct {
	DiarizationEnabled bool             `json:"DiarizationEnabled"`
	Diarization        diarizationParam `json:"Diarization"`
}

type diarizationParam struct {
	SpeakerCount int `json:"SpeakerCount"`
}

type createTaskResponse struct {
	Code    string `json:"Code"`
	Message string `json:"Message"`
	Data    struct {
		TaskID  string `json:"TaskId"`
		TaskKey string `json:"TaskKey"`
	} `json:"Data"`
}

// buildCreateRequest maps the configured features onto the task body.
func (p *Provider) buildCreateRequest(fileURL string) createTaskRequest {
	params := taskParameters{
		AutoChaptersEnabled: true,
		Transcoding:         transcodingParams{TargetAudioFormat: "m4a"},
	}
	f := p.cfg.Features
	if f.Summary {
		params.SummarizationEnabled = true
		params.Summarization = &typesParam{Types: []string{"Paragraph", "Conversational", "QuestionsAnswering", "MindMap"}}
	}
	if f.KeyPoints || f.ActionItems {
		var types []string
		if f.KeyPoints {
			types = append(types, "KeyInformation")
		}
		if f.ActionItems {
			types = append(types, "Actions")
		}
		params.MeetingAssistanceEnabled = true
		params.MeetingAssistance = &typesParam{Types: types}
	}
	if f.RoleSplit {
		// SpeakerCount 0 lets the service detect the number of speakers.
		params.Transcription = &transcriptionParam{
			DiarizationEnabled: true,
			Diarization:        diarizationParam{SpeakerCount: f.SpeakerCount},
		}
	}
	return createTaskRequest{
		AppKey:     p.cfg.AppKey,
		Input:      taskInput{FileURL: fileURL, SourceLanguage: f.Language},
		Parameters: params,
	}
}

// CreateTask submits an offline task for fileURL.
func (p *Provider) CreateTask(ctx context.Context, fileURL string) (string, error) {
	if p.cfg.AppKey == "" {
		return "", transcription.TaskCreationFailed("Missing AppKey")
	}
	if p.cfg.AccessKeyID == "" || p.cfg.AccessKeySecret == "" {
		return "", transcription.InvalidCredentials()
	}

	resp, err := p.api.Do(ctx, httpclient.Request{
		Method:  http.MethodPut,
		Path:    tasksPath,
		Query:   map[string]string{"type": "offline"},
		Headers: map[string]string{"x-acs-action": "CreateTask"},
		Body:    p.buildCreateRequest(fileURL),
	})
	if err != nil {
		return "", creationError(resp, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", transcription.TaskCreationFailed(string(resp.Body))
	}

	var out createTaskResponse
	if err := json.Unmarshal(resp.Body, &out); err != nil {
		return "", transcription.ParseError(err.Error())
	}
	if out.Data.TaskID == "" {
		return "", transcription.TaskCreationFailed("TaskId not found in response")
	}
	p.log.Info("task created", logger.Fields(logger.FieldRemoteTask, out.Data.TaskID, "task_key", out.Data.TaskKey))
	return out.Data.TaskID, nil
}

// GetTaskInfo polls a task and normalizes its TaskStatus.
func (p *Provider) GetTaskInfo(ctx context.Context, taskID string) (transcription.TaskInfo, error) {
	if p.cfg.AccessKeyID == "" || p.cfg.AccessKeySecret == "" {
		return transcription.TaskInfo{}, transcription.InvalidCredentials()
	}

	resp, err := p.api.Do(ctx, httpclient.Request{
		Method:  http.MethodGet,
		Path:    tasksPath + "/" + url.PathEscape(taskID),
		Headers: map[string]string{"x-acs-action": "GetTaskInfo"},
	})
	if err != nil {
		if appErr, ok := errors.AsAppError(err); ok {
			return transcription.TaskInfo{}, appErr
		}
		if resp != nil {
			return transcription.TaskInfo{}, transcription.TaskQueryFailed(string(resp.Body)).WithCause(err)
		}
		return transcription.TaskInfo{}, transcription.TaskQueryFailed(err.Error()).WithCause(err)
	}

	var doc map[string]any
	if err := json.Unmarshal(resp.Body, &doc); err != nil {
		return transcription.TaskInfo{}, transcription.ParseError(err.Error())
	}
	data, _ := doc["Data"].(map[string]any)
	status, _ := data["TaskStatus"].(string)
	if data == nil || status == "" {
		return transcription.TaskInfo{}, transcription.ParseError("Invalid status response")
	}

	for outer, inner := range map[string]string{"Message": "_OuterMessage", "Code": "_OuterCode", "RequestId": "_RequestId"} {
		if v, ok := doc[outer].(string); ok {
			data[inner] = v
		}
	}

	p.log.Debug("task polled", logger.Fields(logger.FieldRemoteTask, taskID, "task_status", status))
	return transcription.TaskInfo{Status: normalize(status), RawStatus: status, Data: data}, nil
}

// FetchJSON downloads a result document. Result URLs are presigned, so the
// request is not signed.
func (p *Provider) FetchJSON(ctx context.Context, rawURL string) (map[string]any, error) {
	return transcription.FetchJSON(ctx, p.fetch, rawURL)
}

func normalize(status string) transcription.NormalizedStatus {
	switch strings.ToUpper(status) {
	case "SUCCESS", "COMPLETED":
		return transcription.StatusSuccess
	case "FAILED":
		return transcription.StatusFailed
	default:
		return transcription.StatusRunning
	}
}

func creationError(resp *httpclient.Response, err error) error {
	if appErr, ok := errors.AsAppError(err); ok {
		return appErr
	}
	if resp != nil {
		return transcription.TaskCreationFailed(string(resp.Body)).WithCause(err)
	}
	return transcription.TaskCreationFailed(err.Error()).WithCause(err)
}
