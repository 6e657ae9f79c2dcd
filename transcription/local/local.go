// Package local runs transcription in-process against whisper and pyannote
// sidecars. Tasks live only in memory: after a restart every id is unknown.
package local

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/kbukum/voicememo/diarization"
	"github.com/kbukum/voicememo/diarization/pyannote"
	"github.com/kbukum/voicememo/httpclient"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/provider"
	"github.com/kbukum/voicememo/transcription"
	"github.com/kbukum/voicememo/transcription/whisper"
)

// ProviderName is the registered name for the local backend.
const ProviderName = "local"

// Config holds the local backend configuration.
type Config struct {
	transcription.Features `mapstructure:",squash"`

	Whisper       whisper.Config  `mapstructure:"whisper"`
	Pyannote      pyannote.Config `mapstructure:"pyannote"`
	IdleTimeout   time.Duration   `mapstructure:"idle_timeout"`
	SweepInterval time.Duration   `mapstructure:"sweep_interval"`
}

// ASR recognizes speech in a local file.
type ASR interface {
	Transcribe(ctx context.Context, req whisper.Request) (*whisper.Result, error)
	IsAvailable(ctx context.Context) bool
}

// Option overrides a default collaborator.
type Option func(*Provider)

// WithASR replaces the whisper sidecar client.
func WithASR(asr ASR) Option { return func(p *Provider) { p.asr = asr } }

// WithModelLoader replaces the model loader behind the cache.
func WithModelLoader(l ModelLoader) Option { return func(p *Provider) { p.loader = l } }

// WithDiarizer replaces the pyannote client.
func WithDiarizer(d diarization.Provider) Option { return func(p *Provider) { p.diarizer = d } }

// Provider implements transcription.Service on top of TaskManager.
type Provider struct {
	cfg      Config
	model    string
	asr      ASR
	loader   ModelLoader
	diarizer diarization.Provider
	models   *ModelCache
	tasks    *TaskManager
	fetch    *httpclient.Client
	log      *logger.Logger
}

// NewProvider creates a local backend. Without options it talks to the
// configured whisper and pyannote sidecars.
func NewProvider(cfg Config, opts ...Option) (*Provider, error) {
	p := &Provider{cfg: cfg, tasks: NewTaskManager(), log: logger.WithComponent("local-asr")}
	for _, opt := range opts {
		opt(p)
	}

	if p.asr == nil || p.loader == nil {
		wc, err := whisper.New(cfg.Whisper)
		if err != nil {
			return nil, err
		}
		if p.asr == nil {
			p.asr = wc
		}
		if p.loader == nil {
			p.loader = wc
		}
		p.model = wc.Model()
	}
	if p.model == "" {
		p.model = cfg.Whisper.Model
	}
	if p.model == "" {
		p.model = "base"
	}
	if p.diarizer == nil && cfg.RoleSplit {
		d, err := pyannote.NewProvider(cfg.Pyannote)
		if err != nil {
			return nil, err
		}
		p.diarizer = d
	}

	fetch, err := httpclient.New(httpclient.Config{})
	if err != nil {
		return nil, err
	}
	p.fetch = fetch
	p.models = NewModelCache(p.loader, cfg.IdleTimeout)
	return p, nil
}

// Factory builds local backends from a generic config map.
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

// IsAvailable reports whether the whisper sidecar answers.
func (p *Provider) IsAvailable(ctx context.Context) bool { return p.asr.IsAvailable(ctx) }

// RequiresRemoteURL is false: audio is read from disk.
func (p *Provider) RequiresRemoteURL() bool { return false }

// Models exposes the model cache, e.g. to run its sweeper.
func (p *Provider) Models() *ModelCache { return p.models }

// RunSweeper unloads idle models until ctx is done.
func (p *Provider) RunSweeper(ctx context.Context) {
	p.models.RunSweeper(ctx, p.cfg.SweepInterval)
}

// CreateTask starts transcribing a file:// URL or a plain local path.
func (p *Provider) CreateTask(ctx context.Context, fileURL string) (string, error) {
	path, err := localPath(fileURL)
	if err != nil {
		return "", err
	}

	id := uuid.NewString()
	// The task outlives the request that created it.
	p.tasks.Start(context.WithoutCancel(ctx), id, func(ctx context.Context, partial func(map[string]any)) (map[string]any, error) {
		return p.transcribe(ctx, path, partial)
	})
	p.log.Info("task started", logger.Fields(logger.FieldRemoteTask, id, "path", path, "model", p.model))
	return id, nil
}

// GetTaskInfo reports a task's state from memory.
func (p *Provider) GetTaskInfo(_ context.Context, taskID string) (transcription.TaskInfo, error) {
	return p.tasks.Status(taskID), nil
}

// Cancel stops a running task.
func (p *Provider) Cancel(taskID string) bool { return p.tasks.Cancel(taskID) }

// Wait blocks until a task finishes.
func (p *Provider) Wait(ctx context.Context, taskID string) error {
	return p.tasks.Wait(ctx, taskID)
}

// Close cancels running tasks and unloads every idle model.
func (p *Provider) Close(ctx context.Context) error {
	p.tasks.Close()
	p.models.ReleaseCached(ctx)
	return nil
}

// FetchJSON reads file:// documents from disk and fetches anything else.
func (p *Provider) FetchJSON(ctx context.Context, rawURL string) (map[string]any, error) {
	if !strings.HasPrefix(rawURL, "file://") {
		return transcription.FetchJSON(ctx, p.fetch, rawURL)
	}
	path, err := localPath(rawURL)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, transcription.TaskQueryFailed(err.Error()).WithCause(err)
	}
	var doc map[string]any
	if err := json.Unmarshal(data, &doc); err != nil || doc == nil {
		return nil, transcription.ParseError("Invalid JSON in local file")
	}
	return doc, nil
}

func (p *Provider) transcribe(ctx context.Context, path string, partial func(map[string]any)) (map[string]any, error) {
	if err := p.models.Acquire(ctx, p.model); err != nil {
		return nil, fmt.Errorf("load model %s: %w", p.model, err)
	}
	defer p.models.Release(p.model)

	roleSplit := p.cfg.RoleSplit && p.diarizer != nil
	var (
		asr  *whisper.Result
		diar *diarization.Result
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		res, err := p.asr.Transcribe(gctx, whisper.Request{AudioPath: path, Model: p.model, Language: p.language()})
		if err != nil {
			return err
		}
		asr = res
		if roleSplit {
			partial(Output(res.Text, unknownSpeakers(res.Segments), true))
		}
		return nil
	})
	if roleSplit {
		g.Go(func() error {
			res, err := p.diarizer.Diarize(gctx, diarization.Request{AudioPath: path, NumSpeakers: p.cfg.SpeakerCount})
			if err != nil {
				return err
			}
			diar = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return Output(asr.Text, Fuse(asr.Segments, diar), false), nil
}

// language prefers the sidecar setting, then the task language with the
// Tingwu "cn" code mapped to whisper's "zh".
func (p *Provider) language() string {
	if p.cfg.Whisper.Language != "" {
		return p.cfg.Whisper.Language
	}
	if p.cfg.Language == "cn" {
		return "zh"
	}
	return p.cfg.Language
}

func unknownSpeakers(segments []transcription.Segment) []transcription.Segment {
	out := make([]transcription.Segment, len(segments))
	for i, s := range segments {
		out[i] = s
		out[i].Speaker = unknownSpeaker
	}
	return out
}

// localPath accepts file:// URLs and existing plain paths.
func localPath(fileURL string) (string, error) {
	path := fileURL
	if strings.HasPrefix(fileURL, "file://") {
		u, err := url.Parse(fileURL)
		if err != nil || u.Path == "" {
			return "", transcription.InvalidURL(fileURL)
		}
		path = u.Path
	}
	if info, err := os.Stat(path); err != nil || info.IsDir() {
		return "", transcription.InvalidURL(fileURL)
	}
	return path, nil
}
