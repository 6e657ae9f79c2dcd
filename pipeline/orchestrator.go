package pipeline

import (
	"context"
	stderrors "errors"
	"net/http"
	"sync"
	"time"

	"github.com/kbukum/voicememo/errors"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/resilience"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/taskstore"
)

// ErrAlreadyRunning is returned when a run for the same task id is in
// progress.
var ErrAlreadyRunning = errors.New(errors.ErrCodeConflict, "Task is already running", http.StatusConflict)

// PollingTimeout is the terminal error once the poll ceiling is reached.
func PollingTimeout() *errors.AppError {
	return errors.New(errors.ErrCodeTimeout, "Polling timeout", http.StatusGatewayTimeout)
}

// Config configures the orchestrator.
type Config struct {
	Board BoardConfig `yaml:",inline" mapstructure:",squash"`
	// MaxPollingRetries is the number of polls after the first one.
	MaxPollingRetries int           `yaml:"max_polling_retries" mapstructure:"max_polling_retries" validate:"gte=0"`
	PollingInterval   time.Duration `yaml:"polling_interval" mapstructure:"polling_interval"`
	// Tracing wraps every node in a span.
	Tracing bool `yaml:"tracing" mapstructure:"tracing"`
}

// DefaultMaxPollingRetries allows ten minutes of polling at the default
// interval.
const DefaultMaxPollingRetries = 120

// DefaultConfig is the configuration that decoding starts from. Zero
// MaxPollingRetries is a valid setting (poll once), so its default lives
// here rather than in ApplyDefaults.
func DefaultConfig() Config {
	cfg := Config{MaxPollingRetries: DefaultMaxPollingRetries}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills in zero-value fields that have no meaningful zero.
func (c *Config) ApplyDefaults() {
	if c.PollingInterval == 0 {
		c.PollingInterval = 5 * time.Second
	}
	if c.Board.SpeakerCount == 0 {
		c.Board.SpeakerCount = 2
	}
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithBus publishes events on b instead of a private bus.
func WithBus(b *Bus) Option { return func(o *Orchestrator) { o.bus = b } }

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option { return func(o *Orchestrator) { o.log = l } }

// WithMetrics records node and poll metrics.
func WithMetrics(m *observability.Metrics) Option { return func(o *Orchestrator) { o.metrics = m } }

// Orchestrator drives tasks through their node chain, persisting the task
// after every step. Distinct tasks may run concurrently; a task id runs at
// most once at a time.
type Orchestrator struct {
	cfg      Config
	services Services
	store    taskstore.Store
	bus      *Bus
	log      *logger.Logger
	metrics  *observability.Metrics

	mu      sync.Mutex
	running map[string]*activeRun
	wg      sync.WaitGroup
}

// activeRun is the slot a task id holds while it runs. stopped closes after
// the run's last save.
type activeRun struct {
	cancel  context.CancelFunc
	stopped chan struct{}
}

// New creates an orchestrator. cfg is used as given; call ApplyDefaults
// first for production settings.
func New(cfg Config, services Services, store taskstore.Store, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cfg:      cfg,
		services: services,
		store:    store,
		running:  make(map[string]*activeRun),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.log == nil {
		o.log = logger.Nop()
	}
	o.log = o.log.WithComponent("pipeline")
	if o.bus == nil {
		o.bus = NewBus(o.log)
	}
	return o
}

// Bus returns the event bus the orchestrator publishes on.
func (o *Orchestrator) Bus() *Bus { return o.bus }

// Action selects what a run does with a task.
type Action int

const (
	// ActionRun resumes the task from its current status.
	ActionRun Action = iota
	// ActionRetry resumes a failed task at its failed step.
	ActionRetry
	// ActionRestart clears derived fields and runs the whole chain.
	ActionRestart
)

// Run drives t from its resume point to the end of its chain. Terminal
// failures are persisted on t and returned. On cancellation the last
// persisted state is left as is and ctx.Err() is returned.
func (o *Orchestrator) Run(ctx context.Context, t *task.Task) error {
	return o.Do(ctx, t, ActionRun)
}

// Retry resumes a failed task at its failed step, or at recorded when no
// step was recorded.
func (o *Orchestrator) Retry(ctx context.Context, t *task.Task) error {
	return o.Do(ctx, t, ActionRetry)
}

// RestartFromBeginning clears everything the pipeline produced and runs
// the whole chain again.
func (o *Orchestrator) RestartFromBeginning(ctx context.Context, t *task.Task) error {
	return o.Do(ctx, t, ActionRestart)
}

// Do performs action on t and blocks until the run ends.
func (o *Orchestrator) Do(ctx context.Context, t *task.Task, action Action) error {
	if err := checkAction(t, action); err != nil {
		return err
	}
	ctx, release, err := o.acquire(ctx, t.ID)
	if err != nil {
		return err
	}
	defer release()
	return o.perform(ctx, t, action)
}

// Start performs action on t in the background, detached from the
// caller's cancellation. It returns ErrAlreadyRunning without starting
// anything when t is busy. The caller must not use t afterwards.
func (o *Orchestrator) Start(ctx context.Context, t *task.Task, action Action) error {
	if err := checkAction(t, action); err != nil {
		return err
	}
	runCtx, release, err := o.acquire(context.WithoutCancel(ctx), t.ID)
	if err != nil {
		return err
	}

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer release()
		if err := o.perform(runCtx, t, action); err != nil && !stderrors.Is(err, context.Canceled) {
			o.log.Debug("background run ended with error", logger.Fields(
				logger.FieldTaskID, t.ID,
				logger.FieldError, err.Error(),
			))
		}
	}()
	return nil
}

// Running reports whether a run for id is in progress.
func (o *Orchestrator) Running(id string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	_, ok := o.running[id]
	return ok
}

// Cancel stops the run for id. ok reports whether one was running; stopped
// closes once that run has returned and will not touch the store again.
func (o *Orchestrator) Cancel(id string) (stopped <-chan struct{}, ok bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	run, ok := o.running[id]
	if !ok {
		return nil, false
	}
	run.cancel()
	return run.stopped, true
}

// Shutdown cancels every run and waits for background runs to return or
// ctx to end.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	for _, run := range o.running {
		run.cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func checkAction(t *task.Task, action Action) error {
	if action == ActionRetry && t.Status != task.StatusFailed {
		return errors.Conflict("Only failed tasks can be retried")
	}
	return nil
}

// acquire claims the single-flight slot for id.
func (o *Orchestrator) acquire(ctx context.Context, id string) (context.Context, func(), error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.running[id]; busy {
		return nil, nil, ErrAlreadyRunning
	}
	ctx, cancel := context.WithCancel(ctx)
	run := &activeRun{cancel: cancel, stopped: make(chan struct{})}
	o.running[id] = run
	return ctx, func() {
		cancel()
		o.mu.Lock()
		delete(o.running, id)
		o.mu.Unlock()
		close(run.stopped)
	}, nil
}

func (o *Orchestrator) perform(ctx context.Context, t *task.Task, action Action) error {
	switch action {
	case ActionRetry:
		t.RetryCount++
		o.log.Info("retry requested", logger.Fields(
			logger.FieldTaskID, t.ID,
			logger.FieldStep, string(t.ResumePoint()),
			logger.FieldAttempt, t.RetryCount,
		))
	case ActionRestart:
		t.ResetDerived()
		t.RetryCount++
		if err := o.save(ctx, t); err != nil {
			return err
		}
		o.log.Info("restart requested", logger.Fields(logger.FieldTaskID, t.ID))
	}
	return o.execute(ctx, t, false)
}

func (o *Orchestrator) execute(ctx context.Context, t *task.Task, recovered bool) error {
	if t.Mode == task.ModeSeparated {
		return errors.InvalidInput("mode", "separated recordings are not supported")
	}

	start := t.ResumePoint()
	chain := Chain(start, ChainOptions{
		Channel:        MixedChannel,
		RemoteURL:      o.services.Transcription.RequiresRemoteURL(),
		UploadOriginal: o.cfg.Board.UploadOriginal,
	})
	if len(chain) == 0 {
		return nil
	}

	log := o.log.WithFields(logger.Fields(
		logger.FieldTaskID, t.ID,
		logger.FieldRecordingID, t.RecordingID,
		logger.FieldProvider, o.services.Transcription.Name(),
	))
	log.Info("pipeline started", logger.Fields(logger.FieldStep, string(start), "nodes", len(chain)))

	ctx, span := observability.StartSpan(ctx, observability.SpanPipelineRun)
	defer span.End()
	observability.SetSpanAttribute(ctx, observability.AttrTaskID, t.ID)
	observability.SetSpanAttribute(ctx, observability.AttrProvider, o.services.Transcription.Name())

	board := NewBoard(t, o.cfg.Board)
	for _, node := range chain {
		if err := ctx.Err(); err != nil {
			return err
		}

		t.MarkRunning(node.Step())
		if err := o.save(ctx, t); err != nil {
			return err
		}
		o.publish(ctx, Event{Type: EventStatusChanged, TaskID: t.ID, Status: t.Status, Step: node.Step()})

		err := o.runNode(ctx, t, board, node)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				log.Info("pipeline cancelled", logger.Fields(logger.FieldStep, string(node.Step())))
				return ctxErr
			}

			if node.Step() == task.StatusPolling && !recovered &&
				!o.services.Transcription.RequiresRemoteURL() && isTaskNotFound(err) {
				log.Warn("local task lost, creating it again", logger.Fields(logger.FieldRemoteTask, t.TaskID))
				t.TaskID = ""
				t.APIStatus = ""
				t.Advance(task.StatusTranscoded)
				if err := o.save(ctx, t); err != nil {
					return err
				}
				return o.execute(ctx, t, true)
			}

			Merge(t, board)
			t.Fail(node.Step(), errors.Message(err))
			observability.SetSpanError(ctx, err)
			log.Error("pipeline failed", logger.Fields(
				logger.FieldStep, string(node.Step()),
				logger.FieldError, t.LastError,
			))
			if saveErr := o.save(ctx, t); saveErr != nil {
				return saveErr
			}
			o.publish(ctx, Event{Type: EventTaskFailed, TaskID: t.ID, Status: t.Status, Step: node.Step(), Error: t.LastError})
			return err
		}

		Merge(t, board)
		t.Advance(completedStatus[node.Step()])
		if err := o.save(ctx, t); err != nil {
			return err
		}
		o.publish(ctx, Event{Type: EventStepCompleted, TaskID: t.ID, Status: t.Status, Step: node.Step()})
	}

	if t.Status == task.StatusCompleted {
		log.Info("pipeline completed")
		o.publish(ctx, Event{Type: EventTaskCompleted, TaskID: t.ID, Status: t.Status})
	}
	return nil
}

// runNode runs node once, or for the polling step until it stops reporting
// TaskRunning or MaxPollingRetries+1 polls have been made.
func (o *Orchestrator) runNode(ctx context.Context, t *task.Task, b *Board, node Node) error {
	n := o.decorate(node)
	if node.Step() != task.StatusPolling {
		return n.Run(ctx, b, &o.services)
	}

	providerName := o.services.Transcription.Name()
	cfg := resilience.FixedInterval(o.cfg.MaxPollingRetries+1, o.cfg.PollingInterval, IsTaskRunning)
	cfg.OnRetry = func(attempt int, _ error, wait time.Duration) {
		// Keep partial results and remote metadata visible between polls.
		Merge(t, b)
		if err := o.save(ctx, t); err != nil {
			o.log.Warn("saving poll progress failed", logger.Fields(logger.FieldTaskID, t.ID, logger.FieldError, err.Error()))
		}
		o.publish(ctx, Event{Type: EventPollRetry, TaskID: t.ID, Status: t.Status, Step: task.StatusPolling, Attempt: attempt})
	}

	err := resilience.RetryFunc(ctx, cfg, func(ctx context.Context, _ int) error {
		err := n.Run(ctx, b, &o.services)
		if o.metrics != nil {
			o.metrics.RecordPoll(ctx, providerName, pollOutcome(err))
		}
		return err
	})
	if stderrors.Is(err, resilience.ErrMaxRetriesExceeded) {
		return PollingTimeout().WithCause(err)
	}
	return err
}

func (o *Orchestrator) decorate(node Node) Node {
	n := WithLogging(node, o.log)
	if o.metrics != nil {
		n = WithNodeMetrics(n, o.metrics)
	}
	if o.cfg.Tracing {
		n = WithTracing(n, observability.SpanPipeline)
	}
	return n
}

func (o *Orchestrator) save(ctx context.Context, t *task.Task) error {
	if err := o.store.Save(ctx, t); err != nil {
		o.log.Error("saving task failed", logger.Fields(logger.FieldTaskID, t.ID, logger.FieldError, err.Error()))
		return err
	}
	return nil
}

func (o *Orchestrator) publish(ctx context.Context, e Event) {
	o.bus.Publish(ctx, e)
	if o.metrics != nil {
		o.metrics.RecordEvent(ctx, string(e.Type))
	}
}

func pollOutcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsTaskRunning(err):
		return "running"
	default:
		return "failed"
	}
}
