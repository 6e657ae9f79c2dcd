package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbukum/voicememo/bootstrap"
	"github.com/kbukum/voicememo/config"
	"github.com/kbukum/voicememo/database"
	"github.com/kbukum/voicememo/kafka"
	"github.com/kbukum/voicememo/logger"
	"github.com/kbukum/voicememo/media"
	"github.com/kbukum/voicememo/observability"
	"github.com/kbukum/voicememo/pipeline"
	"github.com/kbukum/voicememo/redis"
	"github.com/kbukum/voicememo/server"
	"github.com/kbukum/voicememo/server/endpoint"
	"github.com/kbukum/voicememo/server/middleware"
	"github.com/kbukum/voicememo/sse"
	"github.com/kbukum/voicememo/storage"
	_ "github.com/kbukum/voicememo/storage/local"
	_ "github.com/kbukum/voicememo/storage/memory"
	_ "github.com/kbukum/voicememo/storage/s3"
	"github.com/kbukum/voicememo/task"
	"github.com/kbukum/voicememo/taskstore"
	"github.com/kbukum/voicememo/transcription"
	"github.com/kbukum/voicememo/transcription/local"
	"github.com/kbukum/voicememo/transcription/tingwu"
	"github.com/kbukum/voicememo/transcription/volcengine"
	"github.com/kbukum/voicememo/version"
)

func init() {
	transcription.Register(tingwu.ProviderName, tingwu.Factory())
	transcription.Register(volcengine.ProviderName, volcengine.Factory())
	transcription.Register(local.ProviderName, local.Factory())
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the pipeline",
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func loadConfig() (*AppConfig, error) {
	cfg := newAppConfig()
	err := config.Load(cfg,
		config.WithConfigFile(cfgFile),
		config.WithEnvFile(envFile),
		config.WithDefaults(defaults()),
	)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := bootstrap.NewApp(cfg)
	if err != nil {
		return err
	}
	if err := wire(ctx, app); err != nil {
		return err
	}
	return app.Run(ctx)
}

// wire builds every dependency and registers components and hooks on app.
func wire(ctx context.Context, app *bootstrap.App[*AppConfig]) error {
	cfg := app.Cfg
	log := app.Logger

	shutdownTelemetry, err := observability.Setup(ctx, cfg.Tracing, app.Name, app.Version)
	if err != nil {
		return err
	}
	metrics, err := observability.NewMetrics(observability.Meter(app.Name))
	if err != nil {
		return fmt.Errorf("metrics: %w", err)
	}

	db, err := database.Open(ctx, cfg.Database, log)
	if err != nil {
		return err
	}
	store, err := taskstore.NewGormStore(db, log)
	if err != nil {
		return err
	}
	objects, err := storage.New(cfg.Storage, log)
	if err != nil {
		return err
	}
	svc, err := transcription.New(cfg.Provider.Name, cfg.Provider.Settings())
	if err != nil {
		return fmt.Errorf("provider %s: %w", cfg.Provider.Name, err)
	}

	events := sse.NewComponent("/api/events", log)
	bus := pipeline.NewBus(log.WithComponent("events"))
	bus.AddSink("sse", sse.NewSink(events.Hub()))

	orch := pipeline.New(cfg.Pipeline.Config, pipeline.Services{
		Storage:       objects,
		Transcoder:    media.NewFFmpeg(cfg.Media, nil),
		Transcription: svc,
	}, store,
		pipeline.WithBus(bus),
		pipeline.WithLogger(log),
		pipeline.WithMetrics(metrics),
	)

	if err := app.RegisterComponent(database.NewComponent(db)); err != nil {
		return err
	}
	if err := app.RegisterComponent(events); err != nil {
		return err
	}

	var redisComp *redis.Component
	if cfg.Events.Redis.Enabled {
		redisComp = redis.NewComponent(cfg.Events.Redis, log)
		if err := app.RegisterComponent(redisComp); err != nil {
			return err
		}
	}
	var kafkaComp *kafka.Component
	if cfg.Events.Kafka.Enabled {
		kafkaComp = kafka.NewComponent(cfg.Events.Kafka, log)
		if err := app.RegisterComponent(kafkaComp); err != nil {
			return err
		}
	}

	srv := server.New(cfg.Server, log)
	if err := app.RegisterComponent(srv); err != nil {
		return err
	}
	srv.Mount(
		server.NewTaskAPI(store, orch, events.Hub(), log.WithComponent("api")),
		endpoint.Health(app.Name, version.Get().Short(), endpoint.Checkers(app.Components)...),
		middleware.Operation(app.Name, metrics),
	)

	// Clients of the external sinks exist only once their components started.
	app.OnConfigure(func(_ context.Context, a *bootstrap.App[*AppConfig]) error {
		if redisComp != nil {
			bus.AddSink("redis", redis.NewEventSink(redisComp.Client()))
		}
		if kafkaComp != nil {
			bus.AddSink("kafka", kafka.NewEventSink(kafkaComp.Producer()))
		}
		a.Logger.Info("event sinks attached", logger.Fields("sinks", bus.Sinks()))
		return nil
	})

	if cfg.Pipeline.ResumeOnStart {
		app.OnReady(func(ctx context.Context) error {
			return resume(ctx, store, orch, log)
		})
	}

	// Runs must end before their sinks and the tracer go away.
	app.OnStop(orch.Shutdown)
	if lp, ok := svc.(*local.Provider); ok {
		sweepCtx, cancelSweep := context.WithCancel(context.WithoutCancel(ctx))
		app.OnReady(func(context.Context) error {
			go lp.RunSweeper(sweepCtx)
			return nil
		})
		app.OnStop(func(ctx context.Context) error {
			cancelSweep()
			return lp.Close(ctx)
		})
	}
	app.OnStop(shutdownTelemetry)
	return nil
}

// resume restarts tasks a previous process left between steps. Recorded
// tasks wait for an explicit start; completed and failed ones stay put.
func resume(ctx context.Context, store taskstore.Store, orch *pipeline.Orchestrator, log *logger.Logger) error {
	tasks, err := store.List(ctx)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	resumed := 0
	for _, t := range tasks {
		if t.Status == task.StatusRecorded || t.Status.IsTerminal() {
			continue
		}
		if err := orch.Start(ctx, t, pipeline.ActionRun); err != nil {
			log.Warn("resume failed", logger.Fields(
				logger.FieldTaskID, t.ID,
				logger.FieldError, err.Error(),
			))
			continue
		}
		resumed++
	}
	if resumed > 0 {
		log.Info("resumed interrupted tasks", logger.Fields("count", resumed))
	}
	return nil
}
