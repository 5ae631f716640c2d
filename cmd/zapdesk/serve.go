package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/zapdeskhq/zapdesk/internal/assistant"
	"github.com/zapdeskhq/zapdesk/internal/command"
	"github.com/zapdeskhq/zapdesk/internal/config"
	"github.com/zapdeskhq/zapdesk/internal/db"
	"github.com/zapdeskhq/zapdesk/internal/evolution"
	"github.com/zapdeskhq/zapdesk/internal/handlers"
	"github.com/zapdeskhq/zapdesk/internal/instance"
	"github.com/zapdeskhq/zapdesk/internal/logger"
	"github.com/zapdeskhq/zapdesk/internal/media"
	"github.com/zapdeskhq/zapdesk/internal/media/providers/localfs"
	"github.com/zapdeskhq/zapdesk/internal/message"
	"github.com/zapdeskhq/zapdesk/internal/server"
	"github.com/zapdeskhq/zapdesk/internal/session"
	"github.com/zapdeskhq/zapdesk/internal/transcribe"
	"github.com/zapdeskhq/zapdesk/internal/webhook"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideDBConn,
			provideDBTX,
			instance.NewService,
			session.NewService,
			message.NewService,
			provideEvolutionClient,
			provideAssistantClient,
			provideStorageProvider,
			provideMediaResolver,
			provideInterpreter,
			provideSyncer,
			provideProcessor,
			provideServerHandler(provideWebhookHandler),
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideMessagesHandler),
			provideServerHandler(provideInstancesHandler),
			provideServer,
		),
		fx.Invoke(
			startSyncSchedule,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig() (config.Config, error) {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideDBConn(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	conn, err := db.Open(context.Background(), cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("db connect: %w", err)
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { conn.Close(); return nil }})
	return conn, nil
}

func provideDBTX(conn *pgxpool.Pool) db.DBTX { return conn }

func provideEvolutionClient(log *slog.Logger, cfg config.Config) *evolution.Client {
	return evolution.NewClient(log, cfg.Evolution)
}

func provideAssistantClient(log *slog.Logger, cfg config.Config) *assistant.Client {
	return assistant.NewClient(log, cfg.Assistant)
}

func provideStorageProvider(cfg config.Config) (media.StorageProvider, error) {
	provider, err := localfs.New(cfg.Media.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("init media storage: %w", err)
	}
	return provider, nil
}

func provideMediaResolver(log *slog.Logger, cfg config.Config, provider media.StorageProvider) *media.Resolver {
	resolver := media.NewResolver(log, provider)
	if cfg.Deepgram.APIKey != "" {
		resolver.SetTranscriber(transcribe.NewDeepgramClient(log, cfg.Deepgram))
	}
	return resolver
}

func provideInterpreter(log *slog.Logger, sessions *session.Service, instances *instance.Service, sender *evolution.Client) *command.Interpreter {
	return command.NewInterpreter(log, sessions, instances, sender)
}

func provideSyncer(log *slog.Logger, instances *instance.Service, client *evolution.Client) *instance.Syncer {
	return instance.NewSyncer(log, instances, client)
}

func provideProcessor(log *slog.Logger, cfg config.Config, instances *instance.Service, sessions *session.Service, messages *message.Service, sender *evolution.Client, interpreter *command.Interpreter, resolver *media.Resolver, assistantClient *assistant.Client) *webhook.Processor {
	p := webhook.NewProcessor(log, instances, sessions, messages, sender)
	p.SetInterceptor(interpreter)
	p.SetMediaResolver(resolver)
	if cfg.Assistant.BaseURL != "" {
		p.SetAssistant(assistantClient)
	}
	p.SetWelcome(cfg.Onboarding.WelcomeEnabled, cfg.Onboarding.WelcomeText)
	return p
}

func provideWebhookHandler(log *slog.Logger, processor *webhook.Processor) *webhook.Handler {
	return webhook.NewHandler(log, processor)
}

func provideMessagesHandler(log *slog.Logger, messages *message.Service, sessions *session.Service, provider media.StorageProvider) *handlers.MessagesHandler {
	h := handlers.NewMessagesHandler(log, messages, sessions)
	h.SetStorage(provider)
	return h
}

func provideInstancesHandler(log *slog.Logger, instances *instance.Service, syncer *instance.Syncer) *handlers.InstancesHandler {
	h := handlers.NewInstancesHandler(log, instances)
	h.SetSyncer(syncer)
	return h
}

type serverParams struct {
	fx.In
	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.New(params.Logger, params.Config.Server.Addr, params.ServerHandlers)
}

func startSyncSchedule(lc fx.Lifecycle, logger *slog.Logger, cfg config.Config, syncer *instance.Syncer) error {
	if !cfg.Sync.Enabled {
		return nil
	}
	schedule := cfg.Sync.Schedule
	if schedule == "" {
		schedule = config.DefaultSyncSchedule
	}
	c := cron.New()
	_, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		if err := syncer.SyncAll(ctx); err != nil {
			logger.Warn("scheduled instance sync failed", slog.Any("error", err))
		}
	})
	if err != nil {
		return fmt.Errorf("sync schedule %q: %w", schedule, err)
	}
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { c.Start(); return nil },
		OnStop: func(ctx context.Context) error {
			select {
			case <-c.Stop().Done():
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})
	return nil
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, cfg config.Config) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			logger.Info("starting server", slog.String("addr", cfg.Server.Addr))
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
