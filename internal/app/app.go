// Package app wires the launcher backend together.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"

	"github.com/qwikask/qwikask/internal/clipboard"
	"github.com/qwikask/qwikask/internal/config"
	"github.com/qwikask/qwikask/internal/handler"
	"github.com/qwikask/qwikask/internal/history"
	"github.com/qwikask/qwikask/internal/llm"
	natsclient "github.com/qwikask/qwikask/internal/nats"
	"github.com/qwikask/qwikask/internal/service"
	"github.com/qwikask/qwikask/internal/session"
	"github.com/qwikask/qwikask/internal/settings"
	"github.com/qwikask/qwikask/pkg/logger"
	"github.com/qwikask/qwikask/pkg/tracing"
)

// App owns every long-lived component.
type App struct {
	Config        *config.Config
	Logger        *logger.Logger
	History       *history.Store
	Settings      *settings.Store
	Registry      *llm.Registry
	Session       *session.Session
	Chat          *service.ChatService
	Conversations *service.ConversationService

	persister *session.Persister
	nats      *natsclient.Client
	streams   *natsclient.StreamManager
	tracer    *sdktrace.TracerProvider
}

// New opens storage, connects the optional event mirror and builds the session.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{Config: cfg, Logger: log}

	if cfg.TracingEnabled {
		tp, err := tracing.InitTracer(ctx, "qwikask", cfg.TracingEndpoint)
		if err != nil {
			log.Warn("failed to initialize tracing", zap.Error(err))
		} else {
			a.tracer = tp
		}
	}

	store, err := history.Open(ctx, cfg.DatabasePath, log)
	if err != nil {
		a.shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	a.History = store

	prefs, err := settings.Open(cfg.SettingsPath, log)
	if err != nil {
		store.Close()
		a.shutdownTracing(ctx)
		return nil, fmt.Errorf("failed to open settings: %w", err)
	}
	a.Settings = prefs

	a.Registry = llm.NewRegistry(cfg.Endpoints(), llm.NewHTTPClient(cfg.ConnectTimeout), log)

	a.persister = session.NewPersister(store, a.eventSink(ctx), cfg.WriteTimeout, log)
	titles := llm.NewTitleGenerator(a.Registry, cfg.TitleTimeout, log)
	a.Session = session.New(a.Registry, titles, a.persister, clipboard.System{}, log)

	a.Chat = service.NewChatService(a.Session, prefs, log)
	var convOpts []service.ConversationOption
	if a.streams != nil {
		convOpts = append(convOpts, service.WithEventPurger(a.streams))
	}
	a.Conversations = service.NewConversationService(store, a.Session, log, convOpts...)

	return a, nil
}

// eventSink connects to NATS when configured. The mirror is best-effort, so
// a failed connection only disables it.
func (a *App) eventSink(ctx context.Context) session.EventSink {
	cfg := a.Config
	if cfg.NATSURL == "" {
		return natsclient.NopSink{}
	}

	client, err := natsclient.Connect(ctx, natsclient.Config{
		URL:      cfg.NATSURL,
		CAFile:   cfg.NATSCAFile,
		CertFile: cfg.NATSCertFile,
		KeyFile:  cfg.NATSKeyFile,
		Token:    cfg.NATSToken,
	}, a.Logger)
	if err != nil {
		a.Logger.Warn("event mirror disabled", zap.Error(err))
		return natsclient.NopSink{}
	}

	streams := natsclient.NewStreamManager(client)
	if err := streams.EnsureStream(ctx); err != nil {
		a.Logger.Warn("event mirror disabled", zap.Error(err))
		client.Close()
		return natsclient.NopSink{}
	}

	a.nats = client
	a.streams = streams
	a.Logger.Info("event mirror enabled", zap.String("stream", natsclient.StreamName))
	return streams
}

// Handler returns the local API.
func (a *App) Handler() http.Handler {
	deps := handler.Deps{
		Chat:           a.Chat,
		Conversations:  a.Conversations,
		Settings:       a.Settings,
		Catalog:        a.Registry,
		DB:             a.History,
		AllowedOrigins: a.Config.AllowedOrigins,
		APIToken:       a.Config.APIToken,
		Heartbeat:      a.Config.HeartbeatInterval,
		Logger:         a.Logger,
	}
	if a.nats != nil {
		deps.Events = a.nats
	}
	return handler.NewRouter(deps)
}

// WatchSettings reloads settings edited outside the app until ctx is done.
// Sends pick up the new values on their own; nothing else needs notifying.
func (a *App) WatchSettings(ctx context.Context) error {
	if !a.Config.WatchSettings {
		return nil
	}
	return a.Settings.Watch(ctx, settings.DefaultWatchDebounce, func(s settings.AppSettings) {
		a.Logger.Info("settings changed",
			zap.String("provider", string(s.LLM.Provider)),
			zap.String("model", s.LLM.Model),
		)
	})
}

// Close abandons any reply in flight, flushes pending writes and releases
// every resource.
func (a *App) Close(ctx context.Context) error {
	var errs []error

	if err := a.Session.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("failed to drain session: %w", err))
	}
	a.persister.Close()

	if a.nats != nil {
		a.nats.Close()
	}
	if err := a.History.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close history: %w", err))
	}
	a.shutdownTracing(ctx)

	return errors.Join(errs...)
}

func (a *App) shutdownTracing(ctx context.Context) {
	if err := tracing.Shutdown(ctx, a.tracer); err != nil {
		a.Logger.Warn("failed to flush traces", zap.Error(err))
	}
}
