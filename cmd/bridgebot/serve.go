package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/bridgebot/bridgebot/internal/backend"
	"github.com/bridgebot/bridgebot/internal/config"
	"github.com/bridgebot/bridgebot/internal/handlers"
	"github.com/bridgebot/bridgebot/internal/history"
	"github.com/bridgebot/bridgebot/internal/logger"
	"github.com/bridgebot/bridgebot/internal/outbound"
	"github.com/bridgebot/bridgebot/internal/poll"
	"github.com/bridgebot/bridgebot/internal/server"
	"github.com/bridgebot/bridgebot/internal/storage"
	"github.com/bridgebot/bridgebot/internal/storage/providers/localfs"
	"github.com/bridgebot/bridgebot/internal/transcribe"
	"github.com/bridgebot/bridgebot/internal/version"
)

func runServe() {
	fx.New(
		fx.Provide(
			provideConfig,
			provideLogger,
			provideStorageProvider,
			provideHistoryStore,
			providePoller,
			provideMediaFetcher,
			provideJobClient,
			provideTranscriber,
			provideReplier,
			provideDispatcher,
			provideMetaSender,
			provideTwilioSender,
			handlers.NewPingHandler,
			provideWebhookHandler,
			provideServer,
		),
		fx.Invoke(startServer),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	).Run()
}

func provideConfig() (config.Config, error) {
	path := configPath
	if path == "" {
		path = os.Getenv("CONFIG_PATH")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideStorageProvider(cfg config.Config) (storage.Provider, error) {
	provider, err := localfs.New(cfg.Storage.DataRoot)
	if err != nil {
		return nil, fmt.Errorf("init storage provider: %w", err)
	}
	return provider, nil
}

func provideHistoryStore(log *slog.Logger, provider storage.Provider, cfg config.Config) *history.Store {
	return history.NewStore(log, provider, cfg.History.BackupRetain)
}

func providePoller(cfg config.Config) poll.Poller {
	return poll.Poller{
		Interval:    time.Duration(cfg.Transcribe.PollIntervalMs) * time.Millisecond,
		MaxAttempts: cfg.Transcribe.PollMaxAttempts,
	}
}

func provideMediaFetcher(log *slog.Logger, cfg config.Config) transcribe.MediaFetcher {
	return transcribe.NewFetcher(log, "", cfg.Meta.AccessToken, cfg.Twilio.AccountSID, cfg.Twilio.AuthToken)
}

func provideJobClient(log *slog.Logger, cfg config.Config) transcribe.JobClient {
	return transcribe.NewHTTPJobClient(log, cfg.Transcribe.BaseURL, cfg.Transcribe.APIKey)
}

func provideTranscriber(log *slog.Logger, fetcher transcribe.MediaFetcher, provider storage.Provider, jobs transcribe.JobClient, poller poll.Poller, cfg config.Config) handlers.Transcriber {
	return transcribe.NewOrchestrator(log, fetcher, provider, jobs, poller, cfg.Transcribe.LanguageCode)
}

func provideReplier(log *slog.Logger, cfg config.Config) handlers.ReplyGenerator {
	return backend.NewClient(log, cfg.Backend.BaseURL, time.Duration(cfg.Backend.TimeoutSec)*time.Second)
}

func provideDispatcher(log *slog.Logger, cfg config.Config) *outbound.Dispatcher {
	return outbound.NewDispatcher(log, cfg.Outbound.FragmentLimit, time.Duration(cfg.Outbound.FragmentDelayMs)*time.Millisecond)
}

func provideMetaSender(cfg config.Config) *outbound.MetaSender {
	return outbound.NewMetaSender("", cfg.Meta.AccessToken, cfg.Meta.PhoneNumberID)
}

func provideTwilioSender(cfg config.Config) *outbound.TwilioSender {
	return outbound.NewTwilioSender("", cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber)
}

func provideWebhookHandler(
	log *slog.Logger,
	store *history.Store,
	transcriber handlers.Transcriber,
	replier handlers.ReplyGenerator,
	dispatcher *outbound.Dispatcher,
	metaSender *outbound.MetaSender,
	twilioSender *outbound.TwilioSender,
	cfg config.Config,
) *handlers.WebhookHandler {
	return handlers.NewWebhookHandler(log, store, transcriber, replier, dispatcher, metaSender, twilioSender, cfg)
}

func provideServer(log *slog.Logger, cfg config.Config, pingHandler *handlers.PingHandler, webhookHandler *handlers.WebhookHandler) *server.Server {
	return server.NewServer(log, cfg.Server.Addr, pingHandler, webhookHandler)
}

func startServer(lc fx.Lifecycle, log *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner) {
	fmt.Printf("Starting bridgebot %s\n", version.Version)
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown()
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server stop: %w", err)
			}
			return nil
		},
	})
}
