package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/memohai/doubtsolver/internal/access"
	"github.com/memohai/doubtsolver/internal/channel/telegram"
	"github.com/memohai/doubtsolver/internal/config"
	"github.com/memohai/doubtsolver/internal/doubt"
	"github.com/memohai/doubtsolver/internal/gemini"
	"github.com/memohai/doubtsolver/internal/handlers"
	"github.com/memohai/doubtsolver/internal/healthcheck"
	"github.com/memohai/doubtsolver/internal/logger"
	"github.com/memohai/doubtsolver/internal/metrics"
	"github.com/memohai/doubtsolver/internal/ratelimit"
	"github.com/memohai/doubtsolver/internal/schedule"
	"github.com/memohai/doubtsolver/internal/server"
)

type configPath string

func newServeCommand(path *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Poll Telegram and answer doubts",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), *path)
		},
	}
}

func runServe(ctx context.Context, path string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	app := fx.New(
		fx.Supply(configPath(path)),
		fx.Provide(
			provideConfig,
			provideLogger,
			metrics.NewCollector,
			provideAccessStore,
			provideAccessService,
			ratelimit.NewCooldown,
			provideOutboundLimiter,
			provideGeminiClient,
			provideDispatcher,
			provideTelegramAdapter,
			provideScheduler,
			provideServerHandler(handlers.NewPingHandler),
			provideServerHandler(provideMetricsHandler),
			provideServerHandler(provideHealthHandler),
			provideServer,
		),
		fx.Invoke(
			seedOwners,
			startScheduler,
			startTelegram,
			startServer,
		),
		fx.WithLogger(func(logger *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: logger.With(slog.String("component", "fx"))}
		}),
	)
	if err := app.Err(); err != nil {
		return err
	}

	startCtx, cancel := context.WithTimeout(ctx, app.StartTimeout())
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}
	signal := <-app.Wait()

	stopCtx, cancelStop := context.WithTimeout(context.Background(), app.StopTimeout())
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil {
		return err
	}
	if signal.ExitCode != 0 {
		return fmt.Errorf("exited with code %d", signal.ExitCode)
	}
	return nil
}

func provideServerHandler(fn any) any {
	return fx.Annotate(
		fn,
		fx.As(new(server.Handler)),
		fx.ResultTags(`group:"server_handlers"`),
	)
}

func provideConfig(path configPath) (config.Config, error) {
	cfg, err := loadConfig(string(path))
	if err != nil {
		return config.Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

func provideLogger(cfg config.Config) *slog.Logger {
	logger.Init(cfg.Log.Level, cfg.Log.Format)
	return logger.L
}

func provideAccessStore(lc fx.Lifecycle, log *slog.Logger, cfg config.Config) (access.Store, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	store, closeStore, err := openAccessStore(ctx, log, cfg.Storage)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{OnStop: func(context.Context) error { closeStore(); return nil }})
	return store, nil
}

func provideAccessService(log *slog.Logger, store access.Store) *access.Service {
	return access.NewService(log, store)
}

func provideOutboundLimiter(cfg config.Config) *ratelimit.Outbound {
	return ratelimit.NewOutbound(cfg.Gemini.RequestsPerSecond, cfg.Gemini.Burst)
}

func provideGeminiClient(log *slog.Logger, cfg config.Config, limiter *ratelimit.Outbound) *gemini.Client {
	return gemini.NewClient(log, gemini.Options{
		APIKey:       cfg.Gemini.APIKey,
		Model:        cfg.Gemini.Model,
		BaseURL:      cfg.Gemini.BaseURL,
		Timeout:      cfg.Gemini.Timeout,
		SingleFlight: cfg.Gemini.SingleFlight,
		PreCallDelay: cfg.Gemini.PreCallDelay,
		Limiter:      limiter,
	})
}

func provideDispatcher(log *slog.Logger, cfg config.Config, accessService *access.Service, cooldown *ratelimit.Cooldown, client *gemini.Client, collector *metrics.Collector) *doubt.Dispatcher {
	return doubt.NewDispatcher(log, accessService, cooldown, client, collector, doubt.Options{
		MinGap:       cfg.RateLimit.MinGap,
		MaxDimension: cfg.Image.MaxDimension,
		JPEGQuality:  cfg.Image.JPEGQuality,
	})
}

func provideTelegramAdapter(log *slog.Logger, cfg config.Config, dispatcher *doubt.Dispatcher) *telegram.Adapter {
	return telegram.NewAdapter(log, dispatcher, telegram.Options{
		BotToken:         cfg.Telegram.BotToken,
		PollTimeout:      cfg.Telegram.PollTimeout,
		MaxDownloadBytes: cfg.Telegram.MaxDownloadBytes,
		Debug:            cfg.Telegram.Debug,
	})
}

func provideScheduler(log *slog.Logger, cfg config.Config, cooldown *ratelimit.Cooldown, collector *metrics.Collector) (*schedule.Service, error) {
	svc := schedule.NewService(log)
	if cfg.RateLimit.SweepInterval == "" {
		return svc, nil
	}
	olderThan := cfg.RateLimit.MinGap * time.Duration(cfg.RateLimit.EvictAfterMultiple)
	job := schedule.CooldownSweep(log, cooldown, olderThan, collector)
	if err := svc.Add(schedule.CooldownSweepJob, cfg.RateLimit.SweepInterval, job); err != nil {
		return nil, err
	}
	return svc, nil
}

func provideMetricsHandler(collector *metrics.Collector) *handlers.MetricsHandler {
	return handlers.NewMetricsHandler(collector.Handler())
}

func provideHealthHandler(accessService *access.Service, adapter *telegram.Adapter) *handlers.HealthHandler {
	return handlers.NewHealthHandler(
		healthcheck.CheckFunc{ID: "storage", Fn: func(ctx context.Context) error {
			_, err := accessService.ListUsers(ctx)
			return err
		}},
		healthcheck.CheckFunc{ID: "telegram", Fn: func(context.Context) error {
			if !adapter.Running() {
				return errors.New("not polling")
			}
			return nil
		}},
	)
}

type serverParams struct {
	fx.In

	Logger         *slog.Logger
	Config         config.Config
	ServerHandlers []server.Handler `group:"server_handlers"`
}

func provideServer(params serverParams) *server.Server {
	return server.NewServer(params.Logger, params.Config.Server.Addr, params.ServerHandlers...)
}

func seedOwners(lc fx.Lifecycle, log *slog.Logger, cfg config.Config, accessService *access.Service) {
	lc.Append(fx.Hook{OnStart: func(ctx context.Context) error {
		if err := accessService.SeedOwners(ctx, cfg.Access.OwnerIDs); err != nil {
			return fmt.Errorf("seed owners: %w", err)
		}
		if len(accessService.Owners()) == 0 {
			log.Warn("no owners configured, nobody can grant access")
		}
		return nil
	}})
}

func startScheduler(lc fx.Lifecycle, svc *schedule.Service) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error { svc.Start(); return nil },
		OnStop:  func(ctx context.Context) error { return svc.Stop(ctx) },
	})
}

func startTelegram(lc fx.Lifecycle, adapter *telegram.Adapter) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error { return adapter.Start(ctx) },
		OnStop:  func(ctx context.Context) error { return adapter.Stop(ctx) },
	})
}

func startServer(lc fx.Lifecycle, logger *slog.Logger, srv *server.Server, shutdowner fx.Shutdowner, client *gemini.Client) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			logger.Info("starting doubtsolver",
				slog.String("version", versionString()),
				slog.String("addr", srv.Addr()),
				slog.String("model", client.Model()),
			)
			go func() {
				if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("server failed", slog.Any("error", err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
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
