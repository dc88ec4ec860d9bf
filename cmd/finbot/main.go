package main

import (
	"context"
	"os"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/bot"
	"finbot/internal/cache"
	"finbot/internal/cli"
	"finbot/internal/config"
	applog "finbot/internal/log"
	"finbot/internal/presentation"
	"finbot/internal/ratelimit"
	"finbot/internal/services"
	"finbot/internal/session"
	"finbot/internal/telegram"

	"golang.org/x/sync/errgroup"
)

const (
	shutdownTimeout = 30 * time.Second
	metricsInterval = 5 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentBot, (*config.Config).ValidateBot)
	logger.Info("Starting finbot", "stats_renderer", cfg.StatsRenderer, "window_days", cfg.StatsWindowDays)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	store := services.NewCachedStore(repo, cfg.CategoryCacheSize, cfg.CategoryCacheTTL)
	caches := cache.NewManager()
	caches.Register(store.Cache())
	caches.StartCleanup(cfg.CategoryCacheTTL)

	opts := []bot.Option{bot.WithWindowDays(cfg.StatsWindowDays)}
	if cfg.ExportEnabled() {
		client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
		if err != nil {
			// The bot keeps working without export; the resolver reports it as unavailable.
			logger.Warn("AMQP unavailable, export disabled", applog.FieldError, err)
			opts = append(opts, bot.WithExporter(services.NewExportService(nil)))
		} else {
			defer client.Close()
			opts = append(opts, bot.WithExporter(services.NewExportService(client)))
			logger.Info("Export requests enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
		}
	} else {
		logger.Info("Export disabled - no AMQP_URL provided")
	}

	sessions := session.NewStore()
	resolver := bot.NewResolver(store, sessions, opts...)

	presenter, err := presentation.New(cfg.StatsRenderer)
	if err != nil {
		logger.Error("Failed to create stats presenter", applog.FieldError, err)
		os.Exit(1)
	}

	limiter := ratelimit.NewLimiter(ratelimit.Config{MessagesPerMinute: cfg.RateLimitPerMinute})

	api, err := telegram.NewAPI(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to connect to Telegram", applog.FieldError, err)
		os.Exit(1)
	}
	logger.Info("Authorized on Telegram", "account", api.Self.UserName)

	tgBot := telegram.New(api, api, resolver, presenter,
		telegram.WithLimiter(limiter),
		telegram.WithLogger(logger))

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) {
		limiter.Stop()
		caches.Stop()
	})

	runCtx, stop := context.WithCancel(applog.WithContext(ctx, logger))
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		defer stop()
		return tgBot.Run(gctx)
	})
	g.Go(func() error {
		reportMetrics(gctx, logger, limiter, sessions)
		return nil
	})

	exitCode := 0
	if err := g.Wait(); err != nil {
		logger.Error("Bot stopped with error", applog.FieldError, err)
		exitCode = 1
	}
	if ctx.Err() != nil {
		<-done
	} else {
		limiter.Stop()
		caches.Stop()
	}
	logger.Info("finbot stopped")
	if exitCode != 0 {
		repo.Close()
		os.Exit(exitCode)
	}
}

func reportMetrics(ctx context.Context, logger *applog.Logger, limiter *ratelimit.Limiter, sessions *session.Store) {
	ticker := time.NewTicker(metricsInterval)
	defer ticker.Stop()
	logger = logger.WithComponent(applog.ComponentRateLimit)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m := limiter.GetMetrics()
			logger.Info("Throughput", "rejected", m.Rejected, "active_users", m.ActiveUsers, "sessions", sessions.Len())
		}
	}
}
