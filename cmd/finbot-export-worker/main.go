package main

import (
	"context"
	"errors"
	"os"
	"time"

	"finbot/internal/amqp"
	"finbot/internal/cache"
	"finbot/internal/cli"
	"finbot/internal/config"
	applog "finbot/internal/log"
	"finbot/internal/sheets"
	gsheet "finbot/internal/sheets/google"
	"finbot/internal/sheets/memory"
	"finbot/internal/worker"
)

const (
	shutdownTimeout         = 30 * time.Second
	progressCleanupInterval = 10 * time.Minute
)

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig(applog.ComponentWorker, (*config.Config).ValidateExportWorker)
	logger.Info("Starting finbot-export-worker", "backend", cfg.ExportBackend)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	sink, err := newSink(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize export sink", applog.FieldError, err, "backend", cfg.ExportBackend)
		os.Exit(1)
	}

	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer client.Close()

	exportWorker := worker.NewExportWorker(repo, sink, cfg.ExportBatchSize)
	caches := cache.NewManager()
	caches.Register(exportWorker.Progress())
	caches.StartCleanup(progressCleanupInterval)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(context.Context) {
		caches.Stop()
	})

	consumeErr := make(chan error, 1)
	go func() {
		consumeErr <- client.ConsumeExportRequests(applog.WithContext(ctx, logger), exportWorker.HandleExportRequest)
	}()

	select {
	case err := <-consumeErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("Message consumption failed", applog.FieldError, err)
			client.Close()
			repo.Close()
			os.Exit(1)
		}
	case <-ctx.Done():
		<-consumeErr
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("finbot-export-worker stopped")
}

func newSink(ctx context.Context, cfg *config.Config) (sheets.ExpenseExporter, error) {
	switch cfg.ExportBackend {
	case "sheets":
		return gsheet.NewFromConfig(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
	default:
		return memory.New(), nil
	}
}
