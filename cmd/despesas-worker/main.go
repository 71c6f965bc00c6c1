package main

import (
	"os"
	"time"

	"despesas/internal/amqp"
	"despesas/internal/cli"
	"despesas/internal/config"
	applog "despesas/internal/log"
	gsheet "despesas/internal/sheets/google"
	"despesas/internal/worker"
)

const amqpConnectAttempts = 6

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateWorker)

	logger.Info("Starting despesas-worker")

	ctx, done := cli.GracefulShutdown(logger, 30*time.Second, nil)

	sheetsClient, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleActivitySheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	})
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", applog.FieldError, err)
		os.Exit(1)
	}
	if err := sheetsClient.EnsureHeader(ctx); err != nil {
		logger.Warn("Could not verify activity sheet header", applog.FieldError, err)
	}
	logger.Info("Google Sheets client initialized",
		"spreadsheet_id", cfg.GoogleSpreadsheetID,
		"sheet", cfg.GoogleActivitySheetName)

	amqpClient, err := amqp.NewClientWithRetry(ctx, cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, amqpConnectAttempts)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", applog.FieldError, err)
		os.Exit(1)
	}
	defer amqpClient.Close()

	w := worker.NewActivityWorker(amqpClient, sheetsClient, logger)
	if err := w.Run(ctx); err != nil {
		logger.Error("Activity worker stopped", applog.FieldError, err)
		amqpClient.Close()
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Worker shutdown complete")
}
