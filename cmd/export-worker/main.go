package main

import (
	"context"
	"errors"
	"os"

	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/sheets"
	gsheet "fintrack/internal/sheets/google"
	"fintrack/internal/sheets/memory"
	"fintrack/internal/worker"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentExport)
	cli.MustValidate(logger, cfg.Validate)
	if cfg.AMQPURL == "" {
		logger.Error("AMQP_URL is required by export-worker")
		os.Exit(1)
	}

	logger.Info("Starting export-worker", "sheets_enabled", cfg.SheetsEnabled())

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	ctx, stop := cli.SignalContext()
	defer stop()

	var writer sheets.ExpenseWriter
	if cfg.SheetsEnabled() {
		client, err := gsheet.New(ctx, gsheet.Config{
			SpreadsheetID:   cfg.GoogleSpreadsheetID,
			SheetName:       cfg.GoogleSheetName,
			CredentialsJSON: cfg.GoogleServiceAccountJSON,
			CredentialsFile: cfg.GoogleServiceAccountFile,
		})
		if err != nil {
			logger.Error("Failed to initialize Google Sheets client", "error", err)
			os.Exit(1)
		}
		writer = client
		logger.Info("Google Sheets client initialized", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		writer = memory.New()
		logger.Warn("GOOGLE_SPREADSHEET_ID not set - exported rows are kept in memory only")
	}

	client, err := cli.NewAMQPClient(cfg)
	if err != nil {
		logger.Error("Failed to initialize AMQP client", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	w := worker.NewExportWorker(repo, writer)
	if err := w.Run(ctx, client); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", "error", err)
		os.Exit(1)
	}
	logger.Info("Export worker stopped")
}
