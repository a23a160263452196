package main

import (
	"context"
	"os"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/log"
	"fintrack/internal/scheduler"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentRecurring)
	cli.MustValidate(logger, cfg.Validate)

	logger.Info("Starting recurring-worker",
		"schedule", cfg.RecurringScheduleTimes,
		"batch_size", cfg.RecurringBatchSize,
		"sqlite_db", cfg.SQLiteDBPath)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// Expenses are materialized either way; without AMQP they are not exported.
	var expenses services.ExpensePublisher
	if cfg.AMQPURL != "" {
		client, err := cli.NewAMQPClient(cfg)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, continuing in SQLite-only mode", "error", err)
		} else {
			defer client.Close()
			expenses = client
			logger.Info("AMQP client initialized - expenses will be exported by export-worker")
		}
	} else {
		logger.Info("AMQP disabled - expenses will not be exported")
	}

	processor := services.NewRecurringProcessor(repo, repo, expenses, cfg.RecurringBatchSize)
	users := services.NewUserService(repo, auth.BcryptHasher{})
	households := services.NewHouseholdService(repo, users, repo, nil, cache.NewLRU[uuid.UUID, uuid.UUID](16, cfg.OwnerCacheTTL))

	job := func(ctx context.Context) {
		processor.Execute(ctx)

		if cfg.InviteMaxAge <= 0 {
			return
		}
		expired, err := households.ExpireInvites(ctx, cfg.InviteMaxAge)
		if err != nil {
			logger.ErrorContext(ctx, "Failed to expire invitations", "error", err)
			return
		}
		if expired > 0 {
			logger.InfoContext(ctx, "Expired stale invitations", "count", expired, "max_age", cfg.InviteMaxAge)
		}
	}

	sched, err := scheduler.New(scheduler.Config{
		Times:        cfg.RecurringScheduleTimes,
		RunOnStartup: cfg.RecurringRunOnStartup,
	}, job)
	if err != nil {
		logger.Error("Invalid schedule", "error", err)
		os.Exit(1)
	}

	ctx, stop := cli.SignalContext()
	defer stop()

	if err := sched.Start(ctx); err != nil {
		logger.Error("Failed to start scheduler", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	logger.Info("Shutdown signal received", log.FieldOperation, log.OpShutdown)

	stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sched.Stop(stopCtx); err != nil {
		logger.Error("Scheduler did not stop cleanly", "error", err)
	}
	logger.Info("Recurring worker stopped")
}
