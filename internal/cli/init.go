// Package cli holds the startup steps shared by the binaries.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"fintrack/internal/amqp"
	"fintrack/internal/config"
	"fintrack/internal/log"
	"fintrack/internal/storage"
)

// Bootstrap loads .env and the configuration and installs the process
// logger for component. Invalid LOG_LEVEL values are reported by Validate.
func Bootstrap(component string) (*config.Config, *log.Logger) {
	// Optional in production.
	_ = godotenv.Load()

	cfg := config.Load()
	level, _ := config.ParseLevel(cfg.LogLevel)
	return cfg, log.Setup(level, component)
}

// MustValidate exits the process when validate fails.
func MustValidate(logger *log.Logger, validate func() error) {
	if err := validate(); err != nil {
		logger.Error("Configuration validation failed",
			log.NewFields().
				WithOperation(log.OpStartup).
				WithErrorType(log.ErrorTypeConfiguration).
				WithError(err).
				ToSlice()...)
		os.Exit(1)
	}
}

// InitSQLite opens and migrates the database or exits the process.
func InitSQLite(logger *log.Logger, dbPath string) *storage.SQLiteRepository {
	repo, err := storage.NewSQLiteRepository(dbPath)
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", "error", err, "path", dbPath)
		os.Exit(1)
	}
	return repo
}

// NewAMQPClient connects to the broker described by cfg.
func NewAMQPClient(cfg *config.Config) (*amqp.Client, error) {
	return amqp.NewClient(amqp.Config{
		URL:          cfg.AMQPURL,
		Exchange:     cfg.AMQPExchange,
		ExpenseQueue: cfg.AMQPExpenseQueue,
		InviteQueue:  cfg.AMQPInviteQueue,
	})
}

// SignalContext is cancelled on SIGINT or SIGTERM.
func SignalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}
