package cli

import (
	"context"
	"log/slog"
	"path/filepath"
	"testing"

	"fintrack/internal/log"
)

func TestBootstrap(t *testing.T) {
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("SQLITE_DB_PATH", filepath.Join(t.TempDir(), "db", "fintrack.db"))

	cfg, logger := Bootstrap(log.ComponentRecurring)
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
	if logger.Component() != log.ComponentRecurring {
		t.Errorf("Component() = %q, want %q", logger.Component(), log.ComponentRecurring)
	}
	if !slog.Default().Enabled(context.Background(), slog.LevelDebug) {
		t.Error("default logger does not log at debug")
	}
}

func TestInitSQLite(t *testing.T) {
	logger := log.New(log.DefaultConfig())
	repo := InitSQLite(logger, filepath.Join(t.TempDir(), "fintrack.db"))
	defer repo.Close()

	if err := repo.Ping(context.Background()); err != nil {
		t.Errorf("Ping() error = %v", err)
	}
}
