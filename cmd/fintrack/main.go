package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"fintrack/internal/auth"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

func main() {
	cfg, logger := cli.Bootstrap(log.ComponentApp)
	cli.MustValidate(logger, cfg.ValidateAPI)

	logger.Info("Starting fintrack API", "port", cfg.Port, "sqlite_db", cfg.SQLiteDBPath)

	repo := cli.InitSQLite(logger, cfg.SQLiteDBPath)
	defer repo.Close()

	// A nil interface, not a nil *amqp.Client, disables publishing.
	var invites services.InvitePublisher
	if cfg.AMQPURL != "" {
		client, err := cli.NewAMQPClient(cfg)
		if err != nil {
			logger.Warn("Failed to initialize AMQP client, invitations will not be announced", "error", err)
		} else {
			defer client.Close()
			invites = client
			logger.Info("AMQP client initialized", "exchange", cfg.AMQPExchange)
		}
	} else {
		logger.Info("AMQP disabled - invitations will not be announced")
	}

	users := services.NewUserService(repo, auth.BcryptHasher{})
	owners := cache.NewLRU[uuid.UUID, uuid.UUID](1024, cfg.OwnerCacheTTL)
	caches := cache.NewManager()
	caches.Register(owners)
	caches.StartCleanup(cfg.OwnerCacheTTL)
	defer caches.Stop()
	households := services.NewHouseholdService(repo, users, repo, invites, owners)

	srv := apphttp.NewServer(":"+cfg.Port, apphttp.Deps{
		DB:         repo,
		Users:      users,
		Households: households,
		Setup:      services.NewSetupService(households, repo, repo),
		Ledger:     services.NewLedgerService(repo),
		Tokens:     auth.NewTokenManager(cfg.JWTSecret, cfg.JWTIssuer, cfg.TokenTTL),
	}, apphttp.Options{
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Logger:             logger.WithComponent(log.ComponentHTTP),
	})

	ctx, stop := cli.SignalContext()
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("HTTP server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("Shutting down HTTP server", log.FieldOperation, log.OpShutdown)
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("Server stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped")
}
