package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	httpadapter "github.com/nmacedo/fundsflow-backend/internal/adapter/http"
	"github.com/nmacedo/fundsflow-backend/internal/adapter/notifier"
	"github.com/nmacedo/fundsflow-backend/internal/adapter/repository/memory"
	"github.com/nmacedo/fundsflow-backend/internal/adapter/repository/postgres"
	"github.com/nmacedo/fundsflow-backend/internal/config"
	"github.com/nmacedo/fundsflow-backend/internal/domain"
	"github.com/nmacedo/fundsflow-backend/internal/logging"
	"github.com/nmacedo/fundsflow-backend/internal/usecase/account"
	"github.com/nmacedo/fundsflow-backend/internal/usecase/seeder"
	"github.com/nmacedo/fundsflow-backend/internal/usecase/transfer"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.Logging)

	// 1. Storage
	var accountRepo domain.AccountRepository
	var transferRepo domain.TransferRepository

	switch cfg.Storage.Driver {
	case "postgres":
		db, err := postgres.Open(ctx, cfg.Storage.ConnString())
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		accountRepo = postgres.NewAccountRepository(db)
		transferRepo = postgres.NewTransferRepository(db)
	default:
		accountRepo = memory.NewAccountRepository()
		transferRepo = memory.NewTransferRepository()
	}

	// 2. Services
	accountService := account.NewService(accountRepo)

	engine := transfer.NewEngine(
		accountRepo,
		transferRepo,
		transfer.NewAccountRegistry(),
		notifier.NewLogNotifier(logger),
		logger,
		transfer.EngineConfig{
			MaxAttempts:   cfg.Engine.MaxAttempts,
			BackoffStep:   cfg.Engine.BackoffStep,
			DebitWorkers:  cfg.Engine.DebitWorkers,
			CreditWorkers: cfg.Engine.CreditWorkers,
			NotifyWorkers: cfg.Engine.NotifyWorkers,
			QueueSize:     cfg.Engine.QueueSize,
		},
	)
	defer engine.Stop()

	transferService := transfer.NewService(accountRepo, transferRepo, engine)

	if cfg.SeedAccounts != "" {
		accountSeeder := seeder.NewAccountSeeder(accountRepo)
		if err := accountSeeder.Seed(ctx, cfg.SeedAccounts); err != nil {
			logger.Error("failed to seed accounts", "error", err)
			os.Exit(1)
		}
		logger.Info("accounts seeded")
	}

	// 3. HTTP server
	handler := httpadapter.NewHandler(accountService, transferService, logger)
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      httpadapter.NewRouter(handler),
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer shutdownCancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Error("server exited with error", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}
