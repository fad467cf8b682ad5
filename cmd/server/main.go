package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alkime/consults/internal/config"
	"github.com/alkime/consults/internal/logger"
	"github.com/alkime/consults/internal/repository"
	"github.com/alkime/consults/internal/server"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger := logger.SetupLogger(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, appLogger); err != nil {
		appLogger.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) error {
	repo, err := openRepository(ctx, cfg, appLogger)
	if err != nil {
		return err
	}
	defer repo.Close()

	appLogger.Info("Starting consults server",
		"env", cfg.Env,
		"port", cfg.Port,
		"public_dir", cfg.PublicDir,
	)

	httpServer := server.New(cfg, appLogger, repo).HTTPServer()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		appLogger.Info("Server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		appLogger.Info("Shutting down server")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), shutdownTimeout)
		defer cancel()

		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func openRepository(ctx context.Context, cfg *config.Config, appLogger *slog.Logger) (repository.Repository, error) {
	if cfg.DatabaseURL == "" {
		appLogger.Warn("DATABASE_URL not set, keeping recordings in memory")
		return repository.NewMemory(), nil
	}

	pool, err := repository.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}

	if err := repository.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, err
	}

	return repository.NewPostgres(pool), nil
}
