// Command server runs the Lukisan generation task orchestrator: the
// HTTP API, the background polling workflows and the startup
// resumption of interrupted tasks.
package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"

	"github.com/husaynirfan1/lukisan-api/internal/archive"
	"github.com/husaynirfan1/lukisan-api/internal/config"
	"github.com/husaynirfan1/lukisan-api/internal/events"
	"github.com/husaynirfan1/lukisan-api/internal/orchestrator"
	"github.com/husaynirfan1/lukisan-api/internal/platform/genapi"
	"github.com/husaynirfan1/lukisan-api/internal/platform/logger"
	"github.com/husaynirfan1/lukisan-api/internal/platform/postgres"
	"github.com/husaynirfan1/lukisan-api/internal/platform/storage"
	"github.com/husaynirfan1/lukisan-api/migrations"
)

func main() {
	if err := run(); err != nil {
		slog.Error("server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logging: %w", err)
	}

	log.Info("configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"poll_interval", cfg.Workflow.PollInterval)

	db, err := openDatabase(cfg.Database)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := applyMigrations(db, log); err != nil {
		return err
	}

	orch, err := buildOrchestrator(cfg, db, log)
	if err != nil {
		return err
	}

	// Pick interrupted workflows back up before accepting traffic.
	resumeCtx, cancelResume := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancelResume()
	if err := orch.Resume(resumeCtx); err != nil {
		return fmt.Errorf("failed to resume unfinished tasks: %w", err)
	}

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           newRouter(orch, log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		log.Info("shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown failed", "error", err)
	}

	// Workflows stop cooperatively; unfinished tasks resume on next boot.
	orch.Shutdown()

	log.Info("shutdown complete")
	return nil
}

func openDatabase(cfg config.DatabaseConfig) (*sql.DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	return db, nil
}

func applyMigrations(db *sql.DB, log *slog.Logger) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}

	if err := goose.Up(db, "."); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := goose.GetDBVersion(db)
	if err != nil {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	log.Info("database migrations applied", "version", version)
	return nil
}

func buildOrchestrator(
	cfg *config.Config,
	db *sql.DB,
	log *slog.Logger,
) (*orchestrator.Orchestrator, error) {
	taskStore := postgres.NewTaskStore(db)
	notifier := events.NewNotifier(log)

	client, err := genapi.NewClient(cfg.Provider, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create generation client: %w", err)
	}

	objectStore, err := storage.NewMinioStore(cfg.Storage, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create object store: %w", err)
	}

	archiver, err := archive.NewArchiver(taskStore, objectStore, notifier, nil, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create archiver: %w", err)
	}

	orch, err := orchestrator.New(taskStore, client, archiver, notifier, cfg.Workflow, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}

	return orch, nil
}
