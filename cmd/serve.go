package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/ytaudio/internal/blobstore"
	"github.com/desertthunder/ytaudio/internal/repositories"
	"github.com/desertthunder/ytaudio/internal/server"
	"github.com/desertthunder/ytaudio/internal/services"
	"github.com/desertthunder/ytaudio/internal/shared"
	"github.com/desertthunder/ytaudio/internal/tasks"
	"github.com/gofrs/flock"
	"github.com/urfave/cli/v3"
)

const (
	interruptedReason      = "interrupted by restart"
	defaultShutdownTimeout = 30 * time.Second
)

// service is the fully wired server process: database, blob store, workers and HTTP front end.
type service struct {
	lock   *flock.Flock
	db     *sql.DB
	pool   *tasks.Pool
	server *server.Server
	logger *log.Logger
}

// newService opens everything [Runner.Serve] needs without binding a port.
//
// Jobs left in flight by a previous process are failed before any worker starts.
func newService(cfg *shared.Config, executor services.Executor, logger *log.Logger) (_ *service, err error) {
	svc := &service{logger: logger}
	defer func() {
		if err != nil {
			svc.close()
		}
	}()

	dataDir := filepath.Dir(cfg.Database.Path)
	if svc.lock, err = shared.AcquireLock(dataDir); err != nil {
		return nil, err
	}

	if svc.db, err = shared.NewDatabase(cfg.Database.Path); err != nil {
		return nil, fmt.Errorf("failed to create database: %w", err)
	}
	shared.ConfigureDatabase(svc.db, cfg.Database.MaxOpenConns, cfg.Database.MaxIdleConns)

	if err = shared.RunMigrations(svc.db); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	jobs := repositories.NewJobRepository(svc.db)
	library := repositories.NewLibraryRepository(svc.db)

	failed, err := jobs.FailInFlight(interruptedReason)
	if err != nil {
		return nil, fmt.Errorf("failed to reconcile in-flight jobs: %w", err)
	}
	if failed > 0 {
		logger.Warn("marked interrupted jobs as failed", "count", failed)
	}

	store, err := blobstore.Open(cfg.Storage, svc.db)
	if err != nil {
		return nil, err
	}

	if err = os.MkdirAll(cfg.Storage.TempDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}

	pipeline := tasks.NewPipeline(jobs, library, store, executor, cfg.Storage.TempDir, logger)
	svc.pool = tasks.NewPool(pipeline, cfg.Workers, logger)
	svc.pool.Start()

	svc.server = server.New(cfg.Server, server.Deps{
		Jobs:        jobs,
		Library:     library,
		Store:       store,
		Dispatcher:  svc.pool,
		TempDir:     cfg.Storage.TempDir,
		AudioFormat: cfg.Executor.AudioFormat,
		Logger:      logger,
	})

	return svc, nil
}

// shutdown stops the HTTP server first so no new jobs arrive, then drains the workers.
func (s *service) shutdown(ctx context.Context) error {
	var errs []error
	if s.server != nil {
		if err := s.server.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("http shutdown: %w", err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("worker shutdown: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (s *service) close() {
	if s.pool != nil {
		s.pool.Shutdown(context.Background())
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil {
			s.logger.Warn("failed to close database", "error", err)
		}
	}
	if s.lock != nil {
		if err := s.lock.Unlock(); err != nil {
			s.logger.Warn("failed to release lock", "error", err)
		}
	}
}

// Serve runs the conversion server until SIGINT or SIGTERM.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	if err := r.load(cmd); err != nil {
		return err
	}
	if err := r.config.Validate(); err != nil {
		return err
	}

	executor := services.NewYTDLPExecutor(r.config.Executor, r.logger)
	svc, err := newService(r.config, executor, r.logger)
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.server.Listen(); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		errCh <- svc.server.Serve()
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server stopped: %w", err)
		}
	case <-ctx.Done():
		r.logger.Info("shutting down")
	}

	timeout := r.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := svc.shutdown(shutdownCtx); err != nil {
		return err
	}
	r.logger.Info("server stopped")
	return nil
}
