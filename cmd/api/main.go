// Copyright (c) 2026 Inkwell. All rights reserved.

// Command api is the entry point for the Inkwell HTTP API server.
//
// # Startup Sequence
//
//  1. Initialize structured logger.
//  2. Load configuration from environment variables.
//  3. Create the data directory layout.
//  4. Open SQLite and run migrations (idempotent).
//  5. Sync the settings registry.
//  6. Recover interrupted jobs, register job handlers.
//  7. Elect the coordinator process; the winner runs watcher and scheduler.
//  8. Start the job worker and the HTTP server with graceful shutdown.
//
// No business logic lives here. All wiring is explicit constructor injection.
package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nhatvu/inkwell/internal/api"
	"github.com/nhatvu/inkwell/internal/auth"
	"github.com/nhatvu/inkwell/internal/comic"
	"github.com/nhatvu/inkwell/internal/jobs"
	"github.com/nhatvu/inkwell/internal/maintenance"
	"github.com/nhatvu/inkwell/internal/platform/config"
	"github.com/nhatvu/inkwell/internal/platform/constants"
	"github.com/nhatvu/inkwell/internal/platform/lockfile"
	"github.com/nhatvu/inkwell/internal/platform/migration"
	"github.com/nhatvu/inkwell/internal/platform/sec"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
	"github.com/nhatvu/inkwell/internal/progress"
	"github.com/nhatvu/inkwell/internal/scanner"
	"github.com/nhatvu/inkwell/internal/scheduler"
	"github.com/nhatvu/inkwell/internal/settings"
	"github.com/nhatvu/inkwell/internal/watcher"
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Initialize first so that subsequent startup errors are structured JSON.
	rawLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	// Add global context to all log entries.
	log := rawLog.With(slog.String("app", "inkwell"))
	slog.SetDefault(log)

	log.Info("[Inkwell] service_initializing")

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		debugLog := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		}))
		log = debugLog.With(slog.String("app", "inkwell"))
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled")
	}

	log.Info("configuration_loaded",
		slog.String("environment", cfg.Environment),
		slog.String("port", cfg.ServerPort),
		slog.String("data_dir", cfg.DataDir),
	)

	// Root context for startup. A 30s deadline surfaces misconfiguration
	// quickly rather than hanging indefinitely.
	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	// ── 3. Storage Layout ─────────────────────────────────────────────────
	for _, dir := range []string{
		constants.DirDatabase, constants.DirCache, constants.DirCover,
		constants.DirAvatars, constants.DirBackup, constants.DirLogs,
	} {
		must(log, os.MkdirAll(cfg.Dir(dir), 0o755), "create data directory "+dir)
	}

	// ── 4. SQLite + Migrations ────────────────────────────────────────────
	db, err := sqlite.Open(startupCtx, cfg.DatabasePath(), log)
	must(log, err, "open sqlite database")
	defer func() {
		log.Info("closing database")
		if cerr := db.Close(); cerr != nil {
			log.Error("database close error", slog.Any("error", cerr))
		}
	}()

	must(log, migration.RunUp(db, log), "run migrations")

	// ── 5. Settings Registry ──────────────────────────────────────────────
	settingsService := settings.NewService(db, log)
	must(log, settingsService.Sync(startupCtx), "sync settings registry")

	// ── 6. Auth Service ───────────────────────────────────────────────────
	tokenTTL := time.Duration(cfg.AccessTokenTTLMinutes) * time.Minute
	tokenService, err := sec.NewTokenService(cfg.SecretKey, constants.AuthIssuer, tokenTTL)
	must(log, err, "initialize jwt service")

	authService := auth.NewService(db, tokenService, log)

	// ── 7. Domain Wiring ──────────────────────────────────────────────────
	comicRepository := comic.NewSQLiteRepository(db)
	comicService := comic.NewService(comicRepository, cfg.Dir(constants.DirCover), log)
	comicHandler := comic.NewHandler(comicService, authService)

	progressService := progress.NewService(db, log)
	progressHandler := progress.NewHandler(progressService, authService)

	settingsHandler := settings.NewHandler(settingsService)
	authHandler := auth.NewHandler(authService)

	// ── 8. Job Manager ────────────────────────────────────────────────────
	manager := jobs.NewManager(db, log)
	must(log, manager.RecoverInterrupted(startupCtx), "recover interrupted jobs")

	coverDir := cfg.Dir(constants.DirCover)
	backupDir := cfg.Dir(constants.DirBackup)

	manager.Register(jobs.TypeScan, func(ctx context.Context, job *jobs.Job) (string, error) {
		if job.LibraryID == nil {
			return "", errors.New("scan job without a library")
		}
		workers, err := settingsService.GetInt(ctx, settings.KeyMetadataWorkers)
		if err != nil {
			return "", err
		}
		summary, err := scanner.New(db, scanner.WorkerCount(workers), log).
			Scan(ctx, *job.LibraryID, job.Force)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(summary)
		return string(encoded), err
	})

	manager.Register(jobs.TypeThumbnail, func(ctx context.Context, job *jobs.Job) (string, error) {
		generated, err := maintenance.GenerateThumbnails(ctx, db, coverDir, log)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf(`{"generated":%d}`, generated), nil
	})

	manager.Register(jobs.TypeCleanup, func(ctx context.Context, job *jobs.Job) (string, error) {
		result, err := maintenance.Cleanup(ctx, db, job.LibraryID, log)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(result)
		return string(encoded), err
	})

	// ── 9. Health + Admin Handlers ────────────────────────────────────────
	liveness, readiness := api.NewHealthHandlers(api.HealthDependencies{
		CheckDatabase: func() error {
			return db.PingContext(context.Background())
		},
	}, log)

	runBackup := func(ctx context.Context) (string, error) {
		return maintenance.Backup(ctx, db, backupDir, log)
	}
	adminHandler := api.NewAdminHandler(db, manager, runBackup, log)

	// ── 10. Coordinator Election ──────────────────────────────────────────
	// Exactly one process per data directory runs the watcher and the
	// scheduler; everyone else serves HTTP and drains the job queue.
	coordinator, err := lockfile.Acquire(cfg.LockFilePath(), log)
	must(log, err, "acquire coordinator lock")
	defer coordinator.Release()

	runCtx, runCancel := context.WithCancel(context.Background())
	defer runCancel()

	libraryWatcher := watcher.New(db, manager, settingsService, log)
	cronScheduler := scheduler.New(settingsService, log)

	if coordinator.IsOwner() {
		must(log, libraryWatcher.Start(runCtx), "start filesystem watcher")
		defer libraryWatcher.Stop()

		registerScheduledTasks(cronScheduler, db, manager, settingsService, backupDir, log)
		must(log, cronScheduler.Start(runCtx), "start scheduler")
		defer cronScheduler.Stop()
	}

	enqueueStartupScans(runCtx, db, manager, log)

	go manager.Run(runCtx)

	// ── 11. HTTP Server ───────────────────────────────────────────────────
	handlers := api.Handlers{
		Liveness:  liveness,
		Readiness: readiness,
		Auth:      authHandler,
		Comic:     comicHandler,
		Progress:  progressHandler,
		Settings:  settingsHandler,
		Admin:     adminHandler,
	}

	server := api.NewServer(runCtx, cfg, log, tokenService, handlers)

	// ── 12. Graceful Shutdown ─────────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	// Block until OS signal or server error.
	select {
	case sig := <-quit:
		log.Info("shutdown signal received", slog.String("signal", sig.String()))
	case err := <-serverErr:
		log.Error("server startup error", slog.Any("error", err))
	}

	runCancel()

	// Give in-flight requests enough time to complete.
	shutdownTimeout := constants.ShutdownTimeout
	log.Info("shutting down server", slog.Duration("timeout", shutdownTimeout))

	if err := server.Shutdown(shutdownTimeout); err != nil {
		log.Error("shutdown error", slog.Any("error", err))
		os.Exit(1)
	}

	log.Info("server stopped cleanly")
}

// registerScheduledTasks declares the periodic task set. Each callback
// receives a fresh context from the scheduler and opens its own scope.
func registerScheduledTasks(cronScheduler *scheduler.Scheduler, db *sql.DB,
	manager *jobs.Manager, settingsService *settings.Service, backupDir string, log *slog.Logger) {

	cronScheduler.AddTask(scheduler.Task{
		ID:   scheduler.TaskScan,
		Hour: 2,
		Run: func(ctx context.Context) {
			forEachLibrary(ctx, db, log, func(libraryID int64) {
				if _, err := manager.EnqueueScan(ctx, libraryID, false); err != nil {
					log.Error("scheduled scan enqueue failed",
						slog.Int64("library_id", libraryID), slog.Any("error", err))
				}
			})
		},
	})

	cronScheduler.AddTask(scheduler.Task{
		ID:   scheduler.TaskBackup,
		Hour: 3,
		Run: func(ctx context.Context) {
			if _, err := maintenance.Backup(ctx, db, backupDir, log); err != nil {
				log.Error("scheduled backup failed", slog.Any("error", err))
				return
			}
			retention, err := settingsService.GetInt(ctx, settings.KeyRetentionDays)
			if err != nil {
				log.Error("backup retention lookup failed", slog.Any("error", err))
				return
			}
			if _, err := maintenance.PruneBackups(ctx, backupDir, retention, log); err != nil {
				log.Error("backup pruning failed", slog.Any("error", err))
			}
		},
	})

	cronScheduler.AddTask(scheduler.Task{
		ID:   scheduler.TaskCleanup,
		Hour: 4,
		Run: func(ctx context.Context) {
			if _, err := manager.EnqueueCleanup(ctx); err != nil {
				log.Error("scheduled cleanup enqueue failed", slog.Any("error", err))
			}
		},
	})
}

// enqueueStartupScans queues a scan for every library flagged
// scan_on_startup. De-duplication in the job manager makes this safe
// across concurrent workers.
func enqueueStartupScans(ctx context.Context, db *sql.DB, manager *jobs.Manager, log *slog.Logger) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM libraries WHERE scan_on_startup = 1`)
	if err != nil {
		log.Error("startup scan query failed", slog.Any("error", err))
		return
	}
	defer rows.Close()

	for rows.Next() {
		var libraryID int64
		if err := rows.Scan(&libraryID); err != nil {
			log.Error("startup scan row failed", slog.Any("error", err))
			return
		}
		if _, err := manager.EnqueueScan(ctx, libraryID, false); err != nil {
			log.Error("startup scan enqueue failed",
				slog.Int64("library_id", libraryID), slog.Any("error", err))
		}
	}
	if err := rows.Err(); err != nil {
		log.Error("startup scan query failed", slog.Any("error", err))
	}

}

// forEachLibrary invokes fn with every library id.
func forEachLibrary(ctx context.Context, db *sql.DB, log *slog.Logger, fn func(int64)) {
	rows, err := db.QueryContext(ctx, `SELECT id FROM libraries`)
	if err != nil {
		log.Error("library listing failed", slog.Any("error", err))
		return
	}
	defer rows.Close()

	for rows.Next() {
		var libraryID int64
		if err := rows.Scan(&libraryID); err != nil {
			log.Error("library row failed", slog.Any("error", err))
			return
		}
		fn(libraryID)
	}
	if err := rows.Err(); err != nil {
		log.Error("library listing failed", slog.Any("error", err))
	}
}

// must logs a structured fatal error and terminates the process if err is non-nil.
//
// It is intentionally limited to startup wiring. After startup, all errors
// must be returned and handled explicitly (never panic).
func must(log *slog.Logger, err error, context string) {
	if err != nil {
		log.Error("startup failure",
			slog.String("context", context),
			slog.Any("error", err),
		)
		os.Exit(1)
	}
}
