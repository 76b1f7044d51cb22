// Copyright (c) 2026 Inkwell. All rights reserved.

package jobs

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
)

const (
	// pollInterval is the sleep between job table polls.
	pollInterval = 2 * time.Second

	// sweepInterval is how often idle integrity sweeps run.
	sweepInterval = 30 * time.Second

	// flagRetryAttempts bounds retries of status and flag writes under
	// transient lock errors.
	flagRetryAttempts = 5
	flagRetryDelay    = 50 * time.Millisecond
)

// Handler executes one claimed job and returns its JSON result payload.
type Handler func(ctx context.Context, job *Job) (string, error)

// Manager owns the jobs table: enqueueing with de-duplication, the
// polling worker, crash recovery and the integrity sweep.
type Manager struct {
	db       *sql.DB
	logger   *slog.Logger
	handlers map[string]Handler
}

func NewManager(db *sql.DB, logger *slog.Logger) *Manager {
	return &Manager{db: db, logger: logger, handlers: make(map[string]Handler)}
}

// Register binds a handler to a job type. Must be called before Run.
func (manager *Manager) Register(jobType string, handler Handler) {
	manager.handlers[jobType] = handler
}

// RecoverInterrupted fails every job left running by a previous process
// and clears the matching library scan flags. Called once at startup,
// before the worker starts.
func (manager *Manager) RecoverInterrupted(ctx context.Context) error {
	err := sqlite.WriteTx(ctx, manager.db, func(tx *sqlite.Tx) error {
		result, err := tx.ExecContext(ctx, `
			UPDATE jobs SET status = ?, completed_at = CURRENT_TIMESTAMP, error = ?
			WHERE status = ?`, StatusFailed, interruptedReason, StatusRunning)
		if err != nil {
			return err
		}
		recovered, _ := result.RowsAffected()
		if recovered > 0 {
			manager.logger.WarnContext(ctx, "jobs_recovered_after_restart", slog.Int64("count", recovered))
		}

		_, err = tx.ExecContext(ctx, `UPDATE libraries SET is_scanning = 0 WHERE is_scanning = 1`)
		return err
	})
	return dberr.Wrap(err, "recover_jobs")
}

// EnqueueScan queues a scan for one library. A pending or running scan
// for the same library wins the de-duplication and its id is returned.
func (manager *Manager) EnqueueScan(ctx context.Context, libraryID int64, force bool) (*EnqueueResult, error) {
	return manager.enqueue(ctx, TypeScan, &libraryID, force)
}

// EnqueueThumbnails queues thumbnail generation for one library.
func (manager *Manager) EnqueueThumbnails(ctx context.Context, libraryID int64) (*EnqueueResult, error) {
	return manager.enqueue(ctx, TypeThumbnail, &libraryID, false)
}

// EnqueueCleanup queues the global cleanup pass.
func (manager *Manager) EnqueueCleanup(ctx context.Context) (*EnqueueResult, error) {
	return manager.enqueue(ctx, TypeCleanup, nil, false)
}

func (manager *Manager) enqueue(ctx context.Context, jobType string, libraryID *int64, force bool) (*EnqueueResult, error) {
	var outcome *EnqueueResult
	err := sqlite.WriteTx(ctx, manager.db, func(tx *sqlite.Tx) error {
		// De-duplication: an equivalent job that has not finished yet
		// absorbs the request.
		dedup := `SELECT id FROM jobs WHERE type = ? AND status IN ('pending', 'running')`
		args := []any{jobType}
		if libraryID != nil {
			dedup += ` AND library_id = ?`
			args = append(args, *libraryID)
		}
		dedup += ` LIMIT 1`

		var existingID int64
		err := tx.QueryRowContext(ctx, dedup, args...).Scan(&existingID)
		switch {
		case err == nil:
			outcome = &EnqueueResult{Status: "ignored", JobID: existingID}
			return nil
		case err != sql.ErrNoRows:
			return err
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO jobs (type, library_id, force) VALUES (?, ?, ?)`,
			jobType, libraryID, force)
		if err != nil {
			return err
		}
		id, err := result.LastInsertId()
		if err != nil {
			return err
		}
		outcome = &EnqueueResult{Status: "queued", JobID: id}
		return nil
	})
	if err != nil {
		return nil, dberr.Wrap(err, "enqueue_job")
	}
	return outcome, nil
}

// Run polls for work until ctx is cancelled. It never holds a
// transaction across a job execution.
func (manager *Manager) Run(ctx context.Context) {
	manager.logger.InfoContext(ctx, "job_worker_started")
	sweep := time.NewTicker(sweepInterval)
	defer sweep.Stop()

	for {
		worked := manager.RunOnce(ctx)

		if worked {
			// Drain the queue without sleeping between jobs.
			continue
		}

		select {
		case <-ctx.Done():
			manager.logger.Info("job_worker_stopped")
			return
		case <-sweep.C:
			manager.integritySweep(ctx)
		case <-time.After(pollInterval):
		}
	}
}

// RunOnce claims and executes at most one pending job, returning
// whether one ran. The polling loop calls it; callers that need a job
// to finish synchronously can too.
func (manager *Manager) RunOnce(ctx context.Context) bool {
	job, err := manager.claimNext(ctx)
	if err != nil {
		manager.logger.ErrorContext(ctx, "job_claim_failed", slog.Any("error", err))
		return false
	}
	if job == nil {
		return false
	}

	logger := manager.logger.With(slog.Int64("job_id", job.ID), slog.String("type", job.Type))
	logger.InfoContext(ctx, "job_started")

	handler, ok := manager.handlers[job.Type]
	if !ok {
		manager.finish(ctx, job, "", fmt.Errorf("no handler registered for %q", job.Type))
		return true
	}

	if job.Type == TypeScan && job.LibraryID != nil {
		manager.setScanning(ctx, *job.LibraryID, true)
	}

	result, err := handler(ctx, job)

	if job.Type == TypeScan && job.LibraryID != nil {
		manager.setScanning(ctx, *job.LibraryID, false)
	}

	manager.finish(ctx, job, result, err)

	if err != nil {
		logger.ErrorContext(ctx, "job_failed", slog.Any("error", err))
		return true
	}
	logger.InfoContext(ctx, "job_completed")
	manager.chain(ctx, job)
	return true
}

// claimNext picks the highest-priority pending job and claims it with a
// conditional update. Losing the claim race skips this cycle.
func (manager *Manager) claimNext(ctx context.Context) (*Job, error) {
	job, err := scanRow(manager.db.QueryRowContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status = 'pending'
		ORDER BY CASE type WHEN 'scan' THEN 0 WHEN 'thumbnail' THEN 1 ELSE 2 END, created_at, id
		LIMIT 1`))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, dberr.Wrap(err, "next_pending_job")
	}

	var claimed bool
	err = sqlite.Retry(ctx, flagRetryAttempts, flagRetryDelay, func() error {
		result, err := manager.db.ExecContext(ctx, `
			UPDATE jobs SET status = 'running', started_at = CURRENT_TIMESTAMP
			WHERE id = ? AND status = 'pending'`, job.ID)
		if err != nil {
			return err
		}
		affected, err := result.RowsAffected()
		claimed = affected == 1
		return err
	})
	if err != nil {
		return nil, dberr.Wrap(err, "claim_job")
	}
	if !claimed {
		return nil, nil
	}
	job.Status = StatusRunning
	return job, nil
}

// finish records the terminal state of a job.
func (manager *Manager) finish(ctx context.Context, job *Job, result string, jobErr error) {
	err := sqlite.Retry(ctx, flagRetryAttempts, flagRetryDelay, func() error {
		if jobErr != nil {
			_, err := manager.db.ExecContext(ctx, `
				UPDATE jobs SET status = ?, completed_at = CURRENT_TIMESTAMP, error = ?
				WHERE id = ?`, StatusFailed, jobErr.Error(), job.ID)
			return err
		}
		_, err := manager.db.ExecContext(ctx, `
			UPDATE jobs SET status = ?, completed_at = CURRENT_TIMESTAMP, result = ?
			WHERE id = ?`, StatusCompleted, result, job.ID)
		return err
	})
	if err != nil {
		manager.logger.ErrorContext(ctx, "job_finish_write_failed",
			slog.Int64("job_id", job.ID), slog.Any("error", err))
	}
}

// chain enqueues the follow-up work of a successful job: scans spawn
// thumbnail jobs, thumbnail jobs spawn the cleanup pass. Failures abort
// the chain.
func (manager *Manager) chain(ctx context.Context, job *Job) {
	var err error
	switch job.Type {
	case TypeScan:
		if job.LibraryID != nil {
			_, err = manager.EnqueueThumbnails(ctx, *job.LibraryID)
		}
	case TypeThumbnail:
		_, err = manager.EnqueueCleanup(ctx)
	}
	if err != nil {
		manager.logger.ErrorContext(ctx, "job_chain_failed",
			slog.Int64("job_id", job.ID), slog.Any("error", err))
	}
}

// setScanning flips a library's is_scanning flag with bounded retry.
func (manager *Manager) setScanning(ctx context.Context, libraryID int64, scanning bool) {
	err := sqlite.Retry(ctx, flagRetryAttempts, flagRetryDelay, func() error {
		_, err := manager.db.ExecContext(ctx,
			`UPDATE libraries SET is_scanning = ? WHERE id = ?`, scanning, libraryID)
		return err
	})
	if err != nil {
		manager.logger.ErrorContext(ctx, "scan_flag_write_failed",
			slog.Int64("library_id", libraryID), slog.Any("error", err))
	}
}

// integritySweep resets scan flags that lost their running job, which
// happens when a flag write failed or a job row was altered manually.
func (manager *Manager) integritySweep(ctx context.Context) {
	result, err := manager.db.ExecContext(ctx, `
		UPDATE libraries SET is_scanning = 0
		WHERE is_scanning = 1
		  AND id NOT IN (
			SELECT library_id FROM jobs
			WHERE status = 'running' AND type = 'scan' AND library_id IS NOT NULL
		  )`)
	if err != nil {
		manager.logger.ErrorContext(ctx, "integrity_sweep_failed", slog.Any("error", err))
		return
	}
	if reset, _ := result.RowsAffected(); reset > 0 {
		manager.logger.WarnContext(ctx, "integrity_sweep_reset_flags", slog.Int64("count", reset))
	}
}
