// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package jobs models long-running work as rows in the jobs table.

A job moves pending -> running -> completed | failed. The claim is a
conditional update so concurrent workers cannot start the same job, and
every crash leaves a recoverable trail: rows stuck in running are failed
on the next startup.
*/
package jobs

import (
	"context"
	"database/sql"
	"time"

	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/pkg/pagination"
)

// Job types, in claim priority order.
const (
	TypeScan      = "scan"
	TypeThumbnail = "thumbnail"
	TypeCleanup   = "cleanup"
)

// Job states.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// interruptedReason marks jobs failed by crash recovery.
const interruptedReason = "interrupted by server restart"

// Job is one row of the jobs table.
type Job struct {
	ID          int64      `json:"id"`
	Type        string     `json:"type"`
	LibraryID   *int64     `json:"library_id"`
	Status      string     `json:"status"`
	Force       bool       `json:"force"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Result      *string    `json:"result"`
	Error       *string    `json:"error"`
}

// EnqueueResult reports whether a job was queued or de-duplicated onto
// an existing one.
type EnqueueResult struct {
	Status string `json:"status"` // queued | ignored
	JobID  int64  `json:"job_id"`
}

const jobColumns = `id, type, library_id, status, force, created_at, started_at, completed_at, result, error`

func scanRow(row interface{ Scan(...any) error }) (*Job, error) {
	job := &Job{}
	err := row.Scan(&job.ID, &job.Type, &job.LibraryID, &job.Status, &job.Force,
		&job.CreatedAt, &job.StartedAt, &job.CompletedAt, &job.Result, &job.Error)
	if err != nil {
		return nil, err
	}
	return job, nil
}

// ListJobs returns the job history, newest first.
func ListJobs(ctx context.Context, db *sql.DB, params pagination.Params) ([]*Job, int, error) {
	var total int
	if err := db.QueryRowContext(ctx, `SELECT COUNT(*) FROM jobs`).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_jobs")
	}

	rows, err := db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		ORDER BY created_at DESC, id DESC
		LIMIT ? OFFSET ?`, params.Size, params.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_jobs")
	}
	defer rows.Close()

	list := make([]*Job, 0)
	for rows.Next() {
		job, err := scanRow(rows)
		if err != nil {
			return nil, 0, dberr.Wrap(err, "scan_job")
		}
		list = append(list, job)
	}
	return list, total, dberr.Wrap(rows.Err(), "list_jobs")
}

// ActiveJobs returns pending and running jobs in claim order.
func ActiveJobs(ctx context.Context, db *sql.DB) ([]*Job, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT `+jobColumns+` FROM jobs
		WHERE status IN ('pending', 'running')
		ORDER BY CASE type WHEN 'scan' THEN 0 WHEN 'thumbnail' THEN 1 ELSE 2 END, created_at, id`)
	if err != nil {
		return nil, dberr.Wrap(err, "list_active_jobs")
	}
	defer rows.Close()

	list := make([]*Job, 0)
	for rows.Next() {
		job, err := scanRow(rows)
		if err != nil {
			return nil, dberr.Wrap(err, "scan_job")
		}
		list = append(list, job)
	}
	return list, dberr.Wrap(rows.Err(), "list_active_jobs")
}
