// Copyright (c) 2026 Inkwell. All rights reserved.

// Package sqlite provides the managed SQLite database handle for the
// Inkwell application.
//
// # Architecture
//
// This package is part of the Infrastructure layer. It owns connection
// setup (pragmas, pool sizing) and the write-transaction discipline every
// store must follow: SQLite allows many concurrent readers in WAL mode but
// only one writer, so all mutations run inside BEGIN IMMEDIATE transactions
// acquired with bounded retries on SQLITE_BUSY.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver
	sqlite3 "modernc.org/sqlite"
)

// Opinionated connection settings for the Inkwell workload.
const (
	// maxOpenConns bounds concurrent readers. The single-writer rule is
	// enforced by immediate transactions, not by the pool.
	maxOpenConns = 10
	// busyTimeout is the driver-level wait before a lock error surfaces.
	busyTimeout = 5 * time.Second
	// pingTimeout is the maximum duration for a health check ping.
	pingTimeout = 2 * time.Second
)

// Open creates and validates a SQLite database handle.
//
// The journal is switched to WAL so scans can commit batches while readers
// make progress, and foreign keys are enforced so cascades in the schema
// actually fire. Pragmas are carried in the DSN because they are
// per-connection state: the driver replays them on every connection the
// pool opens, not just the one a plain PRAGMA statement happens to land on.
func Open(ctx context.Context, path string, logger *slog.Logger) (*sql.DB, error) {
	dsn := fmt.Sprintf(
		"file:%s?_time_format=sqlite"+
			"&_pragma=busy_timeout(%d)"+
			"&_pragma=journal_mode(WAL)"+
			"&_pragma=synchronous(NORMAL)"+
			"&_pragma=foreign_keys(1)"+
			"&_pragma=cache_size(-20000)",
		path, busyTimeout.Milliseconds())

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlite: failed to open %s: %w", path, err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetConnMaxIdleTime(5 * time.Minute)

	if err := Ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	logger.Info("sqlite database opened",
		slog.String("path", path),
		slog.Int("max_conns", maxOpenConns),
	)

	return db, nil
}

// Ping verifies that the database handle is healthy.
func Ping(ctx context.Context, db *sql.DB) error {
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		return fmt.Errorf("sqlite: ping failed: %w", err)
	}
	return nil
}

// # Error Classification

// IsBusy reports whether err is a transient SQLITE_BUSY / SQLITE_LOCKED
// condition that a bounded retry may resolve.
func IsBusy(err error) bool {
	if err == nil {
		return false
	}

	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		// Primary result codes 5 (SQLITE_BUSY) and 6 (SQLITE_LOCKED),
		// including their extended variants.
		switch serr.Code() & 0xff {
		case 5, 6:
			return true
		}
	}

	// The driver occasionally surfaces the textual form only.
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked")
}

// IsUniqueViolation reports whether err is a UNIQUE or PRIMARY KEY
// constraint failure.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	var serr *sqlite3.Error
	if errors.As(err, &serr) {
		// Primary result code 19 (SQLITE_CONSTRAINT). Extended codes 1555
		// (PRIMARYKEY) and 2067 (UNIQUE) share the low byte.
		if serr.Code()&0xff == 19 {
			return strings.Contains(err.Error(), "UNIQUE")
		}
	}

	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}
