// Copyright (c) 2026 Inkwell. All rights reserved.

// Package sqlitetest provides a migrated temp-file database for store
// tests. Each call opens a fresh database under t.TempDir, applies the
// embedded migrations, and registers cleanup.
package sqlitetest

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/platform/migration"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
)

// NewDB opens a fresh migrated database for one test.
func NewDB(t *testing.T) *sql.DB {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	path := filepath.Join(t.TempDir(), "inkwell_test.db")

	db, err := sqlite.Open(context.Background(), path, logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, migration.RunUp(db, logger))
	return db
}

// Exec runs one statement and fails the test on error.
func Exec(t *testing.T, db *sql.DB, query string, args ...any) {
	t.Helper()
	_, err := db.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
}

// InsertID runs one INSERT and returns the new rowid.
func InsertID(t *testing.T, db *sql.DB, query string, args ...any) int64 {
	t.Helper()
	result, err := db.ExecContext(context.Background(), query, args...)
	require.NoError(t, err)
	id, err := result.LastInsertId()
	require.NoError(t, err)
	return id
}
