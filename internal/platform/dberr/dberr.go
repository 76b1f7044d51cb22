// Copyright (c) 2026 Inkwell. All rights reserved.

// Package dberr provides a bridge between low-level database errors and
// higher-level application errors.
package dberr

import (
	"database/sql"
	"errors"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
)

var (
	// ErrNotFound is a standard error returned when a queried row doesn't exist.
	ErrNotFound = apperr.NotFound("Resource")
)

// Wrap inspects a database error and wraps it into a meaningful [apperr.AppError].
// It hides internal database details from the client while classifying the error type.
func Wrap(err error, action string) error {
	if err == nil {
		return nil
	}

	// 1. Not Found mapping
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}

	// 2. Unique constraint violations surface as conflicts.
	if sqlite.IsUniqueViolation(err) {
		return apperr.Conflict("Duplicate value violates a uniqueness rule")
	}

	// 3. Busy/locked errors propagate unwrapped so retry wrappers can see them.
	if sqlite.IsBusy(err) {
		return err
	}

	// 4. Unknown query errors become Internal Server Errors.
	return apperr.Internal(err)
}
