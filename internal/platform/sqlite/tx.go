// Copyright (c) 2026 Inkwell. All rights reserved.

package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// # Write Transactions
//
// database/sql cannot express SQLite transaction modes, and the modernc
// driver's BeginTx always opens DEFERRED transactions. A deferred
// transaction upgrades to a write lock mid-flight and can fail with
// SQLITE_BUSY after work has been done. Acquiring the RESERVED lock up
// front with BEGIN IMMEDIATE moves all lock contention to the start of the
// transaction, where it is cheap to retry.

const (
	// beginRetryAttempts bounds BEGIN IMMEDIATE retries under writer contention.
	beginRetryAttempts = 5
	// beginRetryBaseDelay is the initial backoff between begin attempts.
	beginRetryBaseDelay = 10 * time.Millisecond
)

// Tx is a write transaction bound to a single connection.
//
// It exposes the subset of database/sql methods stores need. All statements
// issued through it run on the connection holding the RESERVED lock.
type Tx struct {
	conn *sql.Conn
}

// ExecContext executes a statement inside the transaction.
func (t *Tx) ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.conn.ExecContext(ctx, query, args...)
}

// QueryContext runs a query inside the transaction.
func (t *Tx) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.conn.QueryContext(ctx, query, args...)
}

// QueryRowContext runs a single-row query inside the transaction.
func (t *Tx) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return t.conn.QueryRowContext(ctx, query, args...)
}

// WriteTx runs fn inside a BEGIN IMMEDIATE transaction with bounded retry
// on busy errors. The transaction commits when fn returns nil and rolls
// back otherwise, including on panic.
func WriteTx(ctx context.Context, db *sql.DB, fn func(tx *Tx) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("sqlite: failed to acquire connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	return writeOnConn(ctx, conn, fn)
}

// WriteOnConn runs fn as a write transaction on an already-held connection.
// The scan writer uses this to reuse one connection across many batches.
func WriteOnConn(ctx context.Context, conn *sql.Conn, fn func(tx *Tx) error) error {
	return writeOnConn(ctx, conn, fn)
}

func writeOnConn(ctx context.Context, conn *sql.Conn, fn func(tx *Tx) error) error {
	if err := beginImmediate(ctx, conn); err != nil {
		return fmt.Errorf("sqlite: failed to begin immediate transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			// Background context so rollback happens even when ctx is done.
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(&Tx{conn: conn}); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("sqlite: commit failed: %w", err)
	}
	committed = true
	return nil
}

// beginImmediate issues BEGIN IMMEDIATE with exponential backoff on
// SQLITE_BUSY, up to beginRetryAttempts tries.
func beginImmediate(ctx context.Context, conn *sql.Conn) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(beginRetryBaseDelay),
		), beginRetryAttempts),
		ctx,
	)

	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if IsBusy(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, policy)
}

// Retry runs op with the platform's bounded backoff policy for transient
// lock errors outside of explicit transactions (single-statement writes).
func Retry(ctx context.Context, attempts uint64, baseDelay time.Duration, op func() error) error {
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(baseDelay),
		), attempts),
		ctx,
	)

	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if IsBusy(err) {
			return err
		}
		return backoff.Permanent(err)
	}, policy)
}
