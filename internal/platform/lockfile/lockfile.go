// Copyright (c) 2026 Inkwell. All rights reserved.

// Package lockfile elects exactly one Inkwell process as the owner of the
// singleton subsystems (filesystem watcher and scheduler).
//
// # Architecture
//
// Multi-worker deployments run several identical processes against one
// database and one filesystem. Subsystems that must not be duplicated are
// guarded by an exclusive, non-blocking file lock: the first process to
// acquire it wins, every other process logs and skips those subsystems.
// There is no language-level "master worker" trick; the lock file is the
// only election mechanism.
package lockfile

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gofrs/flock"
)

// Coordinator holds (or failed to hold) the process-singleton lock.
type Coordinator struct {
	lock   *flock.Flock
	owner  bool
	logger *slog.Logger
}

// Acquire attempts a non-blocking exclusive lock on path.
//
// It never blocks: either this process becomes the singleton owner or it
// immediately learns another process already is.
func Acquire(path string, logger *slog.Logger) (*Coordinator, error) {
	lock := flock.New(path)

	owner, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lockfile: failed to probe %s: %w", path, err)
	}

	if owner {
		logger.Info("singleton lock acquired", slog.String("path", path))
	} else {
		logger.Info("singleton lock held elsewhere, watcher and scheduler disabled",
			slog.String("path", path))
	}

	return &Coordinator{lock: lock, owner: owner, logger: logger}, nil
}

// IsOwner reports whether this process won the election.
func (c *Coordinator) IsOwner() bool {
	return c.owner
}

// Release drops the lock and removes the lock file.
//
// Safe to call on non-owners; it is a no-op for them.
func (c *Coordinator) Release() {
	if !c.owner {
		return
	}

	if err := c.lock.Unlock(); err != nil {
		c.logger.Error("failed to release singleton lock", slog.Any("error", err))
		return
	}

	// Best effort: the lock is already released, a leftover file is harmless.
	if err := os.Remove(c.lock.Path()); err != nil && !os.IsNotExist(err) {
		c.logger.Warn("failed to remove lock file", slog.Any("error", err))
	}

	c.owner = false
}
