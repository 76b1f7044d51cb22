// Copyright (c) 2026 Inkwell. All rights reserved.

package watcher_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/jobs"
	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
	"github.com/nhatvu/inkwell/internal/settings"
	"github.com/nhatvu/inkwell/internal/watcher"
)

// recordingQueue captures enqueued scans.
type recordingQueue struct {
	mu    sync.Mutex
	scans []int64
}

func (queue *recordingQueue) EnqueueScan(ctx context.Context, libraryID int64, force bool) (*jobs.EnqueueResult, error) {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	queue.scans = append(queue.scans, libraryID)
	return &jobs.EnqueueResult{Status: "queued", JobID: int64(len(queue.scans))}, nil
}

func (queue *recordingQueue) count() int {
	queue.mu.Lock()
	defer queue.mu.Unlock()
	return len(queue.scans)
}

func waitFor(t *testing.T, timeout time.Duration, condition func() bool) bool {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return true
		}
		time.Sleep(25 * time.Millisecond)
	}
	return condition()
}

/*
TestWatcher_CoalescesEvents drops several files in quick succession and
expects exactly one scan after the quiet window.
*/
func TestWatcher_CoalescesEvents(t *testing.T) {
	db := sqlitetest.NewDB(t)
	ctx := context.Background()

	settingsService := settings.NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, settingsService.Sync(ctx))
	require.NoError(t, settingsService.Update(ctx, settings.KeyBatchWindow, "1"))

	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db,
		`INSERT INTO libraries (name, root_path, watch_enabled) VALUES ('Main', ?, 1)`, root)

	queue := &recordingQueue{}
	observer := watcher.New(db, queue, settingsService, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, observer.Start(ctx))
	defer observer.Stop()

	for _, name := range []string{"a.cbz", "b.cbz", "c.cbz"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), []byte("x"), 0o644))
		time.Sleep(50 * time.Millisecond)
	}

	require.True(t, waitFor(t, 5*time.Second, func() bool { return queue.count() > 0 }),
		"the quiet window elapses and one scan fires")
	assert.Equal(t, 1, queue.count(), "bursts coalesce into a single scan")
	assert.Equal(t, libraryID, queue.scans[0])
}

/*
TestWatcher_NewDirectoriesJoin creates a subdirectory after the watch
started and expects events inside it to fire a scan.
*/
func TestWatcher_NewDirectoriesJoin(t *testing.T) {
	db := sqlitetest.NewDB(t)
	ctx := context.Background()

	settingsService := settings.NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, settingsService.Sync(ctx))
	require.NoError(t, settingsService.Update(ctx, settings.KeyBatchWindow, "1"))

	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db,
		`INSERT INTO libraries (name, root_path, watch_enabled) VALUES ('Main', ?, 1)`, root)
	_ = libraryID

	queue := &recordingQueue{}
	observer := watcher.New(db, queue, settingsService, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, observer.Start(ctx))
	defer observer.Stop()

	subdir := filepath.Join(root, "series-x")
	require.NoError(t, os.Mkdir(subdir, 0o755))
	time.Sleep(100 * time.Millisecond)
	require.NoError(t, os.WriteFile(filepath.Join(subdir, "issue-1.cbz"), []byte("x"), 0o644))

	assert.True(t, waitFor(t, 5*time.Second, func() bool { return queue.count() > 0 }))
}

/*
TestWatcher_WindowFixedFromFirstEvent keeps writing files at intervals
shorter than the quiet window. The window counts from the first event,
so a sustained stream must still produce a scan instead of pushing the
timer out forever.
*/
func TestWatcher_WindowFixedFromFirstEvent(t *testing.T) {
	db := sqlitetest.NewDB(t)
	ctx := context.Background()

	settingsService := settings.NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, settingsService.Sync(ctx))
	require.NoError(t, settingsService.Update(ctx, settings.KeyBatchWindow, "1"))

	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db,
		`INSERT INTO libraries (name, root_path, watch_enabled) VALUES ('Main', ?, 1)`, root)
	_ = libraryID

	queue := &recordingQueue{}
	observer := watcher.New(db, queue, settingsService, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, observer.Start(ctx))
	defer observer.Stop()

	// Ten writes 300ms apart span three seconds; a timer restarted on
	// every event would never elapse during the stream.
	fired := false
	for index := 0; index < 10; index++ {
		name := filepath.Join(root, "issue-"+string(rune('a'+index))+".cbz")
		require.NoError(t, os.WriteFile(name, []byte("x"), 0o644))
		time.Sleep(300 * time.Millisecond)
		if queue.count() > 0 {
			fired = true
			break
		}
	}
	assert.True(t, fired, "the scan fires one window after the first event")
}

/*
TestWatcher_DirectoryEventsDoNotArm creates an empty subdirectory and
expects no scan: only file changes start the quiet window.
*/
func TestWatcher_DirectoryEventsDoNotArm(t *testing.T) {
	db := sqlitetest.NewDB(t)
	ctx := context.Background()

	settingsService := settings.NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, settingsService.Sync(ctx))
	require.NoError(t, settingsService.Update(ctx, settings.KeyBatchWindow, "1"))

	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db,
		`INSERT INTO libraries (name, root_path, watch_enabled) VALUES ('Main', ?, 1)`, root)
	_ = libraryID

	queue := &recordingQueue{}
	observer := watcher.New(db, queue, settingsService, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, observer.Start(ctx))
	defer observer.Stop()

	require.NoError(t, os.Mkdir(filepath.Join(root, "series-y"), 0o755))
	time.Sleep(1500 * time.Millisecond)

	assert.Zero(t, queue.count(), "an empty directory alone triggers nothing")
}

/*
TestWatcher_UnwatchCancels disables a library mid-burst; the pending
timer must not fire.
*/
func TestWatcher_UnwatchCancels(t *testing.T) {
	db := sqlitetest.NewDB(t)
	ctx := context.Background()

	settingsService := settings.NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, settingsService.Sync(ctx))
	require.NoError(t, settingsService.Update(ctx, settings.KeyBatchWindow, "1"))

	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db,
		`INSERT INTO libraries (name, root_path, watch_enabled) VALUES ('Main', ?, 1)`, root)

	queue := &recordingQueue{}
	observer := watcher.New(db, queue, settingsService, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, observer.Start(ctx))

	require.NoError(t, os.WriteFile(filepath.Join(root, "a.cbz"), []byte("x"), 0o644))
	time.Sleep(200 * time.Millisecond)

	observer.Unwatch(libraryID)
	time.Sleep(1500 * time.Millisecond)

	assert.Zero(t, queue.count(), "disabling cancels the armed timer")
}
