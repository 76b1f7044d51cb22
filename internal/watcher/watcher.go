// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package watcher turns filesystem events into coalesced scan jobs.

Each watch-enabled library gets one recursive fsnotify observer and one
timer. Any event under the root re-arms the timer; only when the library
has been quiet for the batch window does a single non-forced scan get
enqueued. The watcher runs on the coordinator process only.
*/
package watcher

import (
	"context"
	"database/sql"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/nhatvu/inkwell/internal/jobs"
	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/settings"
)

// defaultBatchWindow applies when the setting cannot be read.
const defaultBatchWindow = 600 * time.Second

// ScanQueue is the slice of the job manager the watcher needs.
type ScanQueue interface {
	EnqueueScan(ctx context.Context, libraryID int64, force bool) (*jobs.EnqueueResult, error)
}

// Watcher manages the per-library observers.
type Watcher struct {
	db       *sql.DB
	queue    ScanQueue
	settings *settings.Service
	logger   *slog.Logger

	mu        sync.Mutex
	libraries map[int64]*libraryWatch
}

// libraryWatch is one observed library root.
type libraryWatch struct {
	id       int64
	root     string
	observer *fsnotify.Watcher
	timer    *time.Timer
	done     chan struct{}
}

func New(db *sql.DB, queue ScanQueue, settingsService *settings.Service, logger *slog.Logger) *Watcher {
	return &Watcher{
		db:        db,
		queue:     queue,
		settings:  settingsService,
		logger:    logger,
		libraries: make(map[int64]*libraryWatch),
	}
}

// Start subscribes every watch-enabled library.
func (watcher *Watcher) Start(ctx context.Context) error {
	rows, err := watcher.db.QueryContext(ctx,
		`SELECT id, root_path FROM libraries WHERE watch_enabled = 1`)
	if err != nil {
		return dberr.Wrap(err, "load_watched_libraries")
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var root string
		if err := rows.Scan(&id, &root); err != nil {
			return dberr.Wrap(err, "scan_watched_library")
		}
		if err := watcher.Watch(ctx, id, root); err != nil {
			watcher.logger.ErrorContext(ctx, "watch_failed",
				slog.Int64("library_id", id), slog.String("root", root), slog.Any("error", err))
		}
	}
	return dberr.Wrap(rows.Err(), "load_watched_libraries")
}

// Watch subscribes one library root. Re-watching an already observed
// library is a no-op.
func (watcher *Watcher) Watch(ctx context.Context, libraryID int64, root string) error {
	watcher.mu.Lock()
	defer watcher.mu.Unlock()

	if _, ok := watcher.libraries[libraryID]; ok {
		return nil
	}

	observer, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := addRecursive(observer, root); err != nil {
		_ = observer.Close()
		return err
	}

	watch := &libraryWatch{
		id:       libraryID,
		root:     root,
		observer: observer,
		done:     make(chan struct{}),
	}
	watcher.libraries[libraryID] = watch

	go watcher.loop(ctx, watch)
	watcher.logger.InfoContext(ctx, "library_watch_started",
		slog.Int64("library_id", libraryID), slog.String("root", root))
	return nil
}

// Unwatch cancels the pending timer and unsubscribes one library.
func (watcher *Watcher) Unwatch(libraryID int64) {
	watcher.mu.Lock()
	watch, ok := watcher.libraries[libraryID]
	if ok {
		delete(watcher.libraries, libraryID)
	}
	watcher.mu.Unlock()

	if !ok {
		return
	}
	if watch.timer != nil {
		watch.timer.Stop()
	}
	_ = watch.observer.Close()
	<-watch.done
	watcher.logger.Info("library_watch_stopped", slog.Int64("library_id", libraryID))
}

// Stop unsubscribes everything.
func (watcher *Watcher) Stop() {
	watcher.mu.Lock()
	ids := make([]int64, 0, len(watcher.libraries))
	for id := range watcher.libraries {
		ids = append(ids, id)
	}
	watcher.mu.Unlock()

	for _, id := range ids {
		watcher.Unwatch(id)
	}
}

// loop consumes events for one library until its observer closes.
func (watcher *Watcher) loop(ctx context.Context, watch *libraryWatch) {
	defer close(watch.done)

	for {
		select {
		case event, ok := <-watch.observer.Events:
			if !ok {
				return
			}
			// New directories join the recursive watch but do not
			// count as changes; only file events start the window.
			info, statErr := os.Stat(event.Name)
			isDirectory := statErr == nil && info.IsDir()
			if isDirectory && event.Op.Has(fsnotify.Create) {
				_ = addRecursive(watch.observer, event.Name)
			}
			if !isDirectory {
				watcher.arm(ctx, watch)
			}

		case err, ok := <-watch.observer.Errors:
			if !ok {
				return
			}
			watcher.logger.WarnContext(ctx, "watch_error",
				slog.Int64("library_id", watch.id), slog.Any("error", err))
		}
	}
}

// arm starts the library's coalescing timer. The window is fixed from
// the first event: later events ride the already-armed timer so a busy
// import cannot postpone the scan indefinitely.
func (watcher *Watcher) arm(ctx context.Context, watch *libraryWatch) {
	window := watcher.batchWindow(ctx)

	watcher.mu.Lock()
	defer watcher.mu.Unlock()

	if watch.timer != nil {
		return
	}
	watch.timer = time.AfterFunc(window, func() {
		watcher.fire(ctx, watch)
	})
}

// fire enqueues the coalesced scan.
func (watcher *Watcher) fire(ctx context.Context, watch *libraryWatch) {
	watcher.mu.Lock()
	watch.timer = nil
	watcher.mu.Unlock()

	result, err := watcher.queue.EnqueueScan(ctx, watch.id, false)
	if err != nil {
		watcher.logger.ErrorContext(ctx, "watch_scan_enqueue_failed",
			slog.Int64("library_id", watch.id), slog.Any("error", err))
		return
	}
	watcher.logger.InfoContext(ctx, "watch_scan_enqueued",
		slog.Int64("library_id", watch.id),
		slog.String("status", result.Status), slog.Int64("job_id", result.JobID))
}

// batchWindow reads the quiet window from settings.
func (watcher *Watcher) batchWindow(ctx context.Context) time.Duration {
	seconds, err := watcher.settings.GetInt(ctx, settings.KeyBatchWindow)
	if err != nil || seconds <= 0 {
		return defaultBatchWindow
	}
	return time.Duration(seconds) * time.Second
}

// addRecursive subscribes root and every directory below it.
func addRecursive(observer *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return observer.Add(path)
		}
		return nil
	})
}
