// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package scanner ingests comic archives from disk into the library model.

# Pipeline

Walk the library root, fan out archive reading and metadata parsing to a
worker pool, fan in to a single writer that batches mutations and commits
per batch, then reap rows whose files vanished. Workers share no mutable
state; the writer owns the only open transaction at any moment, so two
scans over identical disk and database state produce identical rows
regardless of worker scheduling.
*/
package scanner

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/nhatvu/inkwell/internal/archive"
	"github.com/nhatvu/inkwell/internal/metadata"
	"github.com/nhatvu/inkwell/internal/platform/dberr"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
)

const (
	// batchSize is how many result records the writer applies per commit.
	batchSize = 50

	// defaultSeriesName stands in when an archive declares no series.
	defaultSeriesName = "Unknown Series"

	// defaultVolumeNumber stands in when an archive declares no volume.
	defaultVolumeNumber = 1
)

// WorkerCount resolves the extraction pool size: the explicit setting
// when positive, otherwise half the cores with a floor of one.
func WorkerCount(configured int) int {
	if configured > 0 {
		return configured
	}
	count := runtime.NumCPU() / 2
	if count < 1 {
		count = 1
	}
	return count
}

// Summary is the outcome of one scan.
type Summary struct {
	Imported  int   `json:"imported"`
	Updated   int   `json:"updated"`
	Skipped   int   `json:"skipped"`
	Deleted   int   `json:"deleted"`
	Errors    int   `json:"errors"`
	ElapsedMS int64 `json:"elapsed_ms"`
}

// Scanner runs library scans. Safe for sequential reuse; the job manager
// guarantees at most one scan per library at a time.
type Scanner struct {
	db      *sql.DB
	logger  *slog.Logger
	workers int
}

func New(db *sql.DB, workers int, logger *slog.Logger) *Scanner {
	return &Scanner{db: db, logger: logger, workers: WorkerCount(workers)}
}

// baselineEntry is one existing issue keyed by path.
type baselineEntry struct {
	id    int64
	mtime int64
	size  int64
}

// result is what one extraction worker emits for one path.
type result struct {
	path      string
	mtime     int64
	size      int64
	pageCount int
	meta      *metadata.Record
	skip      bool
	err       error
}

// Scan walks the library and synchronizes the database with the disk.
func (scanner *Scanner) Scan(ctx context.Context, libraryID int64, force bool) (*Summary, error) {
	started := time.Now()

	var rootPath, libraryName string
	err := scanner.db.QueryRowContext(ctx,
		`SELECT root_path, name FROM libraries WHERE id = ?`, libraryID).Scan(&rootPath, &libraryName)
	if err != nil {
		return nil, dberr.Wrap(err, "load_library")
	}

	logger := scanner.logger.With(slog.Int64("library_id", libraryID), slog.String("library", libraryName))
	logger.InfoContext(ctx, "scan_started", slog.Bool("force", force), slog.Int("workers", scanner.workers))

	onDisk, err := walkLibrary(rootPath)
	if err != nil {
		return nil, fmt.Errorf("scanner: walk %s: %w", rootPath, err)
	}

	baseline, err := scanner.loadBaseline(ctx, libraryID)
	if err != nil {
		return nil, err
	}

	summary := &Summary{}

	// The writer holds one connection for the whole scan so every batch
	// reuses the same SQLite session.
	conn, err := scanner.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("scanner: acquire writer connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	results := make(chan result, batchSize)
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(scanner.workers)

	go func() {
		for _, path := range onDisk {
			path := path
			group.Go(func() error {
				select {
				case results <- extract(path, baseline, force):
				case <-groupCtx.Done():
				}
				return nil
			})
		}
		_ = group.Wait()
		close(results)
	}()

	resolver := NewResolver()
	batch := make([]result, 0, batchSize)
	for record := range results {
		switch {
		case record.err != nil:
			summary.Errors++
			logger.WarnContext(ctx, "scan_entry_failed",
				slog.String("path", record.path), slog.Any("error", record.err))
		case record.skip:
			summary.Skipped++
		default:
			batch = append(batch, record)
			if len(batch) == batchSize {
				scanner.flush(ctx, conn, resolver, libraryID, baseline, batch, summary, logger)
				batch = batch[:0]
			}
		}
	}
	if len(batch) > 0 {
		scanner.flush(ctx, conn, resolver, libraryID, baseline, batch, summary, logger)
	}

	deleted, err := scanner.reap(ctx, conn, baseline, onDisk)
	if err != nil {
		return nil, err
	}
	summary.Deleted = deleted

	summary.ElapsedMS = time.Since(started).Milliseconds()
	logger.InfoContext(ctx, "scan_finished",
		slog.Int("imported", summary.Imported), slog.Int("updated", summary.Updated),
		slog.Int("skipped", summary.Skipped), slog.Int("deleted", summary.Deleted),
		slog.Int("errors", summary.Errors), slog.Int64("elapsed_ms", summary.ElapsedMS))
	return summary, nil
}

// walkLibrary enumerates supported archive paths under root.
func walkLibrary(root string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() {
			return nil
		}
		if archive.IsSupportedPath(path) {
			paths = append(paths, path)
		}
		return nil
	})
	return paths, err
}

// loadBaseline maps every existing issue path of the library to its row.
func (scanner *Scanner) loadBaseline(ctx context.Context, libraryID int64) (map[string]baselineEntry, error) {
	rows, err := scanner.db.QueryContext(ctx, `
		SELECT c.id, c.file_path, c.file_mtime, c.file_size
		FROM comics c
		JOIN volumes v ON c.volume_id = v.id
		JOIN series s ON v.series_id = s.id
		WHERE s.library_id = ?`, libraryID)
	if err != nil {
		return nil, dberr.Wrap(err, "load_scan_baseline")
	}
	defer rows.Close()

	baseline := make(map[string]baselineEntry)
	for rows.Next() {
		var entry baselineEntry
		var path string
		if err := rows.Scan(&entry.id, &path, &entry.mtime, &entry.size); err != nil {
			return nil, dberr.Wrap(err, "scan_baseline_row")
		}
		baseline[path] = entry
	}
	return baseline, dberr.Wrap(rows.Err(), "load_scan_baseline")
}

// extract runs the read-only half of ingestion for one path. Its only
// failure mode is an error record.
func extract(path string, baseline map[string]baselineEntry, force bool) result {
	record := result{path: path}

	info, err := os.Stat(path)
	if err != nil {
		record.err = err
		return record
	}
	record.mtime = info.ModTime().Unix()
	record.size = info.Size()

	if !force {
		if existing, ok := baseline[path]; ok && existing.mtime == record.mtime && existing.size == record.size {
			record.skip = true
			return record
		}
	}

	reader, err := archive.Open(path)
	if err != nil {
		record.err = err
		return record
	}
	defer func() { _ = reader.Close() }()

	record.pageCount = len(reader.Pages())

	metaBytes, err := reader.ReadMetadata()
	if err != nil {
		record.err = err
		return record
	}
	record.meta, record.err = metadata.Parse(metaBytes)
	return record
}

// flush applies one batch inside one committed transaction. A failed
// batch counts its records as errors and the scan moves on.
func (scanner *Scanner) flush(ctx context.Context, conn *sql.Conn, resolver *Resolver, libraryID int64,
	baseline map[string]baselineEntry, batch []result, summary *Summary, logger *slog.Logger) {

	imported, updated := 0, 0
	err := sqlite.WriteOnConn(ctx, conn, func(tx *sqlite.Tx) error {
		imported, updated = 0, 0
		for _, record := range batch {
			existing, exists := baseline[record.path]
			if err := applyRecord(ctx, tx, resolver, libraryID, record, existing, exists); err != nil {
				return fmt.Errorf("apply %s: %w", record.path, err)
			}
			if exists {
				updated++
			} else {
				imported++
			}
		}
		return nil
	})
	if err != nil {
		// The rollback discarded any entities this batch created, so
		// cached ids for them are stale and must go with it.
		resolver.Invalidate()
		summary.Errors += len(batch)
		logger.ErrorContext(ctx, "scan_batch_failed", slog.Int("size", len(batch)), slog.Any("error", err))
		return
	}
	summary.Imported += imported
	summary.Updated += updated
}

// applyRecord upserts one issue and its attachments.
func applyRecord(ctx context.Context, tx *sqlite.Tx, resolver *Resolver, libraryID int64,
	record result, existing baselineEntry, exists bool) error {

	meta := record.meta

	seriesName := defaultSeriesName
	if meta.Series != nil && strings.TrimSpace(*meta.Series) != "" {
		seriesName = strings.TrimSpace(*meta.Series)
	}
	volumeNumber := defaultVolumeNumber
	if meta.Volume != nil {
		volumeNumber = *meta.Volume
	}

	seriesID, err := resolver.Series(ctx, tx, libraryID, seriesName)
	if err != nil {
		return err
	}
	volumeID, err := resolver.Volume(ctx, tx, seriesID, volumeNumber)
	if err != nil {
		return err
	}

	number := ""
	if meta.Number != nil {
		number = *meta.Number
	}
	format := ""
	if meta.Format != nil {
		format = *meta.Format
	}

	var comicID int64
	if exists {
		comicID = existing.id
		_, err = tx.ExecContext(ctx, `
			UPDATE comics SET
				volume_id = ?, file_name = ?, file_size = ?, file_mtime = ?, page_count = ?,
				number = ?, title = ?, summary = ?, year = ?, month = ?, day = ?,
				web = ?, notes = ?, age_rating = ?, language_iso = ?, community_rating = ?,
				declared_count = ?, publisher = ?, imprint = ?, format = ?, series_group = ?,
				scan_info = ?, alternate_series = ?, alternate_number = ?, story_arc = ?,
				raw_metadata = ?, is_dirty = 1, updated_at = CURRENT_TIMESTAMP
			WHERE id = ?`,
			volumeID, filepath.Base(record.path), record.size, record.mtime, record.pageCount,
			number, meta.Title, meta.Summary, meta.Year, meta.Month, meta.Day,
			meta.Web, meta.Notes, meta.AgeRating, meta.LanguageISO, meta.CommunityRating,
			meta.Count, meta.Publisher, meta.Imprint, format, meta.SeriesGroup,
			meta.ScanInformation, meta.AlternateSeries, meta.AlternateNumber, meta.StoryArc,
			string(meta.Raw), comicID)
		if err != nil {
			return fmt.Errorf("update comic: %w", err)
		}
	} else {
		insertResult, err := tx.ExecContext(ctx, `
			INSERT INTO comics (
				volume_id, file_path, file_name, file_size, file_mtime, page_count,
				number, title, summary, year, month, day,
				web, notes, age_rating, language_iso, community_rating,
				declared_count, publisher, imprint, format, series_group,
				scan_info, alternate_series, alternate_number, story_arc,
				raw_metadata, is_dirty
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1)`,
			volumeID, record.path, filepath.Base(record.path), record.size, record.mtime, record.pageCount,
			number, meta.Title, meta.Summary, meta.Year, meta.Month, meta.Day,
			meta.Web, meta.Notes, meta.AgeRating, meta.LanguageISO, meta.CommunityRating,
			meta.Count, meta.Publisher, meta.Imprint, format, meta.SeriesGroup,
			meta.ScanInformation, meta.AlternateSeries, meta.AlternateNumber, meta.StoryArc,
			string(meta.Raw))
		if err != nil {
			return fmt.Errorf("insert comic: %w", err)
		}
		if comicID, err = insertResult.LastInsertId(); err != nil {
			return err
		}
	}

	if err := attachCredits(ctx, tx, resolver, comicID, meta); err != nil {
		return err
	}
	if err := attachTags(ctx, tx, resolver, comicID, meta); err != nil {
		return err
	}
	if err := syncAutoContainers(ctx, tx, resolver, comicID, meta); err != nil {
		return err
	}

	// Touch the parent series so staleness queries see the new content.
	if _, err := tx.ExecContext(ctx,
		`UPDATE series SET updated_at = CURRENT_TIMESTAMP WHERE id = ?`, seriesID); err != nil {
		return fmt.Errorf("touch series: %w", err)
	}
	return nil
}

// attachCredits clears and re-creates the issue's credit rows.
func attachCredits(ctx context.Context, tx *sqlite.Tx, resolver *Resolver, comicID int64, meta *metadata.Record) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM credits WHERE comic_id = ?`, comicID); err != nil {
		return fmt.Errorf("clear credits: %w", err)
	}
	for _, role := range metadata.Roles {
		for _, name := range meta.Credits[role] {
			personID, err := resolver.Person(ctx, tx, name)
			if err != nil {
				return err
			}
			if personID == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO credits (comic_id, person_id, role) VALUES (?, ?, ?)`,
				comicID, personID, role); err != nil {
				return fmt.Errorf("attach credit: %w", err)
			}
		}
	}
	return nil
}

// attachTags clears and re-creates the four tag joins.
func attachTags(ctx context.Context, tx *sqlite.Tx, resolver *Resolver, comicID int64, meta *metadata.Record) error {
	type tagKind struct {
		joinTable string
		column    string
		names     []string
		resolve   func(context.Context, *sqlite.Tx, string) (int64, error)
	}
	kinds := []tagKind{
		{"comic_characters", "character_id", meta.Characters, resolver.Character},
		{"comic_teams", "team_id", meta.Teams, resolver.Team},
		{"comic_locations", "location_id", meta.Locations, resolver.Location},
		{"comic_genres", "genre_id", meta.Genres, resolver.Genre},
	}

	for _, kind := range kinds {
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`DELETE FROM %s WHERE comic_id = ?`, kind.joinTable), comicID); err != nil {
			return fmt.Errorf("clear %s: %w", kind.joinTable, err)
		}
		for _, name := range kind.names {
			tagID, err := kind.resolve(ctx, tx, name)
			if err != nil {
				return err
			}
			if tagID == 0 {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				fmt.Sprintf(`INSERT OR IGNORE INTO %s (comic_id, %s) VALUES (?, ?)`, kind.joinTable, kind.column),
				comicID, tagID); err != nil {
				return fmt.Errorf("attach %s: %w", kind.joinTable, err)
			}
		}
	}
	return nil
}

// syncAutoContainers reconciles auto reading list and auto collection
// membership with the issue's current metadata.
func syncAutoContainers(ctx context.Context, tx *sqlite.Tx, resolver *Resolver, comicID int64, meta *metadata.Record) error {
	if _, err := tx.ExecContext(ctx, `
		DELETE FROM reading_list_items
		WHERE comic_id = ?
		  AND reading_list_id IN (SELECT id FROM reading_lists WHERE auto_generated = 1)`, comicID); err != nil {
		return fmt.Errorf("clear auto reading lists: %w", err)
	}
	if meta.AlternateSeries != nil {
		listID, err := resolver.AutoReadingList(ctx, tx, *meta.AlternateSeries)
		if err != nil {
			return err
		}
		if listID != 0 {
			position := 0.0
			if meta.AlternateNumber != nil {
				if parsed, err := strconv.ParseFloat(*meta.AlternateNumber, 64); err == nil {
					position = parsed
				}
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT OR REPLACE INTO reading_list_items (reading_list_id, comic_id, position) VALUES (?, ?, ?)`,
				listID, comicID, position); err != nil {
				return fmt.Errorf("attach auto reading list: %w", err)
			}
		}
	}

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM collection_items
		WHERE comic_id = ?
		  AND collection_id IN (SELECT id FROM collections WHERE auto_generated = 1)`, comicID); err != nil {
		return fmt.Errorf("clear auto collections: %w", err)
	}
	if meta.SeriesGroup != nil {
		collectionID, err := resolver.AutoCollection(ctx, tx, *meta.SeriesGroup)
		if err != nil {
			return err
		}
		if collectionID != 0 {
			if _, err := tx.ExecContext(ctx,
				`INSERT OR IGNORE INTO collection_items (collection_id, comic_id) VALUES (?, ?)`,
				collectionID, comicID); err != nil {
				return fmt.Errorf("attach auto collection: %w", err)
			}
		}
	}
	return nil
}

// reap deletes issues whose files vanished from disk. Cascades take the
// attachments with them.
func (scanner *Scanner) reap(ctx context.Context, conn *sql.Conn, baseline map[string]baselineEntry, onDisk []string) (int, error) {
	present := make(map[string]struct{}, len(onDisk))
	for _, path := range onDisk {
		present[path] = struct{}{}
	}

	var vanished []int64
	for path, entry := range baseline {
		if _, ok := present[path]; !ok {
			vanished = append(vanished, entry.id)
		}
	}
	if len(vanished) == 0 {
		return 0, nil
	}

	err := sqlite.WriteOnConn(ctx, conn, func(tx *sqlite.Tx) error {
		for _, id := range vanished {
			if _, err := tx.ExecContext(ctx, `DELETE FROM comics WHERE id = ?`, id); err != nil {
				return fmt.Errorf("reap comic %d: %w", id, err)
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scanner: reap: %w", err)
	}
	return len(vanished), nil
}
