// Copyright (c) 2026 Inkwell. All rights reserved.

/*
Package maintenance hosts the housekeeping passes: orphan garbage
collection, thumbnail generation and hot database backups.

Cleanup steps each run in their own committed transaction so the write
lock is yielded between steps and readers never wait on the whole pass.
*/
package maintenance

import (
	"archive/tar"
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/gzip"

	"github.com/nhatvu/inkwell/internal/archive"
	"github.com/nhatvu/inkwell/internal/platform/sqlite"
)

// CleanupResult counts the rows each step removed.
type CleanupResult struct {
	Volumes     int64 `json:"volumes"`
	Series      int64 `json:"series"`
	Tags        int64 `json:"tags"`
	Persons     int64 `json:"persons"`
	Containers  int64 `json:"containers"`
	LibraryOnly bool  `json:"library_only"`
}

// Cleanup removes orphaned rows bottom-up. A library id restricts the
// volume and series passes and skips the cross-library entity passes.
func Cleanup(ctx context.Context, db *sql.DB, libraryID *int64, logger *slog.Logger) (*CleanupResult, error) {
	result := &CleanupResult{LibraryOnly: libraryID != nil}

	step := func(name string, run func(tx *sqlite.Tx) (int64, error)) error {
		var removed int64
		err := sqlite.WriteTx(ctx, db, func(tx *sqlite.Tx) error {
			var err error
			removed, err = run(tx)
			return err
		})
		if err != nil {
			return fmt.Errorf("maintenance: %s: %w", name, err)
		}
		if removed > 0 {
			logger.InfoContext(ctx, "cleanup_step", slog.String("step", name), slog.Int64("removed", removed))
		}
		return nil
	}

	scope := ""
	var scopeArgs []any
	if libraryID != nil {
		scope = " AND s.library_id = ?"
		scopeArgs = []any{*libraryID}
	}

	if err := step("empty_volumes", func(tx *sqlite.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM volumes WHERE id IN (
				SELECT v.id FROM volumes v
				JOIN series s ON v.series_id = s.id
				WHERE NOT EXISTS (SELECT 1 FROM comics c WHERE c.volume_id = v.id)`+scope+`
			)`, scopeArgs...)
		if err != nil {
			return 0, err
		}
		result.Volumes, err = res.RowsAffected()
		return result.Volumes, err
	}); err != nil {
		return nil, err
	}

	if err := step("empty_series", func(tx *sqlite.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM series WHERE id IN (
				SELECT s.id FROM series s
				WHERE NOT EXISTS (SELECT 1 FROM volumes v WHERE v.series_id = s.id)`+scope+`
			)`, scopeArgs...)
		if err != nil {
			return 0, err
		}
		result.Series, err = res.RowsAffected()
		return result.Series, err
	}); err != nil {
		return nil, err
	}

	if libraryID != nil {
		return result, nil
	}

	// The remaining entities are cross-library, so only global runs may
	// judge them unused.
	if err := step("unused_tags", func(tx *sqlite.Tx) (int64, error) {
		var total int64
		type tagTable struct{ table, joinTable, column string }
		for _, tag := range []tagTable{
			{"characters", "comic_characters", "character_id"},
			{"teams", "comic_teams", "team_id"},
			{"locations", "comic_locations", "location_id"},
			{"genres", "comic_genres", "genre_id"},
		} {
			res, err := tx.ExecContext(ctx, fmt.Sprintf(`
				DELETE FROM %s WHERE id NOT IN (SELECT DISTINCT %s FROM %s)`,
				tag.table, tag.column, tag.joinTable))
			if err != nil {
				return 0, err
			}
			removed, err := res.RowsAffected()
			if err != nil {
				return 0, err
			}
			total += removed
		}
		result.Tags = total
		return total, nil
	}); err != nil {
		return nil, err
	}

	if err := step("unused_persons", func(tx *sqlite.Tx) (int64, error) {
		res, err := tx.ExecContext(ctx, `
			DELETE FROM persons WHERE id NOT IN (SELECT DISTINCT person_id FROM credits)`)
		if err != nil {
			return 0, err
		}
		result.Persons, err = res.RowsAffected()
		return result.Persons, err
	}); err != nil {
		return nil, err
	}

	if err := step("empty_auto_containers", func(tx *sqlite.Tx) (int64, error) {
		collections, err := tx.ExecContext(ctx, `
			DELETE FROM collections
			WHERE auto_generated = 1
			  AND id NOT IN (SELECT DISTINCT collection_id FROM collection_items)`)
		if err != nil {
			return 0, err
		}
		removedCollections, err := collections.RowsAffected()
		if err != nil {
			return 0, err
		}
		lists, err := tx.ExecContext(ctx, `
			DELETE FROM reading_lists
			WHERE auto_generated = 1
			  AND id NOT IN (SELECT DISTINCT reading_list_id FROM reading_list_items)`)
		if err != nil {
			return 0, err
		}
		removedLists, err := lists.RowsAffected()
		if err != nil {
			return 0, err
		}
		result.Containers = removedCollections + removedLists
		return result.Containers, nil
	}); err != nil {
		return nil, err
	}

	return result, nil
}

// GenerateThumbnails extracts the first page of every dirty comic into
// the cover cache and clears the dirty flag. Extraction failures skip
// the comic and leave it dirty for the next pass.
func GenerateThumbnails(ctx context.Context, db *sql.DB, coverDir string, logger *slog.Logger) (int, error) {
	rows, err := db.QueryContext(ctx, `SELECT id, file_path FROM comics WHERE is_dirty = 1`)
	if err != nil {
		return 0, fmt.Errorf("maintenance: list dirty comics: %w", err)
	}

	type dirtyComic struct {
		id   int64
		path string
	}
	var dirty []dirtyComic
	for rows.Next() {
		var comic dirtyComic
		if err := rows.Scan(&comic.id, &comic.path); err != nil {
			rows.Close()
			return 0, fmt.Errorf("maintenance: scan dirty comic: %w", err)
		}
		dirty = append(dirty, comic)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, fmt.Errorf("maintenance: list dirty comics: %w", err)
	}

	if err := os.MkdirAll(coverDir, 0o755); err != nil {
		return 0, fmt.Errorf("maintenance: cover dir: %w", err)
	}

	generated := 0
	for _, comic := range dirty {
		thumbnailPath, err := writeThumbnail(comic.path, coverDir, comic.id)
		if err != nil {
			logger.WarnContext(ctx, "thumbnail_failed",
				slog.Int64("comic_id", comic.id), slog.Any("error", err))
			continue
		}

		err = sqlite.WriteTx(ctx, db, func(tx *sqlite.Tx) error {
			_, err := tx.ExecContext(ctx,
				`UPDATE comics SET thumbnail_path = ?, is_dirty = 0 WHERE id = ?`,
				thumbnailPath, comic.id)
			return err
		})
		if err != nil {
			return generated, fmt.Errorf("maintenance: record thumbnail: %w", err)
		}
		generated++
	}
	return generated, nil
}

// writeThumbnail copies the cover page bytes into the cache.
func writeThumbnail(archivePath, coverDir string, comicID int64) (string, error) {
	reader, err := archive.Open(archivePath)
	if err != nil {
		return "", err
	}
	defer func() { _ = reader.Close() }()

	pages := reader.Pages()
	if len(pages) == 0 {
		return "", fmt.Errorf("no pages in %s", archivePath)
	}
	data, err := reader.ReadPage(pages[0])
	if err != nil {
		return "", err
	}

	thumbnailPath := filepath.Join(coverDir, fmt.Sprintf("comic_%d.webp", comicID))
	if err := os.WriteFile(thumbnailPath, data, 0o644); err != nil {
		return "", err
	}
	return thumbnailPath, nil
}

// Backup snapshots the live database with VACUUM INTO and wraps the
// snapshot in a dated tar.gz. The raw snapshot is removed on success.
func Backup(ctx context.Context, db *sql.DB, backupDir string, logger *slog.Logger) (string, error) {
	if err := os.MkdirAll(backupDir, 0o755); err != nil {
		return "", fmt.Errorf("maintenance: backup dir: %w", err)
	}

	stamp := time.Now().UTC().Format("20060102-150405")
	snapshotPath := filepath.Join(backupDir, fmt.Sprintf("inkwell-%s.db", stamp))
	archivePath := filepath.Join(backupDir, fmt.Sprintf("inkwell-backup-%s.tar.gz", stamp))

	// VACUUM INTO is SQLite's page-safe online copy; writers keep going.
	if _, err := db.ExecContext(ctx, `VACUUM INTO ?`, snapshotPath); err != nil {
		return "", fmt.Errorf("maintenance: snapshot: %w", err)
	}

	if err := compressSnapshot(snapshotPath, archivePath); err != nil {
		_ = os.Remove(snapshotPath)
		_ = os.Remove(archivePath)
		return "", fmt.Errorf("maintenance: compress snapshot: %w", err)
	}

	if err := os.Remove(snapshotPath); err != nil {
		return "", fmt.Errorf("maintenance: remove snapshot: %w", err)
	}

	logger.InfoContext(ctx, "backup_written", slog.String("path", archivePath))
	return archivePath, nil
}

// PruneBackups removes archives older than the retention window.
func PruneBackups(ctx context.Context, backupDir string, retentionDays int, logger *slog.Logger) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	cutoff := time.Now().Add(-time.Duration(retentionDays) * 24 * time.Hour)

	entries, err := os.ReadDir(backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}

	pruned := 0
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".gz" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(filepath.Join(backupDir, entry.Name())); err == nil {
				pruned++
			}
		}
	}
	if pruned > 0 {
		logger.InfoContext(ctx, "backups_pruned", slog.Int("count", pruned))
	}
	return pruned, nil
}

func compressSnapshot(snapshotPath, archivePath string) error {
	snapshot, err := os.Open(snapshotPath)
	if err != nil {
		return err
	}
	defer func() { _ = snapshot.Close() }()

	info, err := snapshot.Stat()
	if err != nil {
		return err
	}

	out, err := os.Create(archivePath)
	if err != nil {
		return err
	}
	defer func() { _ = out.Close() }()

	gzipWriter := gzip.NewWriter(out)
	tarWriter := tar.NewWriter(gzipWriter)

	header, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return err
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	if _, err := io.Copy(tarWriter, snapshot); err != nil {
		return err
	}
	if err := tarWriter.Close(); err != nil {
		return err
	}
	return gzipWriter.Close()
}
