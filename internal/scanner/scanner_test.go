// Copyright (c) 2026 Inkwell. All rights reserved.

package scanner_test

import (
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
	"github.com/nhatvu/inkwell/internal/scanner"
)

// writeComic writes a minimal cbz with two pages and the given
// ComicInfo document, then pins its mtime so rescans are deterministic.
func writeComic(t *testing.T, path, comicInfo string) {
	t.Helper()

	var buffer bytes.Buffer
	archiveWriter := zip.NewWriter(&buffer)
	for _, name := range []string{"p01.jpg", "p02.jpg"} {
		entry, err := archiveWriter.Create(name)
		require.NoError(t, err)
		_, err = entry.Write([]byte("image-bytes-" + name))
		require.NoError(t, err)
	}
	if comicInfo != "" {
		entry, err := archiveWriter.Create("ComicInfo.xml")
		require.NoError(t, err)
		_, err = io.WriteString(entry, comicInfo)
		require.NoError(t, err)
	}
	require.NoError(t, archiveWriter.Close())

	require.NoError(t, os.WriteFile(path, buffer.Bytes(), 0o644))
	pinned := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, pinned, pinned))
}

func newScanner(t *testing.T, db *sql.DB) *scanner.Scanner {
	t.Helper()
	return scanner.New(db, 2, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func countRows(t *testing.T, db *sql.DB, table string) int {
	t.Helper()
	var count int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM `+table).Scan(&count))
	return count
}

/*
TestScan_Lifecycle runs a full import, a no-op rescan, an update after a
file change, and a reap after a file disappears.
*/
func TestScan_Lifecycle(t *testing.T) {
	db := sqlitetest.NewDB(t)
	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', ?)`, root)

	writeComic(t, filepath.Join(root, "moon-city-001.cbz"), `<?xml version="1.0"?>
		<ComicInfo>
			<Series>Moon City</Series>
			<Number>1</Number>
			<Volume>1</Volume>
			<Writer>Ann Ward, Bo Chen</Writer>
			<Characters>Luna, Atlas</Characters>
			<Genre>Sci-Fi</Genre>
			<SeriesGroup>Moonverse</SeriesGroup>
			<AlternateSeries>Lunar Saga</AlternateSeries>
			<AlternateNumber>3</AlternateNumber>
			<AgeRating>Teen</AgeRating>
		</ComicInfo>`)
	writeComic(t, filepath.Join(root, "moon-city-002.cbz"), `<?xml version="1.0"?>
		<ComicInfo>
			<Series>Moon City</Series>
			<Number>2</Number>
			<Volume>1</Volume>
			<Writer>Ann Ward</Writer>
			<AgeRating>Teen</AgeRating>
		</ComicInfo>`)

	scan := newScanner(t, db)
	ctx := context.Background()

	summary, err := scan.Scan(ctx, libraryID, false)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Imported)
	assert.Zero(t, summary.Updated)
	assert.Zero(t, summary.Errors)

	assert.Equal(t, 1, countRows(t, db, "series"))
	assert.Equal(t, 1, countRows(t, db, "volumes"))
	assert.Equal(t, 2, countRows(t, db, "comics"))
	assert.Equal(t, 2, countRows(t, db, "persons"))
	assert.Equal(t, 3, countRows(t, db, "credits"))
	assert.Equal(t, 2, countRows(t, db, "characters"))
	assert.Equal(t, 1, countRows(t, db, "genres"))

	var pageCount int
	require.NoError(t, db.QueryRow(`SELECT page_count FROM comics WHERE number = '1'`).Scan(&pageCount))
	assert.Equal(t, 2, pageCount, "physical page count wins over any declared value")

	t.Run("auto_containers", func(t *testing.T) {
		var autoCollections, autoLists, position int
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM collections WHERE auto_generated = 1 AND name = 'Moonverse'`).Scan(&autoCollections))
		require.NoError(t, db.QueryRow(
			`SELECT COUNT(*) FROM reading_lists WHERE auto_generated = 1 AND name = 'Lunar Saga'`).Scan(&autoLists))
		require.NoError(t, db.QueryRow(
			`SELECT CAST(position AS INTEGER) FROM reading_list_items`).Scan(&position))
		assert.Equal(t, 1, autoCollections)
		assert.Equal(t, 1, autoLists)
		assert.Equal(t, 3, position)
	})

	t.Run("rescan_skips_unchanged", func(t *testing.T) {
		summary, err := scan.Scan(ctx, libraryID, false)
		require.NoError(t, err)
		assert.Zero(t, summary.Imported)
		assert.Zero(t, summary.Updated)
		assert.Equal(t, 2, summary.Skipped)
	})

	t.Run("force_rescans_unchanged", func(t *testing.T) {
		summary, err := scan.Scan(ctx, libraryID, true)
		require.NoError(t, err)
		assert.Equal(t, 2, summary.Updated)
		assert.Zero(t, summary.Skipped)
		// Re-attachment does not duplicate rows.
		assert.Equal(t, 3, countRows(t, db, "credits"))
		assert.Equal(t, 2, countRows(t, db, "comics"))
	})

	t.Run("changed_file_updates", func(t *testing.T) {
		writeComic(t, filepath.Join(root, "moon-city-002.cbz"), `<?xml version="1.0"?>
			<ComicInfo>
				<Series>Moon City</Series>
				<Number>2</Number>
				<Volume>1</Volume>
				<Title>The Long Night</Title>
				<Writer>Cleo Diaz</Writer>
				<AgeRating>Teen</AgeRating>
			</ComicInfo>`)
		changed := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, os.Chtimes(filepath.Join(root, "moon-city-002.cbz"), changed, changed))

		summary, err := scan.Scan(ctx, libraryID, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Updated)
		assert.Equal(t, 1, summary.Skipped)

		var title string
		require.NoError(t, db.QueryRow(`SELECT title FROM comics WHERE number = '2'`).Scan(&title))
		assert.Equal(t, "The Long Night", title)

		var issueTwoCredits int
		require.NoError(t, db.QueryRow(`
			SELECT COUNT(*) FROM credits cr
			JOIN comics c ON cr.comic_id = c.id
			WHERE c.number = '2'`).Scan(&issueTwoCredits))
		assert.Equal(t, 1, issueTwoCredits, "prior credits are cleared before re-attachment")
	})

	t.Run("vanished_file_reaped", func(t *testing.T) {
		require.NoError(t, os.Remove(filepath.Join(root, "moon-city-002.cbz")))

		summary, err := scan.Scan(ctx, libraryID, false)
		require.NoError(t, err)
		assert.Equal(t, 1, summary.Deleted)
		assert.Equal(t, 1, countRows(t, db, "comics"))

		var orphanCredits int
		require.NoError(t, db.QueryRow(`
			SELECT COUNT(*) FROM credits WHERE comic_id NOT IN (SELECT id FROM comics)`).Scan(&orphanCredits))
		assert.Zero(t, orphanCredits, "cascade removes attachments")
	})
}

/*
TestScan_Defaults ingests an archive that declares no series or volume.
*/
func TestScan_Defaults(t *testing.T) {
	db := sqlitetest.NewDB(t)
	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', ?)`, root)

	writeComic(t, filepath.Join(root, "mystery.cbz"), `<?xml version="1.0"?>
		<ComicInfo><Number>1½</Number></ComicInfo>`)

	summary, err := newScanner(t, db).Scan(context.Background(), libraryID, false)
	require.NoError(t, err)
	require.Equal(t, 1, summary.Imported)

	var seriesName, number string
	var volumeNumber int
	require.NoError(t, db.QueryRow(`
		SELECT s.name, v.volume_number, c.number
		FROM comics c
		JOIN volumes v ON c.volume_id = v.id
		JOIN series s ON v.series_id = s.id`).Scan(&seriesName, &volumeNumber, &number))
	assert.Equal(t, "Unknown Series", seriesName)
	assert.Equal(t, 1, volumeNumber)
	assert.Equal(t, "10.5", number)
}

/*
TestScan_ErrorRecords covers archives that cannot be ingested: no
metadata document and a file that is not an archive at all.
*/
func TestScan_ErrorRecords(t *testing.T) {
	db := sqlitetest.NewDB(t)
	root := t.TempDir()
	libraryID := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', ?)`, root)

	writeComic(t, filepath.Join(root, "bare.cbz"), "")
	require.NoError(t, os.WriteFile(filepath.Join(root, "junk.cbz"), []byte("not an archive"), 0o644))
	writeComic(t, filepath.Join(root, "good.cbz"), `<?xml version="1.0"?>
		<ComicInfo><Series>Keepers</Series><Number>1</Number></ComicInfo>`)

	summary, err := newScanner(t, db).Scan(context.Background(), libraryID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Imported)
	assert.Equal(t, 2, summary.Errors)
	assert.Equal(t, 1, countRows(t, db, "comics"))
}
