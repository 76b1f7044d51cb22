// Copyright (c) 2026 Inkwell. All rights reserved.

package maintenance_test

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/maintenance"
	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func seedOrphans(t *testing.T, db *sql.DB) (libraryID int64) {
	t.Helper()

	libraryID = sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', '/comics')`)
	keptSeries := sqlitetest.InsertID(t, db, `INSERT INTO series (library_id, name) VALUES (?, 'Kept')`, libraryID)
	keptVolume := sqlitetest.InsertID(t, db, `INSERT INTO volumes (series_id, volume_number) VALUES (?, 1)`, keptSeries)
	comicID := sqlitetest.InsertID(t, db,
		`INSERT INTO comics (volume_id, file_path, number) VALUES (?, '/comics/kept.cbz', '1')`, keptVolume)

	// An empty volume under the kept series and a fully empty series.
	sqlitetest.Exec(t, db, `INSERT INTO volumes (series_id, volume_number) VALUES (?, 2)`, keptSeries)
	emptySeries := sqlitetest.InsertID(t, db, `INSERT INTO series (library_id, name) VALUES (?, 'Empty')`, libraryID)
	sqlitetest.Exec(t, db, `INSERT INTO volumes (series_id, volume_number) VALUES (?, 1)`, emptySeries)

	// A used and an unused person, a used and an unused genre.
	usedPerson := sqlitetest.InsertID(t, db, `INSERT INTO persons (name) VALUES ('Used Person')`)
	sqlitetest.Exec(t, db, `INSERT INTO persons (name) VALUES ('Orphan Person')`)
	sqlitetest.Exec(t, db, `INSERT INTO credits (comic_id, person_id, role) VALUES (?, ?, 'writer')`, comicID, usedPerson)

	usedGenre := sqlitetest.InsertID(t, db, `INSERT INTO genres (name) VALUES ('Sci-Fi')`)
	sqlitetest.Exec(t, db, `INSERT INTO genres (name) VALUES ('Orphan Genre')`)
	sqlitetest.Exec(t, db, `INSERT INTO comic_genres (comic_id, genre_id) VALUES (?, ?)`, comicID, usedGenre)

	// Auto containers: one populated, one empty, one manual empty.
	populated := sqlitetest.InsertID(t, db, `INSERT INTO collections (name, auto_generated) VALUES ('Full Auto', 1)`)
	sqlitetest.Exec(t, db, `INSERT INTO collection_items (collection_id, comic_id) VALUES (?, ?)`, populated, comicID)
	sqlitetest.Exec(t, db, `INSERT INTO collections (name, auto_generated) VALUES ('Empty Auto', 1)`)
	sqlitetest.Exec(t, db, `INSERT INTO collections (name, auto_generated) VALUES ('Empty Manual', 0)`)
	sqlitetest.Exec(t, db, `INSERT INTO reading_lists (name, auto_generated) VALUES ('Empty Auto List', 1)`)

	return libraryID
}

/*
TestCleanup_Global removes orphans bottom-up and leaves manual
containers alone.
*/
func TestCleanup_Global(t *testing.T) {
	db := sqlitetest.NewDB(t)
	seedOrphans(t, db)

	result, err := maintenance.Cleanup(context.Background(), db, nil, discard())
	require.NoError(t, err)

	// The empty series loses its volume in step one, then itself.
	assert.Equal(t, int64(2), result.Volumes)
	assert.Equal(t, int64(1), result.Series)
	assert.Equal(t, int64(1), result.Tags)
	assert.Equal(t, int64(1), result.Persons)
	assert.Equal(t, int64(2), result.Containers)

	var manualCollections int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM collections WHERE name = 'Empty Manual'`).Scan(&manualCollections))
	assert.Equal(t, 1, manualCollections, "manual containers are never garbage collected")

	var keptSeries int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM series`).Scan(&keptSeries))
	assert.Equal(t, 1, keptSeries)
}

/*
TestCleanup_LibraryScoped skips the cross-library passes.
*/
func TestCleanup_LibraryScoped(t *testing.T) {
	db := sqlitetest.NewDB(t)
	libraryID := seedOrphans(t, db)

	result, err := maintenance.Cleanup(context.Background(), db, &libraryID, discard())
	require.NoError(t, err)

	assert.True(t, result.LibraryOnly)
	assert.Equal(t, int64(2), result.Volumes)
	assert.Zero(t, result.Persons, "person pass only runs globally")
	assert.Zero(t, result.Tags)

	var orphanPersons int
	require.NoError(t, db.QueryRow(
		`SELECT COUNT(*) FROM persons WHERE name = 'Orphan Person'`).Scan(&orphanPersons))
	assert.Equal(t, 1, orphanPersons)
}

/*
TestGenerateThumbnails writes covers for dirty comics and clears the
flag; broken archives stay dirty.
*/
func TestGenerateThumbnails(t *testing.T) {
	db := sqlitetest.NewDB(t)
	root := t.TempDir()
	coverDir := t.TempDir()

	// A real cbz for the good comic.
	var buffer bytes.Buffer
	zipWriter := zip.NewWriter(&buffer)
	entry, err := zipWriter.Create("cover.jpg")
	require.NoError(t, err)
	_, err = entry.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, zipWriter.Close())
	goodPath := filepath.Join(root, "good.cbz")
	require.NoError(t, os.WriteFile(goodPath, buffer.Bytes(), 0o644))

	libraryID := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', ?)`, root)
	seriesID := sqlitetest.InsertID(t, db, `INSERT INTO series (library_id, name) VALUES (?, 'S')`, libraryID)
	volumeID := sqlitetest.InsertID(t, db, `INSERT INTO volumes (series_id, volume_number) VALUES (?, 1)`, seriesID)
	goodID := sqlitetest.InsertID(t, db,
		`INSERT INTO comics (volume_id, file_path, number, is_dirty) VALUES (?, ?, '1', 1)`, volumeID, goodPath)
	badID := sqlitetest.InsertID(t, db,
		`INSERT INTO comics (volume_id, file_path, number, is_dirty) VALUES (?, ?, '2', 1)`,
		volumeID, filepath.Join(root, "missing.cbz"))

	generated, err := maintenance.GenerateThumbnails(context.Background(), db, coverDir, discard())
	require.NoError(t, err)
	assert.Equal(t, 1, generated)

	var goodDirty, badDirty int
	var thumbnailPath string
	require.NoError(t, db.QueryRow(
		`SELECT is_dirty, thumbnail_path FROM comics WHERE id = ?`, goodID).Scan(&goodDirty, &thumbnailPath))
	require.NoError(t, db.QueryRow(`SELECT is_dirty FROM comics WHERE id = ?`, badID).Scan(&badDirty))

	assert.Zero(t, goodDirty)
	assert.Equal(t, 1, badDirty, "a failed extraction leaves the comic dirty")
	assert.FileExists(t, thumbnailPath)
}

/*
TestBackup produces a dated tar.gz holding the snapshot and removes the
raw snapshot file.
*/
func TestBackup(t *testing.T) {
	db := sqlitetest.NewDB(t)
	backupDir := t.TempDir()

	sqlitetest.Exec(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', '/comics')`)

	archivePath, err := maintenance.Backup(context.Background(), db, backupDir, discard())
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(archivePath, ".tar.gz"))
	assert.FileExists(t, archivePath)

	entries, err := os.ReadDir(backupDir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "the raw snapshot is removed on success")

	// The archive must contain one database file with real content.
	file, err := os.Open(archivePath)
	require.NoError(t, err)
	defer file.Close()

	gzipReader, err := gzip.NewReader(file)
	require.NoError(t, err)
	tarReader := tar.NewReader(gzipReader)

	header, err := tarReader.Next()
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(header.Name, ".db"))
	assert.Positive(t, header.Size)
}
