// Copyright (c) 2026 Inkwell. All rights reserved.

package scanner_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/platform/sqlite"
	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
	"github.com/nhatvu/inkwell/internal/scanner"
)

/*
TestResolver_GetOrCreate checks that repeated lookups return one id,
that scoping keys separate entities, and that blank names are dropped.
*/
func TestResolver_GetOrCreate(t *testing.T) {
	db := sqlitetest.NewDB(t)
	libraryID := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', '/comics')`)
	otherLibraryID := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Side', '/side')`)

	resolver := scanner.NewResolver()
	ctx := context.Background()

	err := sqlite.WriteTx(ctx, db, func(tx *sqlite.Tx) error {
		first, err := resolver.Series(ctx, tx, libraryID, "Moon City")
		require.NoError(t, err)
		second, err := resolver.Series(ctx, tx, libraryID, "  Moon City  ")
		require.NoError(t, err)
		assert.Equal(t, first, second, "trimmed name hits the cache")

		scoped, err := resolver.Series(ctx, tx, otherLibraryID, "Moon City")
		require.NoError(t, err)
		assert.NotEqual(t, first, scoped, "series are scoped per library")

		volumeOne, err := resolver.Volume(ctx, tx, first, 1)
		require.NoError(t, err)
		volumeAgain, err := resolver.Volume(ctx, tx, first, 1)
		require.NoError(t, err)
		assert.Equal(t, volumeOne, volumeAgain)

		person, err := resolver.Person(ctx, tx, "Ann Ward")
		require.NoError(t, err)
		assert.NotZero(t, person)

		blank, err := resolver.Person(ctx, tx, "   ")
		require.NoError(t, err)
		assert.Zero(t, blank, "blank names resolve to nothing")

		return nil
	})
	require.NoError(t, err)

	var seriesCount, personCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM series`).Scan(&seriesCount))
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM persons`).Scan(&personCount))
	assert.Equal(t, 2, seriesCount)
	assert.Equal(t, 1, personCount)
}

/*
TestResolver_InvalidateAfterRollback resolves entities inside a
transaction that rolls back, invalidates the caches, and expects the
next transaction to mint fresh rows that actually exist in the
database. Stale ids from the aborted transaction must not leak into
later batches.
*/
func TestResolver_InvalidateAfterRollback(t *testing.T) {
	db := sqlitetest.NewDB(t)
	libraryID := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', '/comics')`)

	resolver := scanner.NewResolver()
	ctx := context.Background()

	abort := errors.New("batch failed")
	err := sqlite.WriteTx(ctx, db, func(tx *sqlite.Tx) error {
		_, err := resolver.Series(ctx, tx, libraryID, "Moon City")
		require.NoError(t, err)

		_, err = resolver.Person(ctx, tx, "Ann Ward")
		require.NoError(t, err)
		return abort
	})
	require.ErrorIs(t, err, abort)

	var seriesCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM series`).Scan(&seriesCount))
	require.Zero(t, seriesCount, "the rollback discarded the insert")

	resolver.Invalidate()

	err = sqlite.WriteTx(ctx, db, func(tx *sqlite.Tx) error {
		id, err := resolver.Series(ctx, tx, libraryID, "Moon City")
		require.NoError(t, err)

		var stored int64
		require.NoError(t, tx.QueryRowContext(ctx, `SELECT id FROM series WHERE library_id = ? AND name = 'Moon City'`, libraryID).Scan(&stored))
		assert.Equal(t, stored, id, "the resolved id points at a real row")

		person, err := resolver.Person(ctx, tx, "Ann Ward")
		require.NoError(t, err)
		require.NotZero(t, person)
		return nil
	})
	require.NoError(t, err)

	var personCount int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM persons`).Scan(&personCount))
	assert.Equal(t, 1, personCount)
}

/*
TestResolver_AutoContainers checks the auto-generated flag on resolved
collections and reading lists.
*/
func TestResolver_AutoContainers(t *testing.T) {
	db := sqlitetest.NewDB(t)
	resolver := scanner.NewResolver()
	ctx := context.Background()

	err := sqlite.WriteTx(ctx, db, func(tx *sqlite.Tx) error {
		collectionID, err := resolver.AutoCollection(ctx, tx, "Moonverse")
		require.NoError(t, err)
		require.NotZero(t, collectionID)

		listID, err := resolver.AutoReadingList(ctx, tx, "Lunar Saga")
		require.NoError(t, err)
		require.NotZero(t, listID)
		return nil
	})
	require.NoError(t, err)

	var autoCollection, autoList int
	require.NoError(t, db.QueryRow(`SELECT auto_generated FROM collections WHERE name = 'Moonverse'`).Scan(&autoCollection))
	require.NoError(t, db.QueryRow(`SELECT auto_generated FROM reading_lists WHERE name = 'Lunar Saga'`).Scan(&autoList))
	assert.Equal(t, 1, autoCollection)
	assert.Equal(t, 1, autoList)
}
