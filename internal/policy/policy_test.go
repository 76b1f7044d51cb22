// Copyright (c) 2026 Inkwell. All rights reserved.

package policy_test

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
	"github.com/nhatvu/inkwell/internal/policy"
)

/*
TestRatingOrder checks the total order and the allowed/banned split
around a cap.
*/
func TestRatingOrder(t *testing.T) {
	assert.Less(t, policy.RatingRank("Everyone"), policy.RatingRank("Teen"))
	assert.Less(t, policy.RatingRank("Teen"), policy.RatingRank("Mature 17+"))
	assert.Less(t, policy.RatingRank("Mature 17+"), policy.RatingRank("X18+"))
	assert.Equal(t, -1, policy.RatingRank("Bizarre"))
	assert.Equal(t, policy.RatingRank("teen"), policy.RatingRank("Teen"))

	allowed := policy.AllowedRatings("Teen")
	assert.Contains(t, allowed, "Teen")
	assert.Contains(t, allowed, "Everyone")
	assert.NotContains(t, allowed, "M")

	banned := policy.BannedRatings("Teen")
	assert.Contains(t, banned, "M")
	assert.Contains(t, banned, "X18+")
	assert.NotContains(t, banned, "Teen")

	assert.Len(t, policy.BannedRatings("nonsense"), len(policy.AllowedRatings("X18+")))
}

// seed builds two libraries with one series each. Library A's series
// holds a Teen and a Mature 17+ issue; library B's series holds a Teen
// issue and one with no rating.
type fixture struct {
	libraryA, libraryB int64
	seriesA, seriesB   int64
	teenA, matureA     int64
	teenB, unratedB    int64
}

func seed(t *testing.T, db *sql.DB) fixture {
	t.Helper()

	var f fixture
	f.libraryA = sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('A', '/a')`)
	f.libraryB = sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('B', '/b')`)
	f.seriesA = sqlitetest.InsertID(t, db, `INSERT INTO series (library_id, name) VALUES (?, 'Alpha')`, f.libraryA)
	f.seriesB = sqlitetest.InsertID(t, db, `INSERT INTO series (library_id, name) VALUES (?, 'Beta')`, f.libraryB)
	volumeA := sqlitetest.InsertID(t, db, `INSERT INTO volumes (series_id, volume_number) VALUES (?, 1)`, f.seriesA)
	volumeB := sqlitetest.InsertID(t, db, `INSERT INTO volumes (series_id, volume_number) VALUES (?, 1)`, f.seriesB)

	insertComic := func(volumeID int64, path string, rating any) int64 {
		return sqlitetest.InsertID(t, db,
			`INSERT INTO comics (volume_id, file_path, number, age_rating) VALUES (?, ?, '1', ?)`,
			volumeID, path, rating)
	}
	f.teenA = insertComic(volumeA, "/a/teen.cbz", "Teen")
	f.matureA = insertComic(volumeA, "/a/mature.cbz", "Mature 17+")
	f.teenB = insertComic(volumeB, "/b/teen.cbz", "Teen")
	f.unratedB = insertComic(volumeB, "/b/unrated.cbz", nil)

	return f
}

func comicIDs(t *testing.T, db *sql.DB, fragment policy.Fragment) []int64 {
	t.Helper()

	rows, err := db.QueryContext(context.Background(),
		`SELECT c.id FROM comics c WHERE `+fragment.SQL+` ORDER BY c.id`, fragment.Args...)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

func seriesIDs(t *testing.T, db *sql.DB, fragment policy.Fragment) []int64 {
	t.Helper()

	rows, err := db.QueryContext(context.Background(),
		`SELECT s.id FROM series s WHERE `+fragment.SQL+` ORDER BY s.id`, fragment.Args...)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		ids = append(ids, id)
	}
	require.NoError(t, rows.Err())
	return ids
}

/*
TestComicAllowed executes the direct comic predicate against a seeded
database for the cap/unknown combinations.
*/
func TestComicAllowed(t *testing.T) {
	db := sqlitetest.NewDB(t)
	f := seed(t, db)
	teenCap := "Teen"

	t.Run("no_cap_unknowns_allowed", func(t *testing.T) {
		viewer := policy.Viewer{AllowUnknownRatings: true}
		assert.Equal(t, []int64{f.teenA, f.matureA, f.teenB, f.unratedB}, comicIDs(t, db, viewer.ComicAllowed("c")))
	})

	t.Run("no_cap_unknowns_banned", func(t *testing.T) {
		viewer := policy.Viewer{AllowUnknownRatings: false}
		assert.Equal(t, []int64{f.teenA, f.matureA, f.teenB}, comicIDs(t, db, viewer.ComicAllowed("c")))
	})

	t.Run("teen_cap_unknowns_allowed", func(t *testing.T) {
		viewer := policy.Viewer{MaxAgeRating: &teenCap, AllowUnknownRatings: true}
		assert.Equal(t, []int64{f.teenA, f.teenB, f.unratedB}, comicIDs(t, db, viewer.ComicAllowed("c")))
	})

	t.Run("teen_cap_unknowns_banned", func(t *testing.T) {
		viewer := policy.Viewer{MaxAgeRating: &teenCap, AllowUnknownRatings: false}
		assert.Equal(t, []int64{f.teenA, f.teenB}, comicIDs(t, db, viewer.ComicAllowed("c")))
	})

	t.Run("banned_is_complement", func(t *testing.T) {
		viewer := policy.Viewer{MaxAgeRating: &teenCap, AllowUnknownRatings: false}
		assert.Equal(t, []int64{f.matureA, f.unratedB}, comicIDs(t, db, viewer.ComicBanned("c")))
	})
}

/*
TestSeriesPoisonPill verifies that one banned issue hides the whole
series while an all-allowed series stays visible.
*/
func TestSeriesPoisonPill(t *testing.T) {
	db := sqlitetest.NewDB(t)
	f := seed(t, db)
	teenCap := "Teen"

	viewer := policy.Viewer{MaxAgeRating: &teenCap, AllowUnknownRatings: true}

	// Series A carries a Mature 17+ issue: poisoned. Series B holds a
	// Teen issue and an unknown one, both allowed for this viewer.
	assert.Equal(t, []int64{f.seriesB}, seriesIDs(t, db, viewer.SeriesVisible("s")))

	// The individual Teen issue in the poisoned series is still reachable
	// directly: the comic predicate does not inherit the poison pill.
	direct := comicIDs(t, db, viewer.ComicAllowed("c"))
	assert.Contains(t, direct, f.teenA)
}

/*
TestContainerPoisonPill verifies the collection and reading-list
variants of the poison pill.
*/
func TestContainerPoisonPill(t *testing.T) {
	db := sqlitetest.NewDB(t)
	f := seed(t, db)
	teenCap := "Teen"
	viewer := policy.Viewer{MaxAgeRating: &teenCap, AllowUnknownRatings: true}

	poisoned := sqlitetest.InsertID(t, db, `INSERT INTO collections (name) VALUES ('poisoned')`)
	clean := sqlitetest.InsertID(t, db, `INSERT INTO collections (name) VALUES ('clean')`)
	sqlitetest.Exec(t, db, `INSERT INTO collection_items (collection_id, comic_id) VALUES (?, ?)`, poisoned, f.matureA)
	sqlitetest.Exec(t, db, `INSERT INTO collection_items (collection_id, comic_id) VALUES (?, ?)`, clean, f.teenB)

	fragment := viewer.CollectionVisible("col")
	rows, err := db.QueryContext(context.Background(),
		`SELECT col.id FROM collections col WHERE `+fragment.SQL+` ORDER BY col.id`, fragment.Args...)
	require.NoError(t, err)
	defer func() { _ = rows.Close() }()

	var visible []int64
	for rows.Next() {
		var id int64
		require.NoError(t, rows.Scan(&id))
		visible = append(visible, id)
	}
	require.NoError(t, rows.Err())
	assert.Equal(t, []int64{clean}, visible)

	list := sqlitetest.InsertID(t, db, `INSERT INTO reading_lists (name) VALUES ('arc')`)
	sqlitetest.Exec(t, db, `INSERT INTO reading_list_items (reading_list_id, comic_id, position) VALUES (?, ?, 1)`, list, f.matureA)

	listFragment := viewer.ReadingListVisible("rl")
	row := db.QueryRowContext(context.Background(),
		`SELECT COUNT(*) FROM reading_lists rl WHERE `+listFragment.SQL, listFragment.Args...)
	var count int
	require.NoError(t, row.Scan(&count))
	assert.Zero(t, count)
}

/*
TestLibraryScope checks accessible-library restriction and the superuser
exemption.
*/
func TestLibraryScope(t *testing.T) {
	db := sqlitetest.NewDB(t)
	f := seed(t, db)

	restricted := policy.Viewer{AccessibleLibraries: []int64{f.libraryA}}
	assert.Equal(t, []int64{f.seriesA}, seriesIDs(t, db, restricted.LibraryScope("s")))

	admin := policy.Viewer{IsSuperuser: true}
	assert.Equal(t, []int64{f.seriesA, f.seriesB}, seriesIDs(t, db, admin.LibraryScope("s")))

	nobody := policy.Viewer{}
	assert.Empty(t, seriesIDs(t, db, nobody.LibraryScope("s")))
}
