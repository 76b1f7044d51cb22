// Copyright (c) 2026 Inkwell. All rights reserved.

package progress_test

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
	"github.com/nhatvu/inkwell/internal/policy"
	"github.com/nhatvu/inkwell/internal/progress"
)

type fixture struct {
	db        *sql.DB
	service   *progress.Service
	userID    int64
	libraryID int64
	seriesID  int64
	volumeID  int64
	comicID   int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := sqlitetest.NewDB(t)

	f := &fixture{
		db:      db,
		service: progress.NewService(db, slog.New(slog.NewTextHandler(io.Discard, nil))),
	}
	f.userID = sqlitetest.InsertID(t, db,
		`INSERT INTO users (username, email, password_hash) VALUES ('reader', 'r@x.io', 'hash')`)
	f.libraryID = sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('Main', '/comics')`)
	f.seriesID = sqlitetest.InsertID(t, db, `INSERT INTO series (library_id, name) VALUES (?, 'Moon City')`, f.libraryID)
	f.volumeID = sqlitetest.InsertID(t, db, `INSERT INTO volumes (series_id, volume_number) VALUES (?, 1)`, f.seriesID)
	f.comicID = sqlitetest.InsertID(t, db,
		`INSERT INTO comics (volume_id, file_path, number, age_rating, page_count) VALUES (?, '/comics/mc-1.cbz', '1', 'Teen', 24)`,
		f.volumeID)
	return f
}

func (f *fixture) viewer() policy.Viewer {
	return policy.Viewer{
		UserID:              f.userID,
		AllowUnknownRatings: true,
		AccessibleLibraries: []int64{f.libraryID},
	}
}

/*
TestSave_CompletionInference walks a read session: partial progress,
the penultimate page completing the issue, and backtracking that logs
no negative delta.
*/
func TestSave_CompletionInference(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.service.Save(ctx, f.userID, f.comicID, f.viewer(), progress.SaveRequest{CurrentPage: 10})
	require.NoError(t, err)
	assert.False(t, saved.Completed)
	assert.Equal(t, 24, saved.TotalPages)

	// Page 23 of 24 satisfies current >= total-1.
	saved, err = f.service.Save(ctx, f.userID, f.comicID, f.viewer(), progress.SaveRequest{CurrentPage: 23})
	require.NoError(t, err)
	assert.True(t, saved.Completed)

	var rows int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM reading_progress`).Scan(&rows))
	assert.Equal(t, 1, rows, "saves upsert one row per user and comic")

	t.Run("activity_deltas", func(t *testing.T) {
		var deltas []int
		result, err := f.db.Query(`SELECT pages_read FROM activity_log ORDER BY id`)
		require.NoError(t, err)
		defer result.Close()
		for result.Next() {
			var delta int
			require.NoError(t, result.Scan(&delta))
			deltas = append(deltas, delta)
		}
		require.NoError(t, result.Err())
		assert.Equal(t, []int{10, 13}, deltas)
	})

	t.Run("backtracking_floors_at_zero", func(t *testing.T) {
		_, err := f.service.Save(ctx, f.userID, f.comicID, f.viewer(), progress.SaveRequest{CurrentPage: 5})
		require.NoError(t, err)

		var delta int
		require.NoError(t, f.db.QueryRow(
			`SELECT pages_read FROM activity_log ORDER BY id DESC LIMIT 1`).Scan(&delta))
		assert.Zero(t, delta)
	})
}

/*
TestSave_ClampsToLastPage sends a position past the end of the issue.
The stored page must clamp to the last page, both in the response and
in the row, and the activity delta counts only real pages.
*/
func TestSave_ClampsToLastPage(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.service.Save(ctx, f.userID, f.comicID, f.viewer(), progress.SaveRequest{CurrentPage: 99})
	require.NoError(t, err)
	assert.True(t, saved.Completed)
	assert.Equal(t, 23, saved.CurrentPage, "page 99 of a 24 page issue clamps to 23")

	var storedPage int
	var storedCompleted bool
	require.NoError(t, f.db.QueryRow(
		`SELECT current_page, completed FROM reading_progress WHERE user_id = ? AND comic_id = ?`,
		f.userID, f.comicID).Scan(&storedPage, &storedCompleted))
	assert.Equal(t, 23, storedPage)
	assert.True(t, storedCompleted)

	var delta int
	require.NoError(t, f.db.QueryRow(
		`SELECT pages_read FROM activity_log ORDER BY id DESC LIMIT 1`).Scan(&delta))
	assert.Equal(t, 23, delta, "the logged delta uses the clamped page")
}

/*
TestSave_PolicyApplies hides the comic behind scope and rating.
*/
func TestSave_PolicyApplies(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("out_of_scope", func(t *testing.T) {
		outsider := policy.Viewer{UserID: f.userID, AllowUnknownRatings: true}
		_, err := f.service.Save(ctx, f.userID, f.comicID, outsider, progress.SaveRequest{CurrentPage: 1})
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "NOT_FOUND", appError.Code)
	})

	t.Run("age_blocked", func(t *testing.T) {
		cap := "Everyone"
		limited := policy.Viewer{
			UserID:              f.userID,
			MaxAgeRating:        &cap,
			AccessibleLibraries: []int64{f.libraryID},
		}
		_, err := f.service.Save(ctx, f.userID, f.comicID, limited, progress.SaveRequest{CurrentPage: 1})
		require.NotNil(t, apperr.As(err))
	})
}

/*
TestMarkReadAndDelete covers the shortcut and removal paths.
*/
func TestMarkReadAndDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	saved, err := f.service.MarkRead(ctx, f.userID, f.comicID, f.viewer())
	require.NoError(t, err)
	assert.True(t, saved.Completed)
	assert.Equal(t, 23, saved.CurrentPage)

	require.NoError(t, f.service.Delete(ctx, f.userID, f.comicID))

	err = f.service.Delete(ctx, f.userID, f.comicID)
	appError := apperr.As(err)
	require.NotNil(t, appError)
	assert.Equal(t, "NOT_FOUND", appError.Code)

	var activity int
	require.NoError(t, f.db.QueryRow(`SELECT COUNT(*) FROM activity_log`).Scan(&activity))
	assert.NotZero(t, activity, "deleting progress keeps the activity history")
}

/*
TestBatchReadStatus expands comic, volume and series selectors.
*/
func TestBatchReadStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	second := sqlitetest.InsertID(t, f.db,
		`INSERT INTO comics (volume_id, file_path, number, age_rating, page_count) VALUES (?, '/comics/mc-2.cbz', '2', 'Teen', 20)`,
		f.volumeID)
	_ = second

	updated, err := f.service.BatchReadStatus(ctx, f.userID, f.viewer(), progress.BatchRequest{
		SeriesIDs: []int64{f.seriesID},
		Read:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, 2, updated)

	var completed int
	require.NoError(t, f.db.QueryRow(
		`SELECT COUNT(*) FROM reading_progress WHERE user_id = ? AND completed = 1`, f.userID).Scan(&completed))
	assert.Equal(t, 2, completed)

	t.Run("unread_deletes", func(t *testing.T) {
		updated, err := f.service.BatchReadStatus(ctx, f.userID, f.viewer(), progress.BatchRequest{
			ComicIDs: []int64{f.comicID},
			Read:     false,
		})
		require.NoError(t, err)
		assert.Equal(t, 1, updated)

		var remaining int
		require.NoError(t, f.db.QueryRow(
			`SELECT COUNT(*) FROM reading_progress WHERE user_id = ?`, f.userID).Scan(&remaining))
		assert.Equal(t, 1, remaining)
	})
}

/*
TestHeatmapAndStreak seeds activity across several days by rewriting
created_at, then checks the aggregates.
*/
func TestHeatmapAndStreak(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	log := func(daysAgo, pages int) {
		sqlitetest.Exec(t, f.db, `
			INSERT INTO activity_log (user_id, comic_id, pages_read, start_page, end_page, created_at)
			VALUES (?, ?, ?, 0, ?, DATETIME('now', ?))`,
			f.userID, f.comicID, pages, pages, fmt.Sprintf("-%d days", daysAgo))
	}

	// Three consecutive days, then a gap, then one older day.
	log(0, 5)
	log(0, 3)
	log(1, 8)
	log(2, 2)
	log(5, 9)

	heatmap, err := f.service.Heatmap(ctx, f.userID, 30)
	require.NoError(t, err)
	require.Len(t, heatmap, 4)
	assert.Equal(t, 8, heatmap[len(heatmap)-1].Pages, "same-day rows sum")

	streak, err := f.service.Streak(ctx, f.userID)
	require.NoError(t, err)
	assert.Equal(t, 3, streak, "the gap before day five breaks the run")
}
