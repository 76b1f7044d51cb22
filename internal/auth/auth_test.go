// Copyright (c) 2026 Inkwell. All rights reserved.

package auth_test

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nhatvu/inkwell/internal/auth"
	"github.com/nhatvu/inkwell/internal/platform/apperr"
	"github.com/nhatvu/inkwell/internal/platform/sec"
	"github.com/nhatvu/inkwell/internal/platform/sqlite/sqlitetest"
)

func newService(t *testing.T, db *sql.DB) *auth.Service {
	t.Helper()
	tokens, err := sec.NewTokenService("test-secret-key-of-decent-length", "inkwell", time.Hour)
	require.NoError(t, err)
	return auth.NewService(db, tokens, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

/*
TestLogin covers the issue path, wrong credentials and disabled
accounts.
*/
func TestLogin(t *testing.T) {
	db := sqlitetest.NewDB(t)
	service := newService(t, db)
	ctx := context.Background()

	user, err := service.CreateUser(ctx, "alex", "alex@example.com", "hunter2-secure", false)
	require.NoError(t, err)
	assert.False(t, user.IsSuperuser)

	result, err := service.Login(ctx, "alex", "hunter2-secure")
	require.NoError(t, err)
	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, "bearer", result.TokenType)
	assert.Equal(t, user.ID, result.User.ID)

	fetched, err := service.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.NotNil(t, fetched.LastLogin)

	t.Run("wrong_password", func(t *testing.T) {
		_, err := service.Login(ctx, "alex", "wrong")
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "UNAUTHORIZED", appError.Code)
	})

	t.Run("unknown_user_same_error", func(t *testing.T) {
		_, err := service.Login(ctx, "nobody", "hunter2-secure")
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "UNAUTHORIZED", appError.Code)
	})

	t.Run("disabled_account", func(t *testing.T) {
		sqlitetest.Exec(t, db, `UPDATE users SET is_active = 0 WHERE id = ?`, user.ID)
		_, err := service.Login(ctx, "alex", "hunter2-secure")
		require.NotNil(t, apperr.As(err))
	})

	t.Run("duplicate_username", func(t *testing.T) {
		_, err := service.CreateUser(ctx, "alex", "other@example.com", "password-x", false)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "CONFLICT", appError.Code)
	})
}

/*
TestViewerForUser builds the policy viewer from the account row and
library grants.
*/
func TestViewerForUser(t *testing.T) {
	db := sqlitetest.NewDB(t)
	service := newService(t, db)
	ctx := context.Background()

	libraryA := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('A', '/a')`)
	libraryB := sqlitetest.InsertID(t, db, `INSERT INTO libraries (name, root_path) VALUES ('B', '/b')`)

	user, err := service.CreateUser(ctx, "casey", "casey@example.com", "password-x", false)
	require.NoError(t, err)
	sqlitetest.Exec(t, db,
		`UPDATE users SET max_age_rating = 'Teen', allow_unknown_age_ratings = 0 WHERE id = ?`, user.ID)
	require.NoError(t, service.GrantLibrary(ctx, user.ID, libraryA))

	viewer, err := service.ViewerForUser(ctx, user.ID)
	require.NoError(t, err)
	assert.False(t, viewer.IsSuperuser)
	require.NotNil(t, viewer.MaxAgeRating)
	assert.Equal(t, "Teen", *viewer.MaxAgeRating)
	assert.False(t, viewer.AllowUnknownRatings)
	assert.Equal(t, []int64{libraryA}, viewer.AccessibleLibraries)
	assert.NotContains(t, viewer.AccessibleLibraries, libraryB)

	t.Run("superuser_skips_grants", func(t *testing.T) {
		admin, err := service.CreateUser(ctx, "root", "root@example.com", "password-x", true)
		require.NoError(t, err)

		viewer, err := service.ViewerForUser(ctx, admin.ID)
		require.NoError(t, err)
		assert.True(t, viewer.IsSuperuser)
		assert.Empty(t, viewer.AccessibleLibraries)
	})

	t.Run("deleted_account_rejected", func(t *testing.T) {
		_, err := service.ViewerForUser(ctx, 9999)
		appError := apperr.As(err)
		require.NotNil(t, appError)
		assert.Equal(t, "UNAUTHORIZED", appError.Code)
	})
}
